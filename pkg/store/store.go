// Package store provides the backends commands read and write object rows
// through: the controller REST API, a Redis database, and memory.
package store

import (
	"context"
	"sort"

	"github.com/newtron-network/ctlsh/pkg/model"
)

// Row is one object instance, keyed by field name.
type Row map[string]interface{}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Backend persists object rows. Filters match rows whose fields equal the
// given values; a nil filter value matches an unset field.
type Backend interface {
	Query(ctx context.Context, objType string, filter map[string]interface{}) ([]Row, error)
	Create(ctx context.Context, objType, pkField string, row Row) error
	Update(ctx context.Context, objType, pkField, pk string, fields Row) error
	Delete(ctx context.Context, objType string, filter map[string]interface{}) error
	Close() error
}

// RawGetter is implemented by backends that can fetch arbitrary JSON
// resources, for commands that display non-model REST endpoints.
type RawGetter interface {
	GetJSON(ctx context.Context, path string) (interface{}, error)
}

// CacheClearer is implemented by backends that cache reads.
type CacheClearer interface {
	ClearCache()
}

// ClearCache clears b's read cache if it has one.
func ClearCache(b Backend) {
	if c, ok := b.(CacheClearer); ok {
		c.ClearCache()
	}
}

// Matches reports whether row satisfies filter. Values are compared in
// their text form so rows from any backend compare alike.
func Matches(row Row, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := row[k]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || got == nil || model.FormatValue(got) != model.FormatValue(want) {
			return false
		}
	}
	return true
}

// SortByField orders rows by the text form of field, for stable output.
func SortByField(rows []Row, field string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return model.FormatValue(rows[i][field]) < model.FormatValue(rows[j][field])
	})
}
