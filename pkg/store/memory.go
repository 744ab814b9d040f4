package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// MemoryBackend keeps rows in process memory. It backs offline use and
// tests. Rows are returned in primary key order.
type MemoryBackend struct {
	mu        sync.Mutex
	tables    map[string]map[string]Row
	resources map[string]interface{}

	// Calls counts every backend operation, for tests that assert a
	// path performs no I/O.
	Calls int
}

// NewMemoryBackend creates an empty memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]map[string]Row)}
}

// Seed adds rows to objType, keyed by pkField. Existing rows are replaced.
func (b *MemoryBackend) Seed(objType, pkField string, rows ...Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.table(objType)
	for _, r := range rows {
		t[model.FormatValue(r[pkField])] = r.Clone()
	}
}

func (b *MemoryBackend) table(objType string) map[string]Row {
	t, ok := b.tables[objType]
	if !ok {
		t = make(map[string]Row)
		b.tables[objType] = t
	}
	return t
}

func sortedKeys(t map[string]Row) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Query returns copies of the matching rows.
func (b *MemoryBackend) Query(ctx context.Context, objType string, filter map[string]interface{}) ([]Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++

	t := b.tables[objType]
	var rows []Row
	for _, k := range sortedKeys(t) {
		if Matches(t[k], filter) {
			rows = append(rows, t[k].Clone())
		}
	}
	return rows, nil
}

// Create adds a row; the primary key must be set and unused.
func (b *MemoryBackend) Create(ctx context.Context, objType, pkField string, row Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++

	pk, ok := row[pkField]
	if !ok || pk == nil {
		return util.NewRestError("validation", "", fmt.Sprintf("creating %s: primary key %q missing", objType, pkField))
	}
	t := b.table(objType)
	key := model.FormatValue(pk)
	if _, dup := t[key]; dup {
		return util.NewRestError("duplicate", "", fmt.Sprintf("creating %s %q: already exists", objType, key))
	}
	stored := make(Row, len(row))
	for f, v := range row {
		if v != nil {
			stored[f] = v
		}
	}
	t[key] = stored
	return nil
}

// Update changes fields of the row keyed pk. Nil values remove the field.
func (b *MemoryBackend) Update(ctx context.Context, objType, pkField, pk string, fields Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++

	row, ok := b.tables[objType][pk]
	if !ok {
		return util.NewRestError("not-found", "", fmt.Sprintf("updating %s %q: no such row", objType, pk))
	}
	for f, v := range fields {
		if v == nil {
			delete(row, f)
		} else {
			row[f] = v
		}
	}
	return nil
}

// Delete removes the rows matching filter.
func (b *MemoryBackend) Delete(ctx context.Context, objType string, filter map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++

	t := b.tables[objType]
	for _, k := range sortedKeys(t) {
		if Matches(t[k], filter) {
			delete(t, k)
		}
	}
	return nil
}

// GetJSON serves raw reads from the registered resources.
func (b *MemoryBackend) GetJSON(ctx context.Context, path string) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++

	path = strings.TrimLeft(path, "/")
	if v, ok := b.resources[path]; ok {
		return v, nil
	}
	return nil, util.NewRestError("not-found", "", "no resource at "+path)
}

// SetResource registers a raw JSON value returned by GetJSON for path.
func (b *MemoryBackend) SetResource(path string, v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resources == nil {
		b.resources = make(map[string]interface{})
	}
	b.resources[strings.TrimLeft(path, "/")] = v
}

// Close is a no-op.
func (b *MemoryBackend) Close() error {
	return nil
}
