package runconfig

import (
	"context"
	"fmt"

	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// Context gives renderers read access to persisted state.
type Context struct {
	Ctx     context.Context
	Backend store.Backend
	Models  *model.Registry

	// Warn receives non-fatal problems found while rendering.
	Warn func(msg string)
}

// Warnf reports a non-fatal rendering problem.
func (c *Context) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	util.Logger.Warn(msg)
	if c.Warn != nil {
		c.Warn(msg)
	}
}

// GetTableFromStore returns the rows of objType matching the optional
// field/value filter pairs, coerced to the model's field types and sorted
// by primary key so repeated renders produce identical text.
func (c *Context) GetTableFromStore(objType string, filter ...interface{}) ([]store.Row, error) {
	t, ok := c.Models.Lookup(objType)
	if !ok {
		return nil, util.NewInternalError("running-config: unknown object type %q", objType)
	}
	if len(filter)%2 != 0 {
		return nil, util.NewInternalError("running-config: odd filter for %s", objType)
	}
	var f map[string]interface{}
	if len(filter) > 0 {
		f = make(map[string]interface{}, len(filter)/2)
		for i := 0; i < len(filter); i += 2 {
			f[fmt.Sprint(filter[i])] = filter[i+1]
		}
	}

	rows, err := c.Backend.Query(c.Ctx, objType, f)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		t.Normalize(r)
	}
	store.SortByField(rows, t.PrimaryKey)
	return rows, nil
}

// NotDefaultValue reports whether value should appear in the running
// config for objType's field.
func (c *Context) NotDefaultValue(objType, field string, value interface{}) bool {
	t, ok := c.Models.Lookup(objType)
	if !ok {
		return value != nil
	}
	return t.NotDefaultValue(field, value)
}

// IncludeField appends "<prefix><field> <value>" at depth when value is
// not the field's default. String values are quoted when needed.
func (c *Context) IncludeField(cfg *Config, depth int, objType, field string, value interface{}, prefix string) {
	if !c.NotDefaultValue(objType, field, value) {
		return
	}
	text := model.FormatValue(value)
	if s, isString := value.(string); isString {
		text = util.QuoteString(s)
	}
	cfg.AppendIndented(depth, "%s%s %s", prefix, field, text)
}

// IncludeAlias appends "alias <name>" at depth when objType has an
// alias row pointing at key.
func (c *Context) IncludeAlias(cfg *Config, depth int, objType, key string) {
	t, ok := c.Models.Lookup(objType)
	if !ok || t.Alias == "" {
		return
	}
	field, err := c.Models.AliasField(objType)
	if err != nil {
		return
	}
	rows, err := c.GetTableFromStore(t.Alias, field, key)
	if err != nil {
		util.WithObjType(t.Alias).Debugf("alias lookup failed: %v", err)
		return
	}
	switch {
	case len(rows) > 1:
		c.Warnf("%s %s: alias count > 1", t.Alias, key)
	case len(rows) == 1:
		alias, _ := c.Models.Lookup(t.Alias)
		cfg.AppendIndented(depth, "alias %s", model.FormatValue(rows[0][alias.PrimaryKey]))
	}
}
