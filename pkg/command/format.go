package command

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/newtron-network/ctlsh/pkg/cli"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// IndexField is the pseudo-field holding a row's 1-based position.
const IndexField = "Idx"

// EmptyResult is printed when a display has no rows.
const EmptyResult = "None."

// Format describes how rows of an object type are displayed.
type Format struct {
	Name    string        `yaml:"name"`
	ObjType string        `yaml:"obj-type"`
	Fields  []FormatField `yaml:"fields"`
}

// FormatField is one display column.
type FormatField struct {
	Name        string `yaml:"name"`
	VerboseName string `yaml:"verbose-name"`
	Formatter   string `yaml:"formatter"`
}

// Header returns the column heading.
func (f FormatField) Header() string {
	if f.VerboseName != "" {
		return f.VerboseName
	}
	if f.Name == IndexField {
		return "#"
	}
	return util.CapitalizeFirst(f.Name)
}

// Formatter renders one cell. row is the whole row, for formatters that
// combine several fields.
type Formatter func(value interface{}, row store.Row) string

var builtinFormatters = map[string]Formatter{
	"enable-disable": formatEnableDisable,
	"dash-if-empty":  formatDashIfEmpty,
	"tag-triple":     formatTagTriple,
}

func formatEnableDisable(v interface{}, _ store.Row) string {
	switch b := v.(type) {
	case bool:
		if b {
			return "enabled"
		}
		return "disabled"
	case nil:
		return "disabled"
	}
	return model.FormatValue(v)
}

func formatDashIfEmpty(v interface{}, _ store.Row) string {
	if s := model.FormatValue(v); s != "" {
		return s
	}
	return "-"
}

// formatTagTriple shows a tag as "namespace.name=value", from a tag row
// or from a compound tag key.
func formatTagTriple(v interface{}, row store.Row) string {
	if _, ok := row["namespace"]; ok {
		return FormatTag(
			model.FormatValue(row["namespace"]),
			model.FormatValue(row["name"]),
			model.FormatValue(row["value"]),
		)
	}
	parts := strings.Split(model.FormatValue(v), model.KeySeparator)
	if len(parts) != 3 {
		return model.FormatValue(v)
	}
	return FormatTag(parts[0], parts[1], parts[2])
}

// formatFor returns the named format, the format named after objType, or
// one built from the object type's fields in declaration order. Without
// an object type the columns are the sorted keys of rows.
func (e *Engine) formatFor(name, objType string, rows []store.Row) (*Format, error) {
	if name != "" {
		f, ok := e.formats[name]
		if !ok {
			return nil, util.NewInternalError("format %q not registered", name)
		}
		return f, nil
	}
	if objType == "" {
		return rowsFormat(rows), nil
	}
	if f, ok := e.formats[objType]; ok {
		return f, nil
	}
	t, ok := e.models.Lookup(objType)
	if !ok {
		return nil, util.NewInvocationError("no format for %q", objType)
	}
	f := &Format{Name: objType, ObjType: objType}
	for _, mf := range t.Fields {
		f.Fields = append(f.Fields, FormatField{Name: mf.Name, VerboseName: mf.VerboseName})
	}
	return f, nil
}

func rowsFormat(rows []store.Row) *Format {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	f := &Format{}
	for _, n := range names {
		f.Fields = append(f.Fields, FormatField{Name: n})
	}
	return f
}

// writeRows renders rows as a table through f.
func (e *Engine) writeRows(w io.Writer, f *Format, rows []store.Row) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, EmptyResult)
		return nil
	}
	headers := make([]string, len(f.Fields))
	for i, ff := range f.Fields {
		headers[i] = ff.Header()
	}
	tbl := cli.NewTableTo(w, headers...)
	for i, row := range rows {
		cells := make([]string, len(f.Fields))
		for j, ff := range f.Fields {
			var v interface{} = row[ff.Name]
			if ff.Name == IndexField {
				v = i + 1
			}
			if ff.Formatter != "" {
				fn, ok := e.formatters[ff.Formatter]
				if !ok {
					return util.NewInternalError("formatter %q not registered", ff.Formatter)
				}
				cells[j] = fn(v, row)
				continue
			}
			cells[j] = model.FormatValue(v)
		}
		tbl.Row(cells...)
	}
	tbl.Flush()
	return nil
}
