package grammar

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// DataPlaceholder in a field's data mapping stands for the matched value.
const DataPlaceholder = "$data"

// Resolver answers the name lookups needed to validate a descriptor, so
// unknown names fail when the grammar is loaded rather than when used.
type Resolver interface {
	HasCommandType(name string) bool
	HasAction(name string) bool
	HasDataHandler(name string) bool
	HasCompletion(name string) bool
	HasValidation(name string) bool
	HasFormat(name string) bool
	ObjectType(name string) (*model.ObjectType, bool)
}

// Compile validates d and builds its argument tree. Every problem found
// is reported in a single description error.
func Compile(d Descriptor, r Resolver) (*Command, error) {
	c := &compiler{r: r, cmd: d.Name}
	cmd := c.command(d)
	if err := c.vb.Build(); err != nil {
		return nil, err
	}
	return cmd, nil
}

type compiler struct {
	r   Resolver
	cmd string
	vb  util.ValidationBuilder
}

func (c *compiler) errorf(path, format string, args ...interface{}) {
	prefix := fmt.Sprintf("command %q", c.cmd)
	if path != "" {
		prefix += " " + path
	}
	c.vb.AddErrorf("%s: %s", prefix, fmt.Sprintf(format, args...))
}

func (c *compiler) command(d Descriptor) *Command {
	cmd := &Command{
		Name:        d.Name,
		Modes:       d.Mode,
		ShortHelp:   d.ShortHelp,
		Doc:         d.Doc,
		Examples:    d.DocExample,
		Type:        CommandType(d.CommandType),
		ObjType:     d.ObjType,
		SubmodeName: d.SubmodeName,
		ParentField: d.ParentField,
		Format:      d.Format,
	}

	if d.Name == "" || strings.ContainsAny(d.Name, " \t") {
		c.errorf("", "name must be a single non-empty word")
	}
	if len(d.Mode) == 0 {
		c.errorf("", "no mode")
	}
	switch {
	case d.CommandType == "" && len(d.Action) == 0:
		c.errorf("", "neither command-type nor action given")
	case d.CommandType != "" && !c.r.HasCommandType(d.CommandType):
		c.errorf("", "unknown command-type %q", d.CommandType)
	}
	if d.ObjType != "" {
		if _, ok := c.r.ObjectType(d.ObjType); !ok {
			c.errorf("", "unknown obj-type %q", d.ObjType)
		}
	}
	if cmd.Type == TypeConfigSubmode && d.SubmodeName == "" {
		c.errorf("", "config-submode requires submode-name")
	}
	if d.Format != "" && !c.r.HasFormat(d.Format) {
		c.errorf("", "unknown format %q", d.Format)
	}
	for i, ex := range d.DocExample {
		if strings.TrimSpace(ex) == "" {
			c.errorf(fmt.Sprintf("doc-example[%d]", i), "empty example")
		}
	}

	switch cmd.Type {
	case TypeConfigObject, TypeConfigSubmode, TypeUpdateConfig:
		cmd.NoSupported = true
	}
	if d.NoSupported != nil {
		cmd.NoSupported = *d.NoSupported
	}

	cmd.Data = c.bindings("data", d.Data, "")
	cmd.Actions = c.actions("action", d.Action)
	cmd.NoActions = c.actions("no-action", d.NoAction)
	cmd.Args = c.sequence("args", d.Args, ArgSpec{})
	return cmd
}

func (c *compiler) sequence(path string, items []ArgSpec, attrs ArgSpec) *Sequence {
	seq := &Sequence{Attrs: c.attrs(path, attrs, "")}
	for i, item := range items {
		if n := c.node(fmt.Sprintf("%s[%d]", path, i), item); n != nil {
			seq.Items = append(seq.Items, n)
		}
	}
	return seq
}

func (c *compiler) node(path string, a ArgSpec) Node {
	kinds := 0
	for _, set := range []bool{a.Token != "", a.Field != "", a.Choices != nil, a.Args != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		c.errorf(path, "exactly one of token, field, choices or args is required")
		return nil
	}

	switch {
	case a.Token != "":
		return c.literal(path, a)
	case a.Field != "":
		return c.field(path, a)
	case a.Choices != nil:
		return c.choice(path, a)
	}
	if len(a.Args) == 0 {
		c.errorf(path, "empty args")
		return nil
	}
	return c.sequence(path+".args", a.Args, a)
}

func (c *compiler) literal(path string, a ArgSpec) Node {
	if strings.ContainsAny(a.Token, " \t") {
		c.errorf(path, "token %q contains whitespace", a.Token)
	}
	if a.Tag != "" || a.Type != "" || a.Range != nil || a.Values != nil || a.Completion != nil ||
		a.DataHandler != "" || a.Other != "" || a.Pattern != "" || a.Length != nil || a.Validation != nil {
		c.errorf(path, "token %q carries field attributes", a.Token)
	}
	return &Literal{Attrs: c.attrs(path, a, ""), Token: a.Token}
}

func (c *compiler) field(path string, a ArgSpec) Node {
	f := &Field{
		Attrs:       c.attrs(path, a, a.Field),
		Name:        a.Field,
		Tag:         a.Tag,
		Type:        FieldType(a.Type),
		Values:      a.Values,
		DataHandler: a.DataHandler,
		HandlerArgs: a.HandlerArgs,
		Completions: a.Completion,
		Validations: a.Validation,
		Other:       a.Other,
		Scoped:      a.Scoped,
	}
	if f.Type == "" {
		f.Type = FieldString
	}
	if !f.Type.valid() {
		c.errorf(path, "field %q: unknown type %q", a.Field, a.Type)
	}
	if strings.ContainsAny(f.Tag, " \t") {
		c.errorf(path, "field %q: tag contains whitespace", a.Field)
	}

	switch {
	case f.Type == FieldEnum && len(f.Values) == 0:
		c.errorf(path, "field %q: enum without values", a.Field)
	case f.Type != FieldEnum && len(f.Values) > 0:
		c.errorf(path, "field %q: values only apply to enum fields", a.Field)
	}
	if a.Range != nil {
		if f.Type != FieldInteger {
			c.errorf(path, "field %q: range only applies to integer fields", a.Field)
		}
		f.Range = c.bounds(path, a.Field, "range", a.Range)
	}
	if a.Length != nil {
		if f.Type != FieldString {
			c.errorf(path, "field %q: length only applies to string fields", a.Field)
		}
		f.Length = c.bounds(path, a.Field, "length", a.Length)
	}
	if a.Pattern != "" {
		re, err := regexp.Compile("^(?:" + a.Pattern + ")$")
		if err != nil {
			c.errorf(path, "field %q: bad pattern: %v", a.Field, err)
		}
		f.Pattern = re
	}
	if f.DataHandler != "" && !c.r.HasDataHandler(f.DataHandler) {
		c.errorf(path, "field %q: unknown data-handler %q", a.Field, f.DataHandler)
	}
	for _, name := range f.Completions {
		if !c.r.HasCompletion(name) {
			c.errorf(path, "field %q: unknown completion %q", a.Field, name)
		}
	}
	for _, name := range f.Validations {
		if !c.r.HasValidation(name) {
			c.errorf(path, "field %q: unknown validation %q", a.Field, name)
		}
	}
	return f
}

func (c *compiler) bounds(path, field, what string, b []int64) *Range {
	if len(b) != 2 || b[0] > b[1] {
		c.errorf(path, "field %q: %s must be [lo, hi] with lo <= hi", field, what)
		return nil
	}
	return &Range{Lo: b[0], Hi: b[1]}
}

func (c *compiler) choice(path string, a ArgSpec) Node {
	ch := &Choice{Attrs: c.attrs(path, a, "")}
	if len(a.Choices) == 0 {
		c.errorf(path, "empty choices")
		return ch
	}
	for i, alt := range a.Choices {
		if n := c.node(fmt.Sprintf("%s.choices[%d]", path, i), alt); n != nil {
			ch.Alternatives = append(ch.Alternatives, n)
		}
	}
	c.distinctLeaders(path, ch)
	return ch
}

// distinctLeaders reports alternatives of ch that start with the same
// word, in the plain or the negated form. Matching commits on that word,
// so only the first such alternative could ever match.
func (c *compiler) distinctLeaders(path string, ch *Choice) {
	reported := make(map[string]bool)
	for _, negated := range []bool{false, true} {
		seen := make(map[string]bool)
		for _, alt := range ch.Alternatives {
			tok, ok := LeadingToken(alt, negated)
			if !ok {
				continue
			}
			if seen[tok] && !reported[tok] {
				c.errorf(path, "choices: %q starts more than one alternative", tok)
				reported[tok] = true
			}
			seen[tok] = true
		}
	}
}

func (c *compiler) attrs(path string, a ArgSpec, owner string) Attrs {
	return Attrs{
		Optional:       a.Optional,
		OptionalForNo:  a.OptionalForNo,
		Data:           c.bindings(path+".data", a.Data, owner),
		Actions:        c.actions(path+".action", a.Action),
		NoActions:      c.actions(path+".no-action", a.NoAction),
		ShortHelp:      a.ShortHelp,
		SyntaxHelp:     a.SyntaxHelp,
		CompletionText: a.CompletionText,
		Doc:            a.Doc,
	}
}

// bindings converts a data mapping. owner is the field the mapping belongs
// to; "$data" is only meaningful when there is one.
func (c *compiler) bindings(path string, data map[string]interface{}, owner string) []Binding {
	if len(data) == 0 {
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Binding, 0, len(keys))
	for _, k := range keys {
		v := data[k]
		b := Binding{Key: k}
		switch s, isString := v.(string); {
		case v == nil:
			b.Value = Value{Kind: ValueReset}
		case isString && s == DataPlaceholder:
			if owner == "" {
				c.errorf(path, "%q used outside a field", DataPlaceholder)
			}
			b.Value = Value{Kind: ValueFromField, Field: owner}
		case isString && strings.HasPrefix(s, "$"):
			b.Value = Value{Kind: ValueFromField, Field: s[1:]}
		default:
			b.Value = Value{Kind: ValueLiteral, Literal: v}
		}
		out = append(out, b)
	}
	return out
}

func (c *compiler) actions(path string, list ActionList) []Action {
	if len(list) == 0 {
		return nil
	}
	out := make([]Action, 0, len(list))
	for i, a := range list {
		p := fmt.Sprintf("%s[%d]", path, i)
		if !c.r.HasAction(a.Proc) {
			c.errorf(p, "unknown action %q", a.Proc)
		}
		if a.ObjType != "" {
			if _, ok := c.r.ObjectType(a.ObjType); !ok {
				c.errorf(p, "unknown obj-type %q", a.ObjType)
			}
		}
		if a.Format != "" && !c.r.HasFormat(a.Format) {
			c.errorf(p, "unknown format %q", a.Format)
		}
		out = append(out, Action{
			Proc:    a.Proc,
			Data:    c.bindings(p+".data", a.Data, ""),
			URL:     a.URL,
			ObjType: a.ObjType,
			Format:  a.Format,
		})
	}
	return out
}
