package grammar

import (
	"regexp"
	"strings"
)

// NodeKind discriminates argument nodes
type NodeKind int

const (
	KindLiteral NodeKind = iota
	KindField
	KindChoice
	KindSequence
)

func (k NodeKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindField:
		return "field"
	case KindChoice:
		return "choice"
	case KindSequence:
		return "sequence"
	}
	return "unknown"
}

// Node is a compiled argument node: *Literal, *Field, *Choice or *Sequence.
type Node interface {
	Kind() NodeKind
	Attributes() *Attrs
}

// Attrs are the attributes every node kind may carry.
type Attrs struct {
	Optional      bool
	OptionalForNo bool
	Data          []Binding
	Actions       []Action
	NoActions     []Action

	ShortHelp      string
	SyntaxHelp     string
	CompletionText string
	Doc            string
}

func (a *Attrs) Attributes() *Attrs { return a }

// Skippable reports whether the node may be omitted from the input.
func (a *Attrs) Skippable(negated bool) bool {
	return a.Optional || (negated && a.OptionalForNo)
}

// Literal is a fixed keyword.
type Literal struct {
	Attrs
	Token string
}

func (*Literal) Kind() NodeKind { return KindLiteral }

// FieldType is the syntax of a field value
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldEnum    FieldType = "enum"
	FieldDPID    FieldType = "dpid"
	FieldHost    FieldType = "host"
	FieldBoolean FieldType = "boolean"
)

func (t FieldType) valid() bool {
	switch t {
	case FieldString, FieldInteger, FieldEnum, FieldDPID, FieldHost, FieldBoolean:
		return true
	}
	return false
}

// Range is an inclusive integer interval
type Range struct {
	Lo, Hi int64
}

// Contains reports whether lo <= v <= hi.
func (r Range) Contains(v int64) bool {
	return v >= r.Lo && v <= r.Hi
}

// Field binds one input word, optionally preceded by a keyword tag.
type Field struct {
	Attrs
	Name        string
	Tag         string
	Type        FieldType
	Range       *Range
	Length      *Range
	Values      []string
	Pattern     *regexp.Regexp
	DataHandler string
	HandlerArgs map[string]string
	Completions []string
	Validations []string
	Other       string
	Scoped      string
}

func (*Field) Kind() NodeKind { return KindField }

// Choice holds mutually exclusive alternatives.
type Choice struct {
	Attrs
	Alternatives []Node
}

func (*Choice) Kind() NodeKind { return KindChoice }

// Sequence holds nodes matched in order.
type Sequence struct {
	Attrs
	Items []Node
}

func (*Sequence) Kind() NodeKind { return KindSequence }

// LeadingToken returns the keyword that must start any input matching n:
// a literal's token, or a tagged field's tag, looking through sequences
// whose first item is required. The second result is false when n can
// start with an arbitrary value.
func LeadingToken(n Node, negated bool) (string, bool) {
	switch n := n.(type) {
	case *Literal:
		return n.Token, true
	case *Field:
		if n.Tag != "" {
			return n.Tag, true
		}
	case *Sequence:
		if len(n.Items) > 0 && !n.Items[0].Attributes().Skippable(negated) {
			return LeadingToken(n.Items[0], negated)
		}
	}
	return "", false
}

// ValueKind discriminates Value
type ValueKind int

const (
	// ValueLiteral is a constant from the descriptor.
	ValueLiteral ValueKind = iota
	// ValueFromField copies a bound field; "$data" names the owning field.
	ValueFromField
	// ValueReset clears the key so the field reverts to its default.
	ValueReset
)

// Value is the right-hand side of a data binding.
type Value struct {
	Kind    ValueKind
	Literal interface{}
	Field   string
}

// Resolve evaluates v. lookup returns the value bound to a field name.
func (v Value) Resolve(lookup func(field string) interface{}) interface{} {
	switch v.Kind {
	case ValueLiteral:
		return v.Literal
	case ValueFromField:
		return lookup(v.Field)
	}
	return nil
}

// Binding assigns a value to a key of the working data map.
type Binding struct {
	Key   string
	Value Value
}

// Action is a compiled action procedure.
type Action struct {
	Proc    string
	Data    []Binding
	URL     string
	ObjType string
	Format  string
}

// CommandType names the default action chains
type CommandType string

const (
	TypeConfigObject  CommandType = "config-object"
	TypeConfigSubmode CommandType = "config-submode"
	TypeUpdateConfig  CommandType = "update-config"
	TypeDisplayTable  CommandType = "display-table"
	TypeDisplayRest   CommandType = "display-rest"
	TypeAction        CommandType = "action"
)

// Command is a compiled command descriptor.
type Command struct {
	Name        string
	Modes       []string
	ShortHelp   string
	Doc         string
	Examples    []string
	Type        CommandType
	ObjType     string
	SubmodeName string
	ParentField string
	Format      string
	NoSupported bool
	Data        []Binding
	Args        *Sequence
	Actions     []Action
	NoActions   []Action
}

// ModeMatches reports whether a descriptor mode pattern applies in mode.
// A trailing '*' matches the mode itself and all of its submodes.
func ModeMatches(pattern, mode string) bool {
	if base, ok := strings.CutSuffix(pattern, "*"); ok {
		return mode == base || strings.HasPrefix(mode, base+"-")
	}
	return pattern == mode
}

// LoginMode is the base mode. Its commands apply in every mode.
const LoginMode = "login"

// AppliesTo reports whether c may be entered in mode.
func (c *Command) AppliesTo(mode string) bool {
	for _, m := range c.Modes {
		if m == LoginMode {
			return true
		}
		if ModeMatches(m, mode) {
			return true
		}
	}
	return false
}

// HomeMode is the first mode c is declared in, without any wildcard.
func (c *Command) HomeMode() string {
	if len(c.Modes) == 0 {
		return ""
	}
	return strings.TrimSuffix(c.Modes[0], "*")
}
