// Package grammar defines the declarative command descriptor format and
// compiles descriptors into a typed argument tree.
//
// Descriptors are YAML:
//
//	# commands/forwarding.yaml
//	- name: forwarding
//	  mode: config
//	  command-type: update-config
//	  obj-type: forwarding-config
//	  data: {id: forwarding}
//	  args:
//	    - choices:
//	        - args:
//	            - access-priority
//	            - field: access-priority
//	              type: integer
//	              range: [0, 32767]
//	              optional-for-no: true
//
// A bare string in an argument list is a literal token.
package grammar

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// StringList accepts either a scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*l = StringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("line %d: expected string or list of strings", n.Line)
}

// ActionSpec names one procedure in an action chain.
type ActionSpec struct {
	Proc    string                 `yaml:"proc"`
	Data    map[string]interface{} `yaml:"data"`
	URL     string                 `yaml:"url"`
	ObjType string                 `yaml:"obj-type"`
	Format  string                 `yaml:"format"`
}

var actionSpecKeys = keySet("proc", "data", "url", "obj-type", "format")

// ActionList accepts a procedure name, a single action mapping, or a
// sequence of either.
type ActionList []ActionSpec

func (l *ActionList) UnmarshalYAML(n *yaml.Node) error {
	decodeOne := func(n *yaml.Node) (ActionSpec, error) {
		if n.Kind == yaml.ScalarNode {
			return ActionSpec{Proc: n.Value}, nil
		}
		if err := checkKeys(n, actionSpecKeys, "action"); err != nil {
			return ActionSpec{}, err
		}
		var a ActionSpec
		err := n.Decode(&a)
		return a, err
	}

	if n.Kind == yaml.SequenceNode {
		list := make(ActionList, 0, len(n.Content))
		for _, item := range n.Content {
			a, err := decodeOne(item)
			if err != nil {
				return err
			}
			list = append(list, a)
		}
		*l = list
		return nil
	}
	a, err := decodeOne(n)
	if err != nil {
		return err
	}
	*l = ActionList{a}
	return nil
}

// ArgSpec is one argument node as written in YAML. Exactly one of Token,
// Field, Choices or Args must be set.
type ArgSpec struct {
	Token   string    `yaml:"token"`
	Field   string    `yaml:"field"`
	Choices []ArgSpec `yaml:"choices"`
	Args    []ArgSpec `yaml:"args"`

	Tag         string            `yaml:"tag"`
	Type        string            `yaml:"type"`
	Range       []int64           `yaml:"range"`
	Length      []int64           `yaml:"length"`
	Values      StringList        `yaml:"values"`
	Pattern     string            `yaml:"pattern"`
	DataHandler string            `yaml:"data-handler"`
	HandlerArgs map[string]string `yaml:"handler-args"`
	Completion  StringList        `yaml:"completion"`
	Validation  StringList        `yaml:"validation"`
	Other       string            `yaml:"other"`
	Scoped      string            `yaml:"scoped"`

	Optional      bool                   `yaml:"optional"`
	OptionalForNo bool                   `yaml:"optional-for-no"`
	Data          map[string]interface{} `yaml:"data"`
	Action        ActionList             `yaml:"action"`
	NoAction      ActionList             `yaml:"no-action"`

	ShortHelp      string `yaml:"short-help"`
	SyntaxHelp     string `yaml:"syntax-help"`
	CompletionText string `yaml:"completion-text"`
	Doc            string `yaml:"doc"`
}

var argSpecKeys = keySet(
	"token", "field", "choices", "args", "tag", "type", "range", "length",
	"values", "pattern", "data-handler", "handler-args", "completion", "validation", "other",
	"scoped", "optional", "optional-for-no", "data", "action", "no-action",
	"short-help", "syntax-help", "completion-text", "doc",
)

func (a *ArgSpec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*a = ArgSpec{Token: n.Value}
		return nil
	}
	if err := checkKeys(n, argSpecKeys, "argument"); err != nil {
		return err
	}
	type plain ArgSpec
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*a = ArgSpec(p)
	return nil
}

// Descriptor is one command as written in YAML.
type Descriptor struct {
	Name        string                 `yaml:"name"`
	Mode        StringList             `yaml:"mode"`
	ShortHelp   string                 `yaml:"short-help"`
	Doc         string                 `yaml:"doc"`
	DocExample  StringList             `yaml:"doc-example"`
	CommandType string                 `yaml:"command-type"`
	ObjType     string                 `yaml:"obj-type"`
	SubmodeName string                 `yaml:"submode-name"`
	ParentField string                 `yaml:"parent-field"`
	Format      string                 `yaml:"format"`
	NoSupported *bool                  `yaml:"no-supported"`
	Data        map[string]interface{} `yaml:"data"`
	Action      ActionList             `yaml:"action"`
	NoAction    ActionList             `yaml:"no-action"`
	Args        []ArgSpec              `yaml:"args"`
}

var descriptorKeys = keySet(
	"name", "mode", "short-help", "doc", "doc-example", "command-type",
	"obj-type", "submode-name", "parent-field", "format", "no-supported",
	"data", "action", "no-action", "args",
)

func (d *Descriptor) UnmarshalYAML(n *yaml.Node) error {
	if err := checkKeys(n, descriptorKeys, "command"); err != nil {
		return err
	}
	type plain Descriptor
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*d = Descriptor(p)
	return nil
}

// ParseDescriptors decodes a YAML list of command descriptors.
func ParseDescriptors(data []byte) ([]Descriptor, error) {
	var descs []Descriptor
	if err := yaml.Unmarshal(data, &descs); err != nil {
		return nil, err
	}
	return descs, nil
}

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// checkKeys rejects mapping keys outside allowed, so a misspelled
// attribute is an error rather than silently ignored.
func checkKeys(n *yaml.Node, allowed map[string]bool, what string) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s must be a mapping", n.Line, what)
	}
	var unknown []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i].Value; !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("line %d: unknown %s attribute(s): %s", n.Line, what, strings.Join(unknown, ", "))
	}
	return nil
}
