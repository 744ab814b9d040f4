// Package command is the command engine: it matches input against the
// compiled grammar, completes partial input, runs data handlers, and
// dispatches the matched command's action chain against a backend.
//
// An Engine is assembled once by a Builder and is read-only afterwards:
//
//	b := command.NewBuilder(models)
//	b.AddDescriptors(yamlBytes)
//	b.AddAction("snmp-validate-firewall", command.ActionFunc(validate))
//	eng, err := b.Build(command.Options{Backend: backend})
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/ctlsh/pkg/audit"
	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/runconfig"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// Action is one procedure of an action chain.
type Action interface {
	Run(inv *Invocation) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(inv *Invocation) error

func (f ActionFunc) Run(inv *Invocation) error { return f(inv) }

// DataHandler turns a matched field value into entries of the working
// data map. It runs after matching succeeds and before any action.
type DataHandler interface {
	Handle(inv *Invocation, f *grammar.Field, value interface{}) error
}

// DataHandlerFunc adapts a function to DataHandler.
type DataHandlerFunc func(inv *Invocation, f *grammar.Field, value interface{}) error

func (fn DataHandlerFunc) Handle(inv *Invocation, f *grammar.Field, value interface{}) error {
	return fn(inv, f, value)
}

// CompletionRequest is what a completion provider sees.
type CompletionRequest struct {
	Ctx     context.Context
	Backend store.Backend
	Models  *model.Registry
	Field   *grammar.Field
	ObjType string                 // the command's object type
	Data    map[string]interface{} // values bound by the words before the field
	Partial string
}

// Completer supplies live candidate values for a field. Completers only
// read from the backend.
type Completer interface {
	Complete(req *CompletionRequest) ([]string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(req *CompletionRequest) ([]string, error)

func (f CompleterFunc) Complete(req *CompletionRequest) ([]string, error) { return f(req) }

// Warner receives non-fatal warnings raised while a command runs.
type Warner interface {
	Warn(msg string)
}

// WarnerFunc adapts a function to Warner.
type WarnerFunc func(msg string)

func (f WarnerFunc) Warn(msg string) { f(msg) }

// chain is the default action chain of a command type.
type chain struct {
	do, undo []string
}

var defaultChains = map[grammar.CommandType]chain{
	grammar.TypeConfigObject:  {do: []string{"write-object"}, undo: []string{"delete-objects"}},
	grammar.TypeConfigSubmode: {do: []string{"push-mode-stack"}, undo: []string{"delete-objects"}},
	grammar.TypeUpdateConfig:  {do: []string{"update-config"}, undo: []string{"update-config"}},
	grammar.TypeDisplayTable:  {do: []string{"display-table"}},
	grammar.TypeDisplayRest:   {do: []string{"display-rest"}},
	grammar.TypeAction:        {},
}

// Builder collects descriptors, object types, formats and the named
// procedures they refer to, then compiles them into an Engine.
type Builder struct {
	models     *model.Registry
	descs      []grammar.Descriptor
	actions    map[string]Action
	handlers   map[string]DataHandler
	completers  map[string]Completer
	validations map[string]Validation
	formats     map[string]*Format
	formatters  map[string]Formatter
	runConfig   *runconfig.Registry
}

// NewBuilder creates a builder with the built-in actions, data handlers,
// completers, validations and formatters registered.
func NewBuilder(models *model.Registry) *Builder {
	b := &Builder{
		models:      models,
		actions:     make(map[string]Action),
		handlers:    make(map[string]DataHandler),
		completers:  make(map[string]Completer),
		validations: make(map[string]Validation),
		formats:     make(map[string]*Format),
		formatters:  make(map[string]Formatter),
		runConfig:   runconfig.NewRegistry(),
	}
	for name, a := range builtinActions {
		b.actions[name] = a
	}
	for name, h := range builtinHandlers {
		b.handlers[name] = h
	}
	for name, c := range builtinCompleters {
		b.completers[name] = c
	}
	for name, v := range builtinValidations {
		b.validations[name] = v
	}
	for name, f := range builtinFormatters {
		b.formatters[name] = f
	}
	return b
}

// Models returns the object type registry.
func (b *Builder) Models() *model.Registry { return b.models }

// RunConfig returns the running-config registry, for renderer registration.
func (b *Builder) RunConfig() *runconfig.Registry { return b.runConfig }

// AddDescriptors parses a YAML list of command descriptors.
func (b *Builder) AddDescriptors(data []byte) error {
	descs, err := grammar.ParseDescriptors(data)
	if err != nil {
		return util.NewDescriptionError("%v", err)
	}
	b.descs = append(b.descs, descs...)
	return nil
}

// AddDescriptor adds one descriptor.
func (b *Builder) AddDescriptor(d grammar.Descriptor) {
	b.descs = append(b.descs, d)
}

// AddAction registers a custom action procedure.
func (b *Builder) AddAction(name string, a Action) { b.actions[name] = a }

// AddHandler registers a data handler.
func (b *Builder) AddHandler(name string, h DataHandler) { b.handlers[name] = h }

// AddCompleter registers a completion provider.
func (b *Builder) AddCompleter(name string, c Completer) { b.completers[name] = c }

// AddValidation registers a field validation, named by a field's
// validation attribute.
func (b *Builder) AddValidation(name string, v Validation) { b.validations[name] = v }

// AddFormatter registers a per-field display formatter.
func (b *Builder) AddFormatter(name string, f Formatter) { b.formatters[name] = f }

// AddFormats parses a YAML list of display formats.
func (b *Builder) AddFormats(data []byte) error {
	var formats []*Format
	if err := yaml.Unmarshal(data, &formats); err != nil {
		return util.NewDescriptionError("parsing formats: %v", err)
	}
	for _, f := range formats {
		if f.Name == "" {
			return util.NewDescriptionError("format without a name")
		}
		if _, dup := b.formats[f.Name]; dup {
			return util.NewDescriptionError("format %q defined twice", f.Name)
		}
		b.formats[f.Name] = f
	}
	return nil
}

// Resolver implementation used while compiling descriptors.

func (b *Builder) HasCommandType(name string) bool {
	_, ok := defaultChains[grammar.CommandType(name)]
	return ok
}

func (b *Builder) HasAction(name string) bool {
	_, ok := b.actions[name]
	return ok
}

func (b *Builder) HasDataHandler(name string) bool {
	_, ok := b.handlers[name]
	return ok
}

func (b *Builder) HasCompletion(name string) bool {
	_, ok := b.completers[name]
	return ok
}

func (b *Builder) HasValidation(name string) bool {
	_, ok := b.validations[name]
	return ok
}

func (b *Builder) HasFormat(name string) bool {
	_, ok := b.formats[name]
	return ok
}

func (b *Builder) ObjectType(name string) (*model.ObjectType, bool) {
	return b.models.Lookup(name)
}

// Options are the run-time dependencies of an Engine.
type Options struct {
	Backend store.Backend
	Out     io.Writer    // command output; default os.Stdout
	Warner  Warner       // warning channel; default stderr
	Audit   audit.Logger // optional write log
}

// Build validates everything registered and returns the engine. All
// descriptor problems are reported together.
func (b *Builder) Build(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, util.NewInternalError("engine needs a backend")
	}
	if err := b.models.Validate(); err != nil {
		return nil, err
	}
	b.models.Seal()

	var vb util.ValidationBuilder
	for _, f := range b.formats {
		b.checkFormat(&vb, f)
	}

	descs := append([]grammar.Descriptor(nil), b.descs...)
	descs = append(descs, b.runningConfigDescriptor())

	e := &Engine{
		models:      b.models,
		actions:     b.actions,
		handlers:    b.handlers,
		completers:  b.completers,
		validations: b.validations,
		formats:     b.formats,
		formatters:  b.formatters,
		runConfig:   b.runConfig,
		backend:     opts.Backend,
		out:         opts.Out,
		warner:      opts.Warner,
		audit:       opts.Audit,
	}
	for _, d := range descs {
		cmd, err := grammar.Compile(d, b)
		if err != nil {
			if ce, ok := util.AsCommandError(err); ok {
				vb.AddErrorf("%s", ce.Message)
			} else {
				vb.AddErrorf("command %q: %v", d.Name, err)
			}
			continue
		}
		e.commands = append(e.commands, cmd)
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}
	b.runConfig.Seal()

	if e.out == nil {
		e.out = os.Stdout
	}
	if e.warner == nil {
		e.warner = WarnerFunc(func(msg string) { fmt.Fprintf(os.Stderr, "Warning: %s\n", msg) })
	}
	sort.SliceStable(e.commands, func(i, j int) bool { return e.commands[i].Name < e.commands[j].Name })
	util.WithField("commands", len(e.commands)).Debug("command engine built")
	return e, nil
}

func (b *Builder) checkFormat(vb *util.ValidationBuilder, f *Format) {
	if f.ObjType != "" {
		if _, ok := b.models.Lookup(f.ObjType); !ok {
			vb.AddErrorf("format %q: unknown obj-type %q", f.Name, f.ObjType)
		}
	}
	for _, ff := range f.Fields {
		if ff.Formatter != "" {
			if _, ok := b.formatters[ff.Formatter]; !ok {
				vb.AddErrorf("format %q: field %q: unknown formatter %q", f.Name, ff.Name, ff.Formatter)
			}
		}
	}
}

// runningConfigDescriptor builds "show running-config" from the
// registered running-config entries.
func (b *Builder) runningConfigDescriptor() grammar.Descriptor {
	noSupport := false
	return grammar.Descriptor{
		Name:        "show",
		Mode:        grammar.StringList{grammar.LoginMode},
		ShortHelp:   "Show the current configuration",
		DocExample:  grammar.StringList{"show running-config"},
		NoSupported: &noSupport,
		Action:      grammar.ActionList{{Proc: "running-config"}},
		Args:        b.runConfig.CommandArgs(),
	}
}
