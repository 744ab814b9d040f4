// Package runconfig renders persisted configuration back into command
// syntax. Each object type registers a renderer with a unique priority;
// "show running-config" runs them in ascending priority order.
package runconfig

import (
	"sort"

	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// CommandToken is the keyword that selects running-config display.
const CommandToken = "running-config"

// Renderer appends the running config of one entry. words holds any
// arguments after the entry name.
type Renderer func(ctx *Context, cfg *Config, words []string) error

// Entry is one running-config registration.
type Entry struct {
	Name     string
	Priority int

	// Feature gates the entry; nil means always enabled.
	Feature func(ctx *Context) bool

	Render Renderer

	// Args is the argument grammar selecting this entry in
	// "show running-config". It normally starts with an enum field named
	// "running-config" whose single value is Name.
	Args []grammar.ArgSpec
}

// Enabled reports whether the entry renders in ctx.
func (e *Entry) Enabled(ctx *Context) bool {
	return e.Feature == nil || e.Feature(ctx)
}

// Registry holds running-config entries ordered by priority.
type Registry struct {
	entries []*Entry
	byName  map[string]*Entry
	byPrio  map[int]string
	sealed  bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Entry),
		byPrio: make(map[int]string),
	}
}

// Register adds an entry. Names and priorities must be unique.
func (r *Registry) Register(e Entry) error {
	if r.sealed {
		return util.NewInternalError("running-config %q registered after start-up", e.Name)
	}
	if e.Name == "" || e.Render == nil {
		return util.NewDescriptionError("running-config entry needs a name and a renderer")
	}
	if _, dup := r.byName[e.Name]; dup {
		return util.NewDescriptionError("running-config %q registered twice", e.Name)
	}
	if other, dup := r.byPrio[e.Priority]; dup {
		return util.NewDescriptionError("running-config %q: priority %d already used by %q", e.Name, e.Priority, other)
	}

	entry := e
	r.byName[e.Name] = &entry
	r.byPrio[e.Priority] = e.Name
	r.entries = append(r.entries, &entry)
	sort.Slice(r.entries, func(i, j int) bool {
		return r.entries[i].Priority < r.entries[j].Priority
	})
	return nil
}

// MustRegister is Register for built-in entries; it panics on error.
func (r *Registry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.sealed = true
}

// Entries returns the entries in ascending priority order.
func (r *Registry) Entries() []*Entry {
	return append([]*Entry(nil), r.entries...)
}

// Lookup returns the named entry.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Render produces running-config text. With no words every enabled entry
// renders in priority order; otherwise words[0] names the entry and the
// remaining words are passed to it.
func (r *Registry) Render(ctx *Context, words []string) (string, error) {
	cfg := &Config{}
	if len(words) > 0 {
		e, ok := r.byName[words[0]]
		if !ok {
			return "", util.NewSemanticError("no running-config for %q", words[0])
		}
		if err := e.Render(ctx, cfg, words[1:]); err != nil {
			return "", err
		}
		return cfg.String(), nil
	}

	for _, e := range r.entries {
		if !e.Enabled(ctx) {
			continue
		}
		util.WithEntry(e.Name).Debug("rendering running-config")
		if err := e.Render(ctx, cfg, nil); err != nil {
			return "", err
		}
	}
	return cfg.String(), nil
}

// CommandArgs returns the argument grammar for "show running-config": the
// keyword followed by an optional choice among the entries' grammars.
func (r *Registry) CommandArgs() []grammar.ArgSpec {
	args := []grammar.ArgSpec{{Token: CommandToken, ShortHelp: "Show the current configuration"}}
	var choices []grammar.ArgSpec
	for _, e := range r.entries {
		if len(e.Args) > 0 {
			choices = append(choices, grammar.ArgSpec{Args: e.Args})
		}
	}
	if len(choices) > 0 {
		args = append(args, grammar.ArgSpec{Optional: true, Choices: choices})
	}
	return args
}
