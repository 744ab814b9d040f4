package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/newtron-network/ctlsh/pkg/audit"
	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/runconfig"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// NegationWord prefixes the negated form of a command.
const NegationWord = "no"

// Engine executes and completes command lines. It is immutable once
// built; per-shell state lives in a Session.
type Engine struct {
	models      *model.Registry
	commands    []*grammar.Command
	actions     map[string]Action
	handlers    map[string]DataHandler
	completers  map[string]Completer
	validations map[string]Validation
	formats     map[string]*Format
	formatters  map[string]Formatter
	runConfig   *runconfig.Registry

	backend store.Backend
	out     io.Writer
	warner  Warner
	audit   audit.Logger
}

// Models returns the object type registry.
func (e *Engine) Models() *model.Registry { return e.models }

// Backend returns the backend commands run against.
func (e *Engine) Backend() store.Backend { return e.backend }

// RunConfig returns the running-config registry.
func (e *Engine) RunConfig() *runconfig.Registry { return e.runConfig }

// Commands returns every compiled command, sorted by name.
func (e *Engine) Commands() []*grammar.Command {
	return append([]*grammar.Command(nil), e.commands...)
}

// Invocation is one execution of a matched command: the bound data, the
// action being run, and the result handed from one action to the next.
type Invocation struct {
	Ctx     context.Context
	Engine  *Engine
	Session *Session
	Command *grammar.Command
	Negated bool
	Line    string

	// Data is the working map built by matching and data handlers.
	Data map[string]interface{}

	// Action is the chain entry currently running.
	Action grammar.Action

	// Result is the rows produced by a query action, for display.
	Result []store.Row
}

// Out is where command output goes.
func (inv *Invocation) Out() io.Writer { return inv.Engine.out }

// Backend is the backend the command runs against.
func (inv *Invocation) Backend() store.Backend { return inv.Engine.backend }

// Models is the object type registry.
func (inv *Invocation) Models() *model.Registry { return inv.Engine.models }

// Warnf sends a non-fatal warning to the warning channel.
func (inv *Invocation) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	util.WithInvocation(inv.Command.Name, inv.Session.Mode(), inv.Session.User).Debugf("warning: %s", msg)
	inv.Engine.warner.Warn(msg)
}

// ObjType is the object type the current action works on: the action's
// own obj-type, else the command's.
func (inv *Invocation) ObjType() string {
	if inv.Action.ObjType != "" {
		return inv.Action.ObjType
	}
	return inv.Command.ObjType
}

// Param resolves the current action's data binding for key.
func (inv *Invocation) Param(key string) (interface{}, bool) {
	for _, b := range inv.Action.Data {
		if b.Key == key {
			return b.Value.Resolve(inv.lookup), true
		}
	}
	return nil, false
}

func (inv *Invocation) lookup(field string) interface{} {
	return inv.Data[field]
}

// Execute runs one command line in sess. The URL cache is cleared first,
// so reads never see state older than the command.
func (e *Engine) Execute(ctx context.Context, sess *Session, line string) error {
	store.ClearCache(e.backend)

	words, err := util.SplitWords(line)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return nil
	}
	m, err := e.match(ctx, e.backend, sess.Mode(), words)
	if err != nil {
		return backendError(err)
	}

	inv := &Invocation{
		Ctx:     ctx,
		Engine:  e,
		Session: sess,
		Command: m.cmd,
		Negated: m.negated,
		Line:    strings.Join(words, " "),
		Data:    make(map[string]interface{}),
	}
	log := util.WithInvocation(m.cmd.Name, sess.Mode(), sess.User)
	log.Debugf("matched %q", inv.Line)

	if err := e.bind(inv, m); err != nil {
		return backendError(err)
	}
	for _, a := range m.chain() {
		act, ok := e.actions[a.Proc]
		if !ok {
			return util.NewInternalError("action %q not registered", a.Proc)
		}
		inv.Action = a
		applyBindings(inv.Data, a.Data, inv.lookup)
		log.WithField("action", a.Proc).Debug("running action")
		if err := act.Run(inv); err != nil {
			return backendError(err)
		}
	}
	return nil
}

// backendError reports a plain error from a backend as a REST error so
// every failed write or read reaches the user the same way.
func backendError(err error) error {
	if _, ok := util.AsCommandError(err); ok || errors.Is(err, ErrExit) {
		return err
	}
	return util.NewRestError("backend", "", err.Error())
}

// Match parses line in mode without running anything. Data handlers are
// not run and validations get no backend, so Match never touches it.
func (e *Engine) Match(mode, line string) (*grammar.Command, error) {
	words, err := util.SplitWords(line)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, util.NewSyntaxError("empty command")
	}
	m, err := e.match(context.Background(), nil, mode, words)
	if err != nil {
		return nil, err
	}
	return m.cmd, nil
}

// Bind matches line in mode and returns the working data map as the
// matcher leaves it, before data handlers run. Handler-bound fields hold
// the raw value under the field name.
func (e *Engine) Bind(mode, line string) (map[string]interface{}, error) {
	words, err := util.SplitWords(line)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, util.NewSyntaxError("empty command")
	}
	m, err := e.match(context.Background(), nil, mode, words)
	if err != nil {
		return nil, err
	}
	data := make(map[string]interface{})
	applyBindings(data, m.cmd.Data, nil)
	for _, s := range m.steps {
		s.apply(data)
		if s.field != nil {
			data[s.field.Name] = s.value
		}
	}
	return data, nil
}

// bind builds the working data map: command data first, then each matched
// node's data followed by its field value or data handler.
func (e *Engine) bind(inv *Invocation, m *matchResult) error {
	applyBindings(inv.Data, m.cmd.Data, inv.lookup)
	for _, s := range m.steps {
		s.apply(inv.Data)
		if s.field == nil {
			continue
		}
		if s.reset {
			inv.Data[s.field.Name] = nil
			continue
		}
		if s.field.DataHandler == "" {
			inv.Data[s.field.Name] = s.value
			continue
		}
		h, ok := e.handlers[s.field.DataHandler]
		if !ok {
			return util.NewInternalError("data handler %q not registered", s.field.DataHandler)
		}
		if err := h.Handle(inv, s.field, s.value); err != nil {
			return err
		}
	}
	return nil
}

func applyBindings(data map[string]interface{}, bindings []grammar.Binding, lookup func(string) interface{}) {
	if lookup == nil {
		lookup = func(f string) interface{} { return data[f] }
	}
	for _, b := range bindings {
		data[b.Key] = b.Value.Resolve(lookup)
	}
}

// RenderRunningConfig renders the running configuration, or the entry
// named by words[0].
func (e *Engine) RenderRunningConfig(ctx context.Context, words []string) (string, error) {
	store.ClearCache(e.backend)
	rc := &runconfig.Context{
		Ctx:     ctx,
		Backend: e.backend,
		Models:  e.models,
		Warn:    e.warner.Warn,
	}
	return e.runConfig.Render(rc, words)
}

// CheckExamples matches every documented example of every command in the
// command's home mode and returns one error per example that fails.
func (e *Engine) CheckExamples() []error {
	var errs []error
	for _, cmd := range e.commands {
		mode := cmd.HomeMode()
		for _, ex := range cmd.Examples {
			if _, err := e.Match(mode, ex); err != nil {
				errs = append(errs, fmt.Errorf("%s [%s] %q: %w", cmd.Name, mode, ex, err))
			}
		}
	}
	return errs
}

// recordWrite logs a backend write to the audit log, if one is set.
func (inv *Invocation) recordWrite(objType string, op audit.Operation, key string, changes store.Row, start time.Time, err error) {
	if inv.Engine.audit == nil {
		return
	}
	event := audit.NewEvent(inv.Session.User, objType, op).
		WithCommand(inv.Session.Mode(), inv.Line).
		WithKey(key).
		WithChanges(changes).
		WithResult(err).
		WithDuration(time.Since(start))
	if logErr := inv.Engine.audit.Log(event); logErr != nil {
		util.Warnf("audit: %v", logErr)
	}
}

// commandsIn returns the names of commands applicable in mode.
func (e *Engine) commandsIn(mode string, negated bool) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range e.commands {
		if !c.AppliesTo(mode) || (negated && !c.NoSupported) || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
