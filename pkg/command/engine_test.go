package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/ctlsh/pkg/audit"
	"github.com/newtron-network/ctlsh/pkg/cli"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

const testModels = `
- name: interface-config
  primary-key: name
  cascade-delete: true
  fields:
    - {name: name, case: lower}
    - {name: mtu, type: integer, default: 1500}
    - {name: speed, default: auto}
    - {name: description, null-allowed: true}

- name: interface-alias
  fields:
    - {name: id}
    - {name: interface, references: interface-config}
`

const testCommands = `
- name: configure
  mode: login
  short-help: Enter configuration mode
  command-type: action
  submode-name: config
  no-supported: false
  action: push-mode-stack

- name: exit
  mode: login
  short-help: Leave the current mode
  command-type: action
  no-supported: false
  action: pop-mode-stack

- name: end
  mode: config*
  short-help: Leave configuration mode
  command-type: action
  no-supported: false
  action:
    proc: pop-mode-stack
    data: {to: login}

- name: interface
  mode: config*
  short-help: Enter interface submode
  doc-example: [interface eth1, no interface eth1]
  command-type: config-submode
  obj-type: interface-config
  submode-name: config-if
  args:
    - field: name
      pattern: '[A-Za-z]+[0-9]+'
      completion: complete-object-field
      short-help: Interface name

- name: mtu
  mode: config-if
  short-help: Set the MTU
  doc-example: [mtu 9000, no mtu]
  command-type: update-config
  obj-type: interface-config
  parent-field: name
  args:
    - field: mtu
      type: integer
      range: [68, 9216]
      optional-for-no: true
      short-help: MTU in bytes

- name: speed
  mode: config-if
  short-help: Set the link speed
  doc-example: [speed 10g, no speed]
  command-type: update-config
  obj-type: interface-config
  parent-field: name
  args:
    - field: speed
      type: enum
      values: [auto, 10g, 40g]
      optional-for-no: true
      short-help: Link speed

- name: spanning-tree
  mode: config-if
  short-help: Spanning tree options
  doc-example: spanning-tree portfast
  command-type: action
  no-supported: false
  action: record
  args:
    - choices:
        - token: portfast
          short-help: Skip listening and learning
        - token: bpduguard
          short-help: Shut down on BPDU
          action:
            - proc: record
              data: {guard: true}

- name: show
  mode: login
  short-help: Show interfaces
  doc-example: [show interface, show interface eth1]
  command-type: display-table
  obj-type: interface-config
  args:
    - interface
    - field: name
      optional: true
      completion: complete-object-field
      short-help: Interface name

- name: show
  mode: login
  short-help: Show interface counters
  doc-example: show counters eth1
  command-type: display-rest
  action:
    proc: display-rest
    url: counters/%(name)s
  args:
    - counters
    - field: name
      short-help: Interface name
`

// recorder is a custom action that remembers what it was called with.
type recorder struct {
	calls []map[string]interface{}
}

func (r *recorder) Run(inv *Invocation) error {
	data := make(map[string]interface{}, len(inv.Data))
	for k, v := range inv.Data {
		data[k] = v
	}
	r.calls = append(r.calls, data)
	return nil
}

type harness struct {
	t        *testing.T
	engine   *Engine
	backend  *store.MemoryBackend
	sess     *Session
	out      *bytes.Buffer
	warnings []string
	audit    *audit.MemoryLogger
	rec      *recorder
}

func newHarness(t *testing.T, backend store.Backend) *harness {
	t.Helper()
	models := model.NewRegistry()
	if err := models.LoadYAML([]byte(testModels)); err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	h := &harness{
		t:     t,
		sess:  NewSession("tester"),
		out:   &bytes.Buffer{},
		audit: &audit.MemoryLogger{},
		rec:   &recorder{},
	}
	if mb, ok := backend.(*store.MemoryBackend); ok {
		h.backend = mb
	}
	if backend == nil {
		h.backend = store.NewMemoryBackend()
		backend = h.backend
	}

	b := NewBuilder(models)
	b.AddAction("record", h.rec)
	if err := b.AddDescriptors([]byte(testCommands)); err != nil {
		t.Fatalf("AddDescriptors: %v", err)
	}
	e, err := b.Build(Options{
		Backend: backend,
		Out:     h.out,
		Warner:  WarnerFunc(func(msg string) { h.warnings = append(h.warnings, msg) }),
		Audit:   h.audit,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h.engine = e
	return h
}

func (h *harness) exec(line string) error {
	return h.engine.Execute(context.Background(), h.sess, line)
}

func (h *harness) run(lines ...string) {
	h.t.Helper()
	for _, l := range lines {
		if err := h.exec(l); err != nil {
			h.t.Fatalf("%q in %s: %v", l, h.sess.Mode(), err)
		}
	}
}

func (h *harness) rows(objType string) []store.Row {
	h.t.Helper()
	rows, err := h.backend.Query(context.Background(), objType, nil)
	if err != nil {
		h.t.Fatal(err)
	}
	return rows
}

func TestBuild_ExamplesMatch(t *testing.T) {
	h := newHarness(t, nil)
	for _, err := range h.engine.CheckExamples() {
		t.Error(err)
	}
}

func TestBuild_ReportsEveryProblem(t *testing.T) {
	models := model.NewRegistry()
	if err := models.LoadYAML([]byte(testModels)); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(models)
	err := b.AddDescriptors([]byte(`
- name: one
  mode: login
  action: no-such-action
- name: two
  mode: login
  command-type: update-config
  obj-type: no-such-type
`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Build(Options{Backend: store.NewMemoryBackend()})
	if !errors.Is(err, util.ErrDescription) {
		t.Fatalf("err = %v, want description error", err)
	}
	for _, want := range []string{"no-such-action", "no-such-type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestBuild_NeedsBackend(t *testing.T) {
	b := NewBuilder(model.NewRegistry())
	if _, err := b.Build(Options{}); !errors.Is(err, util.ErrInternal) {
		t.Errorf("err = %v, want internal error", err)
	}
}

func TestMatch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		line     string
		wantErr  error
		expected []string
	}{
		{"enum value", "config-if", "speed 100g", util.ErrArgumentValidation, []string{"auto", "10g", "40g"}},
		{"integer range", "config-if", "mtu 10", util.ErrRange, nil},
		{"not an integer", "config-if", "mtu big", util.ErrArgumentValidation, nil},
		{"ambiguous prefix", "config-if", "sp portfast", util.ErrAmbiguous, []string{"spanning-tree", "speed"}},
		{"missing value", "config", "interface", util.ErrSyntax, []string{"<name>"}},
		{"trailing word", "config-if", "mtu 9000 jumbo", util.ErrSyntax, nil},
		{"choice keyword", "config-if", "spanning-tree fast", util.ErrSyntax, []string{"portfast", "bpduguard"}},
		{"pattern", "config", "interface 1eth", util.ErrArgumentValidation, nil},
		{"wrong mode", "login", "mtu 9000", util.ErrMissing, nil},
		{"no form unsupported", "config-if", "no spanning-tree portfast", util.ErrMissing, nil},
		{"bare no", "config", "no", util.ErrSyntax, nil},
		{"show keyword", "login", "show bogus", util.ErrSyntax, []string{"interface", "counters", "running-config"}},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Match(tt.mode, tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Match(%q) err = %v, want %v", tt.line, err, tt.wantErr)
			}
			if tt.expected == nil {
				return
			}
			if diff := cmp.Diff(tt.expected, util.ExpectedTokens(err)); diff != "" {
				t.Errorf("expected tokens (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatch_Accepts(t *testing.T) {
	tests := []struct {
		mode string
		line string
		want string
	}{
		{"login", "conf", "configure"},
		{"config", "int eth1", "interface"},
		{"config-if", "interface eth2", "interface"},
		{"config-if", "mtu 9216", "mtu"},
		{"config-if", "no mtu", "mtu"},
		{"config-if", "no mtu 1500", "mtu"},
		{"config-if", "speed 40G", "speed"},
		{"config-if", "exit", "exit"},
		{"config-if", "show interface", "show"},
		{"login", "show running-config", "show"},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := h.engine.Match(tt.mode, tt.line)
			if err != nil {
				t.Fatalf("Match(%q): %v", tt.line, err)
			}
			if cmd.Name != tt.want {
				t.Errorf("matched %s, want %s", cmd.Name, tt.want)
			}
		})
	}
	if h.backend.Calls != 0 {
		t.Errorf("matching made %d backend calls", h.backend.Calls)
	}
}

func TestMatch_MissingSuggests(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.engine.Match("config", "intrface eth1")
	if !errors.Is(err, util.ErrMissing) {
		t.Fatalf("err = %v, want missing command", err)
	}
	if got, want := err.Error(), "No such command: intrface (did you mean: interface?)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestBind(t *testing.T) {
	tests := []struct {
		mode string
		line string
		want map[string]interface{}
	}{
		{"config", "interface ETH1", map[string]interface{}{"name": "eth1"}},
		{"config-if", "speed 40G", map[string]interface{}{"speed": "40g"}},
		{"config-if", "mtu 9000", map[string]interface{}{"mtu": int64(9000)}},
		{"config-if", "no mtu", map[string]interface{}{"mtu": nil}},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := h.engine.Bind(tt.mode, tt.line)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Bind (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecute_ModeStack(t *testing.T) {
	h := newHarness(t, nil)
	steps := []struct {
		line   string
		prompt string
	}{
		{"configure", "sw(config)# "},
		{"interface eth1", "sw(config-if)# "},
		{"interface eth2", "sw(config-if)# "},
		{"exit", "sw(config)# "},
		{"interface eth3", "sw(config-if)# "},
		{"end", "sw> "},
		{"configure", "sw(config)# "},
		{"exit", "sw> "},
	}
	for _, s := range steps {
		h.run(s.line)
		if got := h.sess.Prompt("sw"); got != s.prompt {
			t.Fatalf("after %q prompt = %q, want %q", s.line, got, s.prompt)
		}
	}
	if err := h.exec("exit"); !errors.Is(err, ErrExit) {
		t.Errorf("exit at login: err = %v, want ErrExit", err)
	}
	if got := len(h.rows("interface-config")); got != 3 {
		t.Errorf("%d interfaces written, want 3", got)
	}
}

func TestExecute_SubmodeFrame(t *testing.T) {
	h := newHarness(t, nil)
	h.run("configure", "interface ETH7")
	want := ModeFrame{Mode: "config-if", ObjType: "interface-config", ObjID: "eth7"}
	if diff := cmp.Diff(want, h.sess.Current()); diff != "" {
		t.Errorf("frame (-want +got):\n%s", diff)
	}
	if got := h.sess.Path(); got != "config/config-if[eth7]" {
		t.Errorf("Path() = %q", got)
	}
}

func TestExecute_UpdateConfigInSubmode(t *testing.T) {
	h := newHarness(t, nil)
	h.run("configure", "interface eth1", "mtu 9000", "speed 10G")

	want := []store.Row{{"name": "eth1", "mtu": int64(9000), "speed": "10g"}}
	if diff := cmp.Diff(want, h.rows("interface-config")); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}

	h.run("no mtu", "no speed")
	want = []store.Row{{"name": "eth1", "mtu": int64(1500), "speed": "auto"}}
	if diff := cmp.Diff(want, h.rows("interface-config")); diff != "" {
		t.Errorf("rows after no (-want +got):\n%s", diff)
	}

	h.run("exit", "no interface eth1")
	if rows := h.rows("interface-config"); len(rows) != 0 {
		t.Errorf("rows after no interface: %v", rows)
	}
}

func TestExecute_DeleteCascades(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.Seed("interface-alias", "id", store.Row{"id": "uplink", "interface": "eth1"})
	h.run("configure", "interface eth1", "exit", "no interface eth1")

	if rows := h.rows("interface-alias"); len(rows) != 0 {
		t.Errorf("alias not cascaded: %v", rows)
	}
	events, err := h.audit.Query(audit.Filter{Operation: audit.OpDelete})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range events {
		got = append(got, e.ObjType+" "+e.Key)
	}
	if diff := cmp.Diff([]string{"interface-alias uplink", "interface-config eth1"}, got); diff != "" {
		t.Errorf("deletes (-want +got):\n%s", diff)
	}
	for _, e := range events {
		if e.Command != "no interface eth1" || e.User != "tester" {
			t.Errorf("event %+v", e)
		}
	}

	if err := h.exec("no interface eth1"); !errors.Is(err, util.ErrSemantic) {
		t.Errorf("deleting a missing interface: err = %v", err)
	}
}

func TestExecute_ActionOverride(t *testing.T) {
	h := newHarness(t, nil)
	h.run("configure", "interface eth1", "spanning-tree portfast", "spanning-tree bpduguard")

	if len(h.rec.calls) != 2 {
		t.Fatalf("record called %d times", len(h.rec.calls))
	}
	if _, ok := h.rec.calls[0]["guard"]; ok {
		t.Errorf("first call saw guard: %v", h.rec.calls[0])
	}
	if h.rec.calls[1]["guard"] != true {
		t.Errorf("second call data = %v, want guard", h.rec.calls[1])
	}
}

func TestExecute_Display(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.Seed("interface-config", "name",
		store.Row{"name": "eth2", "mtu": "9000"},
		store.Row{"name": "eth1", "mtu": 1500, "description": "uplink"},
	)

	h.run("show interface")
	want := "" +
		"Name  Mtu   Speed  Description\n" +
		"----  ---   -----  -----------\n" +
		"eth1  1500         uplink\n" +
		"eth2  9000         \n"
	if diff := cmp.Diff(want, h.out.String()); diff != "" {
		t.Errorf("show interface (-want +got):\n%s", diff)
	}

	h.out.Reset()
	h.run("show interface eth9")
	if got := h.out.String(); got != EmptyResult+"\n" {
		t.Errorf("show interface eth9 = %q", got)
	}
}

func TestExecute_DisplayRest(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.SetResource("counters/eth1", map[string]interface{}{"rx": 10.0, "tx": 20.0})

	h.run("show counters eth1")
	got := h.out.String()
	for _, want := range []string{"Rx", "Tx", "10", "20"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	err := h.exec("show counters eth9")
	if !errors.Is(err, util.ErrRest) {
		t.Fatalf("err = %v, want REST error", err)
	}
	if !strings.HasPrefix(err.Error(), "REST: Error: REST API; type = not-found") {
		t.Errorf("Error() = %q", err.Error())
	}
}

// failingBackend fails every write with a plain error.
type failingBackend struct {
	*store.MemoryBackend
}

func (failingBackend) Create(context.Context, string, string, store.Row) error {
	return errors.New("connection refused")
}

func TestExecute_BackendErrorIsRest(t *testing.T) {
	h := newHarness(t, failingBackend{store.NewMemoryBackend()})
	h.run("configure")
	err := h.exec("interface eth1")
	if !errors.Is(err, util.ErrRest) {
		t.Fatalf("err = %v, want REST error", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q", err.Error())
	}
	if h.sess.Mode() != "config" {
		t.Errorf("mode = %s after a failed submode entry", h.sess.Mode())
	}
	events, _ := h.audit.Query(audit.Filter{FailureOnly: true})
	if len(events) != 1 {
		t.Errorf("%d failed events logged, want 1", len(events))
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name string
		mode string
		line string
		want []string
	}{
		{"login commands", "login", "", []string{"configure", "exit", "show"}},
		{"command prefix", "login", "sh", []string{"show"}},
		{"show keywords", "login", "show ", []string{"counters", "interface", "running-config"}},
		{"submode commands", "config-if", "s", []string{"show", "spanning-tree", "speed"}},
		{"negated commands", "config-if", "no ", []string{"interface", "mtu", "speed"}},
		{"enum values", "config-if", "speed ", []string{"10g", "40g", "auto"}},
		{"enum prefix", "config-if", "speed 4", []string{"40g"}},
		{"choice tokens", "config-if", "spanning-tree ", []string{"bpduguard", "portfast"}},
		{"nothing after a full command", "config-if", "mtu 9000 ", []string{}},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := NewSession("tester")
			if tt.mode != "login" {
				sess.Push(ModeFrame{Mode: "config"})
			}
			if tt.mode == "config-if" {
				sess.Push(ModeFrame{Mode: "config-if", ObjType: "interface-config", ObjID: "eth1"})
			}
			got, err := h.engine.Complete(context.Background(), sess, tt.line)
			if err != nil {
				t.Fatal(err)
			}
			names := cli.CandidateNames(got)
			if names == nil {
				names = []string{}
			}
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("Complete(%q) (-want +got):\n%s", tt.line, diff)
			}
		})
	}
	if h.backend.Calls != 0 {
		t.Errorf("completion made %d backend calls", h.backend.Calls)
	}
}

func TestComplete_ObjectField(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.Seed("interface-config", "name", store.Row{"name": "eth1"}, store.Row{"name": "eth2"}, store.Row{"name": "lo0"})
	h.run("configure")

	got, err := h.engine.Complete(context.Background(), h.sess, "interface e")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"eth1", "eth2"}, cli.CandidateNames(got)); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
}

func TestHelp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"value placeholder", "mtu ", []string{"<68-9216>"}},
		{"optional in no form", "no mtu ", []string{"<68-9216>", cli.EndOfCommand}},
		{"complete command", "speed auto ", []string{cli.EndOfCommand}},
	}
	h := newHarness(t, nil)
	h.run("configure", "interface eth1")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.engine.Help(context.Background(), h.sess, tt.line)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, cli.CandidateNames(got)); diff != "" {
				t.Errorf("Help(%q) (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}
