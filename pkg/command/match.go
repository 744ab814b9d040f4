package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

var (
	dpidPattern   = regexp.MustCompile(`^([0-9a-fA-F]{2}:){7}[0-9a-fA-F]{2}$`)
	macPattern    = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)
	dotMACPattern = regexp.MustCompile(`^[0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4}$`)
	aliasPattern  = regexp.MustCompile(`^[A-Za-z_][-\w.]*$`)
)

// maxSuggestions bounds the "did you mean" list of a missing command.
const maxSuggestions = 3

// bindStep is one entry of the data merge performed after a match: the
// data attached to a matched node, then (for fields) the captured value.
type bindStep struct {
	data  []grammar.Binding
	field *grammar.Field
	value interface{}
	reset bool
}

func (s bindStep) apply(data map[string]interface{}) {
	applyBindings(data, s.data, func(name string) interface{} {
		if s.field != nil && name == s.field.Name {
			return s.value
		}
		return data[name]
	})
}

type matchResult struct {
	cmd      *grammar.Command
	negated  bool
	steps    []bindStep
	override []grammar.Action
}

// chain returns the actions to run: the innermost matched node's actions,
// else the command's, else the defaults of its command type.
func (m *matchResult) chain() []grammar.Action {
	if len(m.override) > 0 {
		return m.override
	}
	explicit, defaults := m.cmd.Actions, defaultChains[m.cmd.Type].do
	if m.negated {
		explicit, defaults = m.cmd.NoActions, defaultChains[m.cmd.Type].undo
	}
	if len(explicit) > 0 {
		return explicit
	}
	out := make([]grammar.Action, len(defaults))
	for i, proc := range defaults {
		out[i] = grammar.Action{Proc: proc}
	}
	return out
}

// failure is a match error with the word position it occurred at.
// Committed failures happened after a literal or tag was consumed and
// are not retried by enclosing optional or choice nodes.
type failure struct {
	err       error
	pos       int
	committed bool
}

type mstate struct {
	pos           int
	steps         []bindStep
	override      []grammar.Action
	overrideDepth int
	skipped       *failure
}

func (st mstate) withStep(s bindStep) mstate {
	st.steps = append(st.steps[:len(st.steps):len(st.steps)], s)
	return st
}

type matcher struct {
	e       *Engine
	ctx     context.Context
	backend store.Backend // nil when only parsing
	words   []string
	negated bool
	objType *model.ObjectType
}

// match resolves the command word and matches the remaining words against
// every descriptor of that name applicable in mode. Field validations
// see b, which is nil when the line is only parsed.
func (e *Engine) match(ctx context.Context, b store.Backend, mode string, words []string) (*matchResult, error) {
	negated := false
	if words[0] == NegationWord {
		negated = true
		words = words[1:]
		if len(words) == 0 {
			return nil, util.NewSyntaxError("incomplete command")
		}
	}

	name, err := resolveName(words[0], e.commandsIn(mode, negated))
	if err != nil {
		return nil, err
	}
	args := words[1:]

	var (
		wins  []*matchResult
		fails []*failure
	)
	for _, cmd := range e.commands {
		if cmd.Name != name || !cmd.AppliesTo(mode) || (negated && !cmd.NoSupported) {
			continue
		}
		r, f := e.matchCommand(ctx, b, cmd, negated, args)
		if f != nil {
			fails = append(fails, f)
			continue
		}
		wins = append(wins, r)
	}

	switch len(wins) {
	case 0:
		return nil, furthest(fails)
	case 1:
		return wins[0], nil
	}
	var helps []string
	for _, w := range wins {
		helps = append(helps, w.cmd.ShortHelp)
	}
	return nil, util.NewAmbiguousError(strings.Join(words, " "), helps)
}

func (e *Engine) matchCommand(ctx context.Context, b store.Backend, cmd *grammar.Command, negated bool, args []string) (*matchResult, *failure) {
	m := &matcher{e: e, ctx: ctx, backend: b, words: args, negated: negated}
	if cmd.ObjType != "" {
		m.objType, _ = e.models.Lookup(cmd.ObjType)
	}
	st, _, f := m.sequence(cmd.Args, mstate{overrideDepth: -1}, 0)
	if f != nil {
		return nil, f
	}
	if st.pos < len(args) {
		if st.skipped != nil && st.skipped.pos == st.pos {
			return nil, &failure{err: st.skipped.err, pos: st.pos}
		}
		return nil, &failure{err: errUnexpected(args[st.pos], nil), pos: st.pos}
	}
	return &matchResult{cmd: cmd, negated: negated, steps: st.steps, override: st.override}, nil
}

func (m *matcher) node(n grammar.Node, st mstate, depth int) (mstate, bool, *failure) {
	switch n := n.(type) {
	case *grammar.Literal:
		return m.literal(n, st, depth)
	case *grammar.Field:
		return m.field(n, st, depth)
	case *grammar.Choice:
		return m.choice(n, st, depth)
	case *grammar.Sequence:
		return m.sequence(n, st, depth)
	}
	return st, false, &failure{err: util.NewInternalError("unknown node %T", n), pos: st.pos, committed: true}
}

func (m *matcher) literal(n *grammar.Literal, st mstate, depth int) (mstate, bool, *failure) {
	if st.pos >= len(m.words) {
		return st, false, &failure{err: errIncomplete([]string{n.Token}), pos: st.pos}
	}
	if m.words[st.pos] != n.Token {
		return st, false, &failure{err: errUnexpected(m.words[st.pos], []string{n.Token}), pos: st.pos}
	}
	st.pos++
	if len(n.Data) > 0 {
		st = st.withStep(bindStep{data: n.Data})
	}
	return m.overrideActions(st, &n.Attrs, depth), true, nil
}

func (m *matcher) field(n *grammar.Field, st mstate, depth int) (mstate, bool, *failure) {
	pos := st.pos
	committed := false
	if n.Tag != "" {
		if pos >= len(m.words) {
			return st, false, &failure{err: errIncomplete([]string{n.Tag}), pos: pos}
		}
		if m.words[pos] != n.Tag {
			return st, false, &failure{err: errUnexpected(m.words[pos], []string{n.Tag}), pos: pos}
		}
		pos++
		committed = true
	}
	if pos >= len(m.words) {
		return st, committed, &failure{err: errIncomplete([]string{placeholder(n)}), pos: pos, committed: committed}
	}
	v, err := m.value(n, m.words[pos])
	if err != nil {
		return st, committed, &failure{err: err, pos: pos, committed: committed}
	}
	st.pos = pos + 1
	st = st.withStep(bindStep{data: n.Data, field: n, value: v})
	return m.overrideActions(st, &n.Attrs, depth), committed, nil
}

func (m *matcher) sequence(n *grammar.Sequence, st mstate, depth int) (mstate, bool, *failure) {
	start := st
	if len(n.Data) > 0 {
		st = st.withStep(bindStep{data: n.Data})
	}
	committed := false
	for _, item := range n.Items {
		next, c, f := m.node(item, st, depth+1)
		if f == nil {
			st = next
			committed = committed || c
			continue
		}
		attrs := item.Attributes()
		if !f.committed && attrs.Skippable(m.negated) {
			st.skipped = &failure{err: f.err, pos: st.pos}
			if m.negated && attrs.OptionalForNo {
				st = resetFields(st, item)
			}
			continue
		}
		return start, committed || f.committed, &failure{err: f.err, pos: f.pos, committed: committed || f.committed}
	}
	return m.overrideActions(st, &n.Attrs, depth), committed, nil
}

func (m *matcher) choice(n *grammar.Choice, st mstate, depth int) (mstate, bool, *failure) {
	start := st
	if len(n.Data) > 0 {
		st = st.withStep(bindStep{data: n.Data})
	}

	// Compile rejects choices whose alternatives share a leading word, so
	// at most one alternative is led by the current word.
	var (
		leading []string
		led     grammar.Node
		free    []grammar.Node
	)
	for _, alt := range n.Alternatives {
		tok, ok := grammar.LeadingToken(alt, m.negated)
		if !ok {
			free = append(free, alt)
			leading = append(leading, placeholderOf(alt))
			continue
		}
		leading = append(leading, tok)
		if led == nil && st.pos < len(m.words) && m.words[st.pos] == tok {
			led = alt
		}
	}
	if st.pos >= len(m.words) {
		return start, false, &failure{err: errIncomplete(leading), pos: st.pos}
	}

	if led != nil {
		next, _, f := m.node(led, st, depth+1)
		if f != nil {
			f.committed = true
			return start, true, f
		}
		return m.overrideActions(next, &n.Attrs, depth), true, nil
	}

	var fails []*failure
	for _, alt := range free {
		next, c, f := m.node(alt, st, depth+1)
		if f == nil {
			return m.overrideActions(next, &n.Attrs, depth), c, nil
		}
		if f.committed {
			return start, true, f
		}
		fails = append(fails, f)
	}
	if len(fails) == 0 {
		return start, false, &failure{err: errUnexpected(m.words[st.pos], leading), pos: st.pos}
	}
	return start, false, mergeFailures(m.words[st.pos], fails)
}

// overrideActions makes the node's actions the chain to run, unless a
// deeper node already supplied one.
func (m *matcher) overrideActions(st mstate, a *grammar.Attrs, depth int) mstate {
	acts := a.Actions
	if m.negated {
		acts = a.NoActions
	}
	if len(acts) == 0 || depth < st.overrideDepth {
		return st
	}
	st.override = acts
	st.overrideDepth = depth
	return st
}

// resetFields binds Reset for every field under n, for optional-for-no
// nodes left out of a negated command.
func resetFields(st mstate, n grammar.Node) mstate {
	switch n := n.(type) {
	case *grammar.Field:
		st = st.withStep(bindStep{field: n, reset: true})
	case *grammar.Sequence:
		for _, item := range n.Items {
			st = resetFields(st, item)
		}
	case *grammar.Choice:
		for _, alt := range n.Alternatives {
			st = resetFields(st, alt)
		}
	}
	return st
}

// value validates word against the field's type, constraints and named
// validations, and returns the value to bind.
func (m *matcher) value(f *grammar.Field, word string) (interface{}, error) {
	v, err := m.convert(f, word)
	if err != nil || len(f.Validations) == 0 || m.e == nil {
		return v, err
	}
	req := &ValidationRequest{
		Ctx:     m.ctx,
		Models:  m.e.models,
		Field:   f,
		ObjType: m.objType,
		Backend: m.backend,
	}
	for _, name := range f.Validations {
		val, ok := m.e.validations[name]
		if !ok {
			return nil, util.NewInternalError("validation %q not registered", name)
		}
		req.Value = v
		if v, err = val.Validate(req); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// convert checks word against the field's type and constraints.
func (m *matcher) convert(f *grammar.Field, word string) (interface{}, error) {
	switch f.Type {
	case grammar.FieldInteger:
		n, err := strconv.ParseInt(word, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			if f.Range != nil {
				return nil, util.NewRangeError("%s: %s is outside %d..%d", f.Name, word, f.Range.Lo, f.Range.Hi)
			}
			return nil, util.NewRangeError("%s: %s is out of range", f.Name, word)
		}
		if err != nil {
			return nil, util.NewArgumentValidationError(fmt.Sprintf("%s: %q is not an integer", f.Name, word))
		}
		if f.Range != nil && !f.Range.Contains(n) {
			return nil, util.NewRangeError("%s: %d is outside %d..%d", f.Name, n, f.Range.Lo, f.Range.Hi)
		}
		return n, nil

	case grammar.FieldEnum:
		for _, v := range f.Values {
			if strings.EqualFold(v, word) {
				return v, nil
			}
		}
		return nil, util.NewArgumentValidationError(
			fmt.Sprintf("%s: %q is not one of %s", f.Name, word, strings.Join(f.Values, ", ")), f.Values...)

	case grammar.FieldBoolean:
		switch strings.ToLower(word) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, util.NewArgumentValidationError(fmt.Sprintf("%s: %q is not a boolean", f.Name, word), "true", "false")

	case grammar.FieldDPID:
		switch {
		case dpidPattern.MatchString(word):
			return strings.ToLower(word), nil
		case aliasPattern.MatchString(word):
			return word, nil
		}
		return nil, util.NewArgumentValidationError(fmt.Sprintf("%s: %q is not a DPID or alias", f.Name, word))

	case grammar.FieldHost:
		switch {
		case macPattern.MatchString(word):
			return strings.ToLower(word), nil
		case dotMACPattern.MatchString(word):
			return dottedToColonMAC(word), nil
		case aliasPattern.MatchString(word):
			return word, nil
		}
		return nil, util.NewArgumentValidationError(fmt.Sprintf("%s: %q is not a MAC address or alias", f.Name, word))
	}

	if f.Pattern != nil && !f.Pattern.MatchString(word) {
		return nil, util.NewArgumentValidationError(fmt.Sprintf("%s: %q is not valid", f.Name, word))
	}
	if f.Length != nil && !f.Length.Contains(int64(len(word))) {
		return nil, util.NewRangeError("%s: length %d is outside %d..%d", f.Name, len(word), f.Length.Lo, f.Length.Hi)
	}
	if m.objType != nil {
		if mf, ok := m.objType.Field(f.Name); ok {
			word = mf.Fold(word)
		}
	}
	return word, nil
}

// dottedToColonMAC converts "0011.2233.4455" to "00:11:22:33:44:55".
func dottedToColonMAC(s string) string {
	hex := strings.ToLower(strings.ReplaceAll(s, ".", ""))
	parts := make([]string, 6)
	for i := range parts {
		parts[i] = hex[2*i : 2*i+2]
	}
	return strings.Join(parts, ":")
}

// resolveName finds the command named by word: an exact name, else the
// single name word abbreviates.
func resolveName(word string, names []string) (string, error) {
	var matches []string
	for _, n := range names {
		if n == word {
			return n, nil
		}
		if strings.HasPrefix(n, word) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return "", util.NewMissingError(word, suggest(word, names)...)
	case 1:
		return matches[0], nil
	}
	return "", util.NewAmbiguousError(word, matches)
}

// suggest returns up to maxSuggestions names close to word: fuzzy
// subsequence matches first, then names within edit distance two.
func suggest(word string, names []string) []string {
	ranks := fuzzy.RankFindFold(word, names)
	sort.Sort(ranks)
	seen := make(map[string]bool)
	var out []string
	for _, r := range ranks {
		if !seen[r.Target] {
			seen[r.Target] = true
			out = append(out, r.Target)
		}
	}
	for _, n := range names {
		if !seen[n] && fuzzy.LevenshteinDistance(strings.ToLower(word), n) <= 2 {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// furthest picks the error to report when no descriptor matched: the one
// that got furthest into the input. Syntax errors tied at that position
// are merged so the user sees every accepted word.
func furthest(fails []*failure) error {
	if len(fails) == 0 {
		return util.NewInternalError("no descriptor tried")
	}
	best := fails[0]
	for _, f := range fails[1:] {
		if f.pos > best.pos {
			best = f
		}
	}
	var (
		expected []string
		tied     int
	)
	for _, f := range fails {
		if f.pos != best.pos {
			continue
		}
		if !errors.Is(f.err, util.ErrSyntax) {
			return best.err
		}
		tied++
		expected = append(expected, util.ExpectedTokens(f.err)...)
	}
	if tied == 1 {
		return best.err
	}
	ce, _ := util.AsCommandError(best.err)
	merged := *ce
	merged.ExpectedTokens = dedupe(expected)
	if i := strings.LastIndex(merged.Message, "; expected "); i >= 0 {
		merged.Message = merged.Message[:i]
	}
	if len(merged.ExpectedTokens) > 0 {
		merged.Message += "; expected " + strings.Join(merged.ExpectedTokens, ", ")
	}
	return &merged
}

// mergeFailures combines the failures of a choice's value alternatives.
// When every alternative rejected the word as an invalid argument, the
// result lists the union of their expected tokens.
func mergeFailures(word string, fails []*failure) *failure {
	if len(fails) == 1 {
		return fails[0]
	}
	var expected []string
	for _, f := range fails {
		if f.pos != fails[0].pos || !errors.Is(f.err, util.ErrArgumentValidation) {
			best := fails[0]
			for _, g := range fails[1:] {
				if g.pos > best.pos {
					best = g
				}
			}
			return best
		}
		expected = append(expected, util.ExpectedTokens(f.err)...)
	}
	expected = dedupe(expected)
	msg := fmt.Sprintf("%q is not valid here", word)
	if len(expected) > 0 {
		msg = fmt.Sprintf("%q is not one of %s", word, strings.Join(expected, ", "))
	}
	return &failure{err: util.NewArgumentValidationError(msg, expected...), pos: fails[0].pos}
}

func errIncomplete(expected []string) error {
	e := util.NewSyntaxError("incomplete command")
	if len(expected) > 0 {
		e.ExpectedTokens = dedupe(expected)
		e.Message += "; expected " + strings.Join(e.ExpectedTokens, ", ")
	}
	return e
}

func errUnexpected(word string, expected []string) error {
	e := util.NewSyntaxError("unexpected argument %q", word)
	if len(expected) > 0 {
		e.ExpectedTokens = dedupe(expected)
		e.Message += "; expected " + strings.Join(e.ExpectedTokens, ", ")
	}
	return e
}

// placeholder names a field's value in diagnostics and help, e.g.
// "<access-priority>" or "<0-32767>".
func placeholder(f *grammar.Field) string {
	if f.CompletionText != "" {
		return f.CompletionText
	}
	if f.Type == grammar.FieldInteger && f.Range != nil {
		return fmt.Sprintf("<%d-%d>", f.Range.Lo, f.Range.Hi)
	}
	return "<" + f.Name + ">"
}

func placeholderOf(n grammar.Node) string {
	switch n := n.(type) {
	case *grammar.Field:
		return placeholder(n)
	case *grammar.Sequence:
		if len(n.Items) > 0 {
			return placeholderOf(n.Items[0])
		}
	case *grammar.Literal:
		return n.Token
	}
	return "<value>"
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
