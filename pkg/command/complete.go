package command

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/newtron-network/ctlsh/pkg/cli"
	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// completion accumulates the candidates found for one partial line.
type completion struct {
	partial      string
	values       map[string]cli.Candidate
	placeholders map[string]cli.Candidate
	complete     bool
	failed       int
}

func (c *completion) add(name, desc string) {
	if !strings.HasPrefix(name, c.partial) {
		return
	}
	if _, ok := c.values[name]; !ok {
		c.values[name] = cli.Candidate{Name: name, Desc: desc}
	}
}

func (c *completion) addPlaceholder(name, desc string) {
	if _, ok := c.placeholders[name]; !ok {
		c.placeholders[name] = cli.Candidate{Name: name, Desc: desc}
	}
}

// Complete returns the words that may replace the last, partial word of
// line, sorted. A line ending in whitespace completes the next word. An
// empty result is not an error.
func (e *Engine) Complete(ctx context.Context, sess *Session, line string) ([]cli.Candidate, error) {
	c, err := e.collect(ctx, sess.Mode(), line)
	if err != nil || c == nil {
		return nil, err
	}
	return sortedCandidates(c.values), nil
}

// Help is Complete for the '?' key: it adds value placeholders such as
// "<0-32767>", and "<cr>" when the words typed already form a command.
func (e *Engine) Help(ctx context.Context, sess *Session, line string) ([]cli.Candidate, error) {
	c, err := e.collect(ctx, sess.Mode(), line)
	if err != nil || c == nil {
		return nil, err
	}
	out := sortedCandidates(c.values)
	out = append(out, sortedCandidates(c.placeholders)...)
	if c.complete && c.partial == "" {
		out = append(out, cli.Candidate{Name: cli.EndOfCommand})
	}
	return out, nil
}

func sortedCandidates(m map[string]cli.Candidate) []cli.Candidate {
	out := make([]cli.Candidate, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *Engine) collect(ctx context.Context, mode, line string) (*completion, error) {
	words, err := util.SplitWords(line)
	if err != nil {
		return nil, nil
	}
	c := &completion{
		values:       make(map[string]cli.Candidate),
		placeholders: make(map[string]cli.Candidate),
	}
	if len(words) > 0 && !endsInSpace(line) {
		c.partial = words[len(words)-1]
		words = words[:len(words)-1]
	}

	negated := len(words) > 0 && words[0] == NegationWord
	if negated {
		words = words[1:]
	}
	if len(words) == 0 {
		e.completeCommand(c, mode, negated)
		return c, nil
	}

	name, err := resolveName(words[0], e.commandsIn(mode, negated))
	if err != nil {
		return c, nil
	}
	for _, cmd := range e.commands {
		if cmd.Name != name || !cmd.AppliesTo(mode) || (negated && !cmd.NoSupported) {
			continue
		}
		w := &walker{e: e, ctx: ctx, cmd: cmd, words: words[1:], negated: negated, out: c}
		w.seq(cmd.Args.Items, 0, 0, nil, func(pos int, _ bound) {
			if pos == len(w.words) {
				c.complete = true
			}
		})
	}
	if len(c.values) == 0 && c.failed > 0 {
		return nil, util.NewCompletionError("no candidates for %q", c.partial)
	}
	return c, nil
}

func (e *Engine) completeCommand(c *completion, mode string, negated bool) {
	for _, cmd := range e.commands {
		if !cmd.AppliesTo(mode) || (negated && !cmd.NoSupported) {
			continue
		}
		c.add(cmd.Name, cmd.ShortHelp)
		if !negated && cmd.NoSupported {
			c.add(NegationWord, "Negate a command or set its defaults")
		}
	}
}

func endsInSpace(line string) bool {
	if line == "" {
		return true
	}
	return unicode.IsSpace(rune(line[len(line)-1]))
}

// bound is the value map seen by completion providers. It is copied on
// write since the walk explores several parses at once.
type bound map[string]interface{}

func (b bound) with(key string, v interface{}) bound {
	out := make(bound, len(b)+1)
	for k, x := range b {
		out[k] = x
	}
	out[key] = v
	return out
}

// walker explores every parse of the complete words, in continuation
// passing style, and collects what may follow at the end of the input.
type walker struct {
	e       *Engine
	ctx     context.Context
	cmd     *grammar.Command
	words   []string
	negated bool
	out     *completion
}

type cont func(pos int, data bound)

func (w *walker) node(n grammar.Node, pos int, data bound, k cont) {
	switch n := n.(type) {
	case *grammar.Literal:
		if pos == len(w.words) {
			w.out.add(n.Token, n.ShortHelp)
			return
		}
		if w.words[pos] == n.Token {
			k(pos+1, data)
		}
	case *grammar.Field:
		w.field(n, pos, data, k)
	case *grammar.Choice:
		for _, alt := range n.Alternatives {
			w.node(alt, pos, data, k)
		}
	case *grammar.Sequence:
		w.seq(n.Items, 0, pos, data, k)
	}
}

func (w *walker) seq(items []grammar.Node, i, pos int, data bound, k cont) {
	if i == len(items) {
		k(pos, data)
		return
	}
	w.node(items[i], pos, data, func(p int, d bound) {
		w.seq(items, i+1, p, d, k)
	})
	if items[i].Attributes().Skippable(w.negated) {
		w.seq(items, i+1, pos, data, k)
	}
}

func (w *walker) field(f *grammar.Field, pos int, data bound, k cont) {
	if f.Tag != "" {
		if pos == len(w.words) {
			w.out.add(f.Tag, f.ShortHelp)
			return
		}
		if w.words[pos] != f.Tag {
			return
		}
		pos++
	}
	if pos == len(w.words) {
		w.values(f, data)
		return
	}
	m := &matcher{e: w.e, ctx: w.ctx}
	v, err := m.value(f, w.words[pos])
	if err != nil {
		return
	}
	k(pos+1, data.with(f.Name, v))
}

// values adds the candidates for a field value: enum values, booleans,
// and whatever the field's completion providers return.
func (w *walker) values(f *grammar.Field, data bound) {
	desc := f.ShortHelp
	if f.SyntaxHelp != "" {
		desc = f.SyntaxHelp
	}
	before := len(w.out.values)

	switch f.Type {
	case grammar.FieldEnum:
		for _, v := range f.Values {
			w.out.add(v, f.ShortHelp)
		}
	case grammar.FieldBoolean:
		w.out.add("true", f.ShortHelp)
		w.out.add("false", f.ShortHelp)
	}

	for _, name := range f.Completions {
		c, ok := w.e.completers[name]
		if !ok {
			continue
		}
		vals, err := c.Complete(&CompletionRequest{
			Ctx:     w.ctx,
			Backend: w.e.backend,
			Models:  w.e.models,
			Field:   f,
			ObjType: w.cmd.ObjType,
			Data:    data,
			Partial: w.out.partial,
		})
		if err != nil {
			util.WithField("completion", name).Debugf("completion failed: %v", err)
			w.out.failed++
			continue
		}
		for _, v := range vals {
			w.out.add(v, f.ShortHelp)
		}
	}

	if len(w.out.values) == before {
		w.out.addPlaceholder(placeholder(f), desc)
	}
}
