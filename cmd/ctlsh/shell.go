package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/newtron-network/ctlsh/pkg/cli"
	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// Shell is the interactive REPL over one engine and session.
type Shell struct {
	app  *app
	host string
	rl   *readline.Instance
}

// NewShell creates a shell for a; the prompt shows the local host name.
func NewShell(a *app) *Shell {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ctlsh"
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return &Shell{app: a, host: host}
}

// Run reads lines until exit at login mode or end of input. When stdin is
// not a terminal the lines are read as a script, without prompts.
func (s *Shell) Run() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return s.runScript(os.Stdin)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     userSettings.GetHistoryFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &shellCompleter{shell: s},
		Listener:        readline.FuncListener(s.onKey),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()
	s.rl = rl

	fmt.Println("Type '?' for help")
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if done := s.execute(line, rl.Stderr()); done {
			return nil
		}
		rl.SetPrompt(s.prompt())
	}
}

// runScript executes every line of r; errors are reported and skipped.
func (s *Shell) runScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if done := s.execute(scanner.Text(), os.Stderr); done {
			return nil
		}
	}
	return scanner.Err()
}

// execute runs one line and reports whether the shell should stop.
func (s *Shell) execute(line string, errOut io.Writer) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "!") {
		return false
	}
	err := s.app.engine.Execute(context.Background(), s.app.session, line)
	if errors.Is(err, command.ErrExit) {
		return true
	}
	if err != nil {
		printError(errOut, err)
	}
	return false
}

func (s *Shell) prompt() string {
	return s.app.session.Prompt(s.host)
}

// onKey shows help for the words typed so far when '?' is pressed.
func (s *Shell) onKey(line []rune, pos int, key rune) ([]rune, int, bool) {
	if key != '?' || pos < 1 {
		return line, pos, false
	}
	// Strip the '?' that readline already inserted.
	clean := make([]rune, 0, len(line)-1)
	clean = append(clean, line[:pos-1]...)
	clean = append(clean, line[pos:]...)
	text := string(clean[:pos-1])

	candidates, err := s.app.engine.Help(context.Background(), s.app.session, text)
	out := s.rl.Stdout()
	switch {
	case err != nil:
		fmt.Fprintf(out, "\n%% %v\n", err)
	case len(candidates) == 0:
		fmt.Fprintln(out, "\n  (no help available)")
	default:
		fmt.Fprintln(out)
		cli.WriteHelp(out, candidates)
	}
	return clean, pos - 1, true
}

// shellCompleter adapts Engine.Complete to readline's TAB handling.
type shellCompleter struct {
	shell *Shell
}

func (c *shellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	sh := c.shell

	candidates, err := sh.app.engine.Complete(context.Background(), sh.app.session, text)
	if err != nil {
		util.Debugf("complete %q: %v", text, err)
		return nil, 0
	}
	if len(candidates) == 0 {
		return nil, 0
	}

	// The engine matches candidates against the unquoted word; readline
	// counts the runes as typed.
	raw := lastRawWord(text)
	partial := ""
	if raw != "" {
		words, err := util.SplitWords(raw)
		if err != nil || len(words) != 1 {
			return nil, 0
		}
		partial = words[0]
	}
	offset := len([]rune(raw))

	names := cli.CandidateNames(candidates)
	if len(names) == 1 {
		suffix, ok := completionSuffix(names[0], partial)
		if !ok {
			return nil, 0
		}
		return [][]rune{[]rune(suffix + " ")}, offset
	}

	// Several matches: list them above the prompt, extend to the common prefix.
	var out io.Writer = os.Stdout
	if sh.rl != nil {
		out = sh.rl.Stdout()
	}
	cli.WriteHelp(out, candidates)
	suffix, ok := completionSuffix(cli.CommonPrefix(names), partial)
	if !ok || suffix == "" {
		return nil, 0
	}
	return [][]rune{[]rune(suffix)}, offset
}

// completionSuffix returns what to append to partial to reach name, quoted
// when needed. A quoted piece glued to a word stays part of that word.
func completionSuffix(name, partial string) (string, bool) {
	if !strings.HasPrefix(name, partial) {
		return "", false
	}
	suffix := name[len(partial):]
	if suffix == "" {
		return "", true
	}
	return util.QuoteString(suffix), true
}

// lastRawWord returns the word the cursor is in, quotes included, or ""
// when text ends between words.
func lastRawWord(text string) string {
	var (
		start   int
		inWord  bool
		quote   rune
		escaped bool
	)
	for i, r := range text {
		switch {
		case escaped:
			escaped = false
		case quote == '"' && r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				start, inWord = i, true
			}
			if r == '\'' || r == '"' {
				quote = r
			}
		}
	}
	if !inWord {
		return ""
	}
	return text[start:]
}
