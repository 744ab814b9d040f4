package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ctlsh/pkg/command"
)

var execFile string

var execCmd = &cobra.Command{
	Use:   "exec [line...]",
	Short: "Run command lines in sequence",
	Long: `Run command lines in sequence, starting in login mode.

Lines run in the same session, so a line may enter a mode the next one
uses. Execution stops at the first failing line.

Running-config text can be replayed with -f:

  ctlsh running-config > saved.cfg
  ctlsh exec configure -f saved.cfg

Examples:
  ctlsh exec "show version"
  ctlsh exec configure "snmp-server community ro public" "snmp-server enable"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lines := append([]string(nil), args...)
		if execFile != "" {
			more, err := readLines(execFile)
			if err != nil {
				return err
			}
			lines = append(lines, more...)
		}
		if len(lines) == 0 {
			return fmt.Errorf("nothing to run: give lines as arguments or use -f")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return runLines(cmd.Context(), a.engine, a.session, lines)
	},
}

func init() {
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Read lines from a file (- for stdin)")
}

// runLines executes lines in order and stops at the first error. Blank
// lines and "!" separators are skipped; exit at login mode ends the run.
func runLines(ctx context.Context, e *command.Engine, sess *command.Session, lines []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		err := e.Execute(ctx, sess, line)
		if errors.Is(err, command.ErrExit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d %q: %w", i+1, line, err)
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
