// Package cli provides terminal output helpers for ctlsh: aligned tables,
// completion help, and ANSI colors.
package cli

import (
	"io"
	"os"

	"golang.org/x/term"
)

// colorEnabled is false when NO_COLOR is set (no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// Green marks success.
func Green(s string) string {
	return colorize("\033[32m", s)
}

// Yellow marks warnings.
func Yellow(s string) string {
	return colorize("\033[33m", s)
}

// Red marks errors.
func Red(s string) string {
	return colorize("\033[31m", s)
}

func colorize(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// SetColor forces colors on or off, overriding NO_COLOR.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

// ColorEnabled reports whether the color helpers emit escape codes.
func ColorEnabled() bool {
	return colorEnabled
}

// AutoColor turns colors off when w is not a terminal.
func AutoColor(w io.Writer) {
	if !isTerminal(w) {
		colorEnabled = false
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
