package command

import (
	"strings"

	"github.com/newtron-network/ctlsh/pkg/grammar"
)

// ModeFrame is one level of the mode stack. Submodes entered for an object
// carry its type and primary key.
type ModeFrame struct {
	Mode    string
	ObjType string
	ObjID   string
}

// Session is the per-shell state: the mode stack and the user. It is not
// safe for concurrent use.
type Session struct {
	User  string
	stack []ModeFrame
}

// NewSession creates a session in login mode
func NewSession(user string) *Session {
	return &Session{User: user, stack: []ModeFrame{{Mode: grammar.LoginMode}}}
}

// Mode returns the current mode name.
func (s *Session) Mode() string {
	return s.Current().Mode
}

// Current returns the innermost frame.
func (s *Session) Current() ModeFrame {
	return s.stack[len(s.stack)-1]
}

// Depth returns the number of frames, login included.
func (s *Session) Depth() int {
	return len(s.stack)
}

// Push enters a mode.
func (s *Session) Push(f ModeFrame) {
	s.stack = append(s.stack, f)
}

// Pop leaves the current mode. The login frame is never popped; Pop
// reports whether a frame was removed.
func (s *Session) Pop() bool {
	if len(s.stack) == 1 {
		return false
	}
	s.stack = s.stack[:len(s.stack)-1]
	return true
}

// PopTo pops frames until mode is current, or down to login when mode is
// not on the stack.
func (s *Session) PopTo(mode string) {
	for len(s.stack) > 1 && s.Mode() != mode {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// Prompt renders the prompt for host: "host> " in login mode,
// "host(config)# " in config, and "host(config-tag)# " in submodes.
func (s *Session) Prompt(host string) string {
	mode := s.Mode()
	if mode == grammar.LoginMode {
		return host + "> "
	}
	return host + "(" + mode + ")# "
}

// Path describes the stack for logs, e.g. "config/config-tag[default|a|1]".
func (s *Session) Path() string {
	parts := make([]string, 0, len(s.stack))
	for _, f := range s.stack[1:] {
		p := f.Mode
		if f.ObjID != "" {
			p += "[" + f.ObjID + "]"
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return grammar.LoginMode
	}
	return strings.Join(parts, "/")
}
