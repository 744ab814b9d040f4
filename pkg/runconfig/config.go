package runconfig

import (
	"fmt"
	"strings"
)

// GroupSeparator precedes every non-empty group of running-config lines.
const GroupSeparator = "!"

// Config accumulates running-config text. Lines are stored without their
// trailing newline.
type Config struct {
	lines []string
}

// Append adds one line.
func (c *Config) Append(line string) {
	c.lines = append(c.lines, line)
}

// Appendf adds one formatted line.
func (c *Config) Appendf(format string, args ...interface{}) {
	c.Append(fmt.Sprintf(format, args...))
}

// AppendIndented adds a line indented by depth levels of two spaces.
func (c *Config) AppendIndented(depth int, format string, args ...interface{}) {
	c.Append(strings.Repeat("  ", depth) + fmt.Sprintf(format, args...))
}

// AppendGroup adds g preceded by a separator line. An empty group adds
// nothing.
func (c *Config) AppendGroup(g *Config) {
	if g.IsEmpty() {
		return
	}
	c.Append(GroupSeparator)
	c.lines = append(c.lines, g.lines...)
}

// IsEmpty returns true if no lines were added.
func (c *Config) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the accumulated lines.
func (c *Config) Lines() []string {
	return append([]string(nil), c.lines...)
}

// String returns the text, each line newline-terminated.
func (c *Config) String() string {
	var sb strings.Builder
	for _, l := range c.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}
