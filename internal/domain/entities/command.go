package entities

import (
	"strings"
	"time"
)

// CommandLine is an argument-vector invocation of an external program.
// It is never interpreted by a shell.
type CommandLine struct {
	Binary string
	Args   []string
}

// NewCommandLine creates a command line, copying args
func NewCommandLine(binary string, args ...string) *CommandLine {
	return &CommandLine{
		Binary: binary,
		Args:   append([]string(nil), args...),
	}
}

// Tokens returns the binary followed by its arguments
func (c *CommandLine) Tokens() []string {
	tokens := make([]string, 0, len(c.Args)+1)
	tokens = append(tokens, c.Binary)
	return append(tokens, c.Args...)
}

// String renders the command quoted for display in logs and errors
func (c *CommandLine) String() string {
	tokens := c.Tokens()
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = shellQuote(t)
	}
	return strings.Join(quoted, " ")
}

// shellQuote single-quotes a token when it contains anything outside a safe set
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ProcessResult holds the outcome of an external process run
type ProcessResult struct {
	ExitCode int
	Output   []byte
	Duration time.Duration
	// Truncated is set when the head of the output was dropped to stay within limits
	Truncated bool
}

// Success returns true when the process exited with code 0
func (r *ProcessResult) Success() bool {
	return r != nil && r.ExitCode == 0
}

// RunOptions contains per-invocation process settings
type RunOptions struct {
	WorkingDir  string
	Env         map[string]string
	Timeout     time.Duration
	Description string
}
