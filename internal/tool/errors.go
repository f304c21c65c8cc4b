package tool

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// InvocationError reports an external tool that exited non-zero, hung past its
// timeout, or could not be started.
type InvocationError struct {
	Tool      string
	Args      []string
	ExitCode  int
	Stdout    string
	Stderr    string
	Timeout   bool
	Cancelled bool
	Err       error
}

func (e *InvocationError) Error() string {
	cmd := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timed out: %v", cmd, e.Err)
	case e.Cancelled:
		return fmt.Sprintf("%s: cancelled", cmd)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	if d := e.Diagnostic(); d != "" {
		return fmt.Sprintf("%s: exit status %d: %s", cmd, e.ExitCode, firstLine(d))
	}
	return fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the captured output, stderr first.
func (e *InvocationError) Diagnostic() string {
	return CombineOutput(e.Stdout, e.Stderr)
}

// IsTimeout reports whether err carries the timeout marker.
func IsTimeout(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.Timeout
}

// IsCancelled reports whether err was caused by context cancellation.
func IsCancelled(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.Cancelled
}

// transientMarkers are stderr fragments git and package managers print on
// network trouble that usually clears on a second attempt.
var transientMarkers = []string{
	"could not resolve host",
	"connection timed out",
	"connection reset",
	"connection refused",
	"the remote end hung up unexpectedly",
	"early eof",
	"unable to access",
	"temporary failure in name resolution",
	"operation timed out",
	"tls handshake timeout",
}

// IsTransient reports whether err looks like a timeout or a network blip.
func IsTransient(err error) bool {
	var ie *InvocationError
	if !errors.As(err, &ie) {
		return false
	}
	if ie.Cancelled {
		return false
	}
	if ie.Timeout {
		return true
	}
	out := strings.ToLower(ie.Stderr)
	for _, m := range transientMarkers {
		if strings.Contains(out, m) {
			return true
		}
	}
	return false
}

// maxDiagnosticLen caps how much output is kept for reports.
const maxDiagnosticLen = 8000

// CombineOutput joins stderr and stdout, keeping the tail when it is long.
func CombineOutput(stdout, stderr string) string {
	combined := strings.TrimSpace(stderr)
	if s := strings.TrimSpace(stdout); s != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += s
	}
	return Tail(combined, maxDiagnosticLen)
}

const truncatedMarker = "…(truncated)\n"

// Tail returns s unchanged when it fits in max bytes. Otherwise it keeps at
// most the last max bytes, starting on a rune boundary, behind a truncation
// marker.
func Tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return truncatedMarker + s[start:]
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
