package camera

import (
	"fmt"
	"regexp"
)

// tokenPattern matches the short-lived auth token in a stream URL. Any text
// that may carry one (tool stderr, response bodies, wrapped errors) must go
// through RedactTokens before it reaches a log line or an error message.
var tokenPattern = regexp.MustCompile(`token=[^&\s'"<>]+`)

// RedactTokens replaces every token=<value> substring with token=<redacted>.
func RedactTokens(value string) string {
	return tokenPattern.ReplaceAllString(value, "token=<redacted>")
}

// DependencyMissingError indicates a required external tool is not on the
// execution path. This is an environment fault and is never retried.
type DependencyMissingError struct {
	Binary string
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("required binary not found in PATH: %s", e.Binary)
}

// DiscoveryError indicates the tokenized stream URL could not be discovered
// from the authentication endpoint.
type DiscoveryError struct {
	Message string
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, RedactTokens(e.Err.Error()))
	}
	return e.Message
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// CaptureError indicates a frame could not be captured from the stream. It
// subsumes process failure, timeout and empty output.
type CaptureError struct {
	Message string
	Err     error
	Timeout bool
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, RedactTokens(e.Err.Error()))
	}
	return e.Message
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
