package camera

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRedactTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain token",
			input: "https://edge.example.com/live/cam.m3u8?token=abc123def",
			want:  "https://edge.example.com/live/cam.m3u8?token=<redacted>",
		},
		{
			name:  "token followed by another parameter",
			input: "fetch failed for ?token=s3cr3t&session=9",
			want:  "fetch failed for ?token=<redacted>&session=9",
		},
		{
			name:  "multiple tokens",
			input: "token=one then token=two",
			want:  "token=<redacted> then token=<redacted>",
		},
		{
			name:  "no token present",
			input: "connection refused",
			want:  "connection refused",
		},
		{
			name:  "token at end of quoted string",
			input: `body was "token=xyz"`,
			want:  `body was "token=<redacted>"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactTokens(tt.input)
			if got != tt.want {
				t.Errorf("RedactTokens() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiscoveryErrorRedactsCause(t *testing.T) {
	cause := fmt.Errorf("GET https://e/x.m3u8?token=topsecret: timeout")
	err := &DiscoveryError{Message: "discovery failed", Err: cause}

	msg := err.Error()
	if strings.Contains(msg, "topsecret") {
		t.Errorf("error message leaked token: %q", msg)
	}
	if !strings.Contains(msg, "token=<redacted>") {
		t.Errorf("error message missing redaction marker: %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("DiscoveryError should unwrap to its cause")
	}
}

func TestCaptureErrorRedactsCause(t *testing.T) {
	cause := fmt.Errorf("ffmpeg: https://e/x.m3u8?token=topsecret unreachable")
	err := &CaptureError{Message: "capture failed", Err: cause}

	msg := err.Error()
	if strings.Contains(msg, "topsecret") {
		t.Errorf("error message leaked token: %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("CaptureError should unwrap to its cause")
	}
}

func TestDependencyMissingErrorMessage(t *testing.T) {
	err := &DependencyMissingError{Binary: "ffmpeg"}
	if !strings.Contains(err.Error(), "ffmpeg") {
		t.Errorf("error message should name the binary, got %q", err.Error())
	}
}
