package camera

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	captureAttempts = 2
	probeTimeout    = 10 * time.Second
)

// CaptureResult holds the metadata of a completed frame capture. Width and
// height are 0 when the dimension probe could not determine them.
type CaptureResult struct {
	Path       string
	Width      int
	Height     int
	StreamHost string
	CapturedAt time.Time
	SourcePage string
}

// FrameCapturer pulls exactly one frame from the located stream into a file.
type FrameCapturer interface {
	CaptureTo(ctx context.Context, path string, cameraID int) (*CaptureResult, error)
}

// commandRunner executes an external tool and returns its stdout and stderr.
// It exists as a seam so subprocess behavior is testable without the tools
// installed.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Capturer captures single frames with ffmpeg and probes their dimensions
// with ffprobe.
type Capturer struct {
	locator   StreamLocator
	ffmpegBin string
	pageURL   string
	timeout   time.Duration
	quality   int
	run       commandRunner
}

// NewCapturer creates a frame capturer on top of the given locator.
func NewCapturer(locator StreamLocator, ffmpegBin, pageURL string, timeout time.Duration, quality int) *Capturer {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if pageURL == "" {
		pageURL = DefaultPageURL
	}
	return &Capturer{
		locator:   locator,
		ffmpegBin: ffmpegBin,
		pageURL:   pageURL,
		timeout:   timeout,
		quality:   quality,
		run:       runCommand,
	}
}

// CaptureTo captures one frame from the camera's stream into path as JPEG.
//
// The combined discovery+capture sequence is retried up to the attempt
// budget; a partially written output file is removed before each retry. A
// missing ffmpeg binary fails immediately without any discovery attempt.
func (c *Capturer) CaptureTo(ctx context.Context, path string, cameraID int) (*CaptureResult, error) {
	if _, err := exec.LookPath(c.ffmpegBin); err != nil {
		return nil, &DependencyMissingError{Binary: c.ffmpegBin}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= captureAttempts; attempt++ {
		streamURL, err := c.locator.Locate(ctx, cameraID)
		if err != nil {
			lastErr = err
			continue
		}

		if err := c.runFFmpeg(ctx, streamURL, path); err != nil {
			lastErr = err
			removeIfExists(path)
			continue
		}

		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			lastErr = &CaptureError{Message: "ffmpeg completed but output JPEG was not created"}
			removeIfExists(path)
			continue
		}

		width, height := c.probeDimensions(ctx, path)

		host := ""
		if parsed, err := url.Parse(streamURL); err == nil {
			host = parsed.Host
		}

		return &CaptureResult{
			Path:       path,
			Width:      width,
			Height:     height,
			StreamHost: host,
			CapturedAt: time.Now().UTC(),
			SourcePage: c.pageURL,
		}, nil
	}

	return nil, &CaptureError{
		Message: "failed to capture frame from live stream",
		Err:     lastErr,
	}
}

// runFFmpeg extracts exactly one frame from the stream into path.
func (c *Capturer) runFFmpeg(ctx context.Context, streamURL, path string) error {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", streamURL,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(c.quality),
		path,
	}

	_, stderr, err := c.run(runCtx, c.ffmpegBin, args...)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return &CaptureError{Message: "ffmpeg timed out while capturing frame", Timeout: true}
		}
		// stderr may echo the stream URL, so it must be redacted.
		detail := RedactTokens(strings.TrimSpace(string(stderr)))
		if detail == "" {
			detail = RedactTokens(err.Error())
		}
		return &CaptureError{Message: "ffmpeg failed", Err: fmt.Errorf("%s", detail)}
	}
	return nil
}

// probeDimensions reads pixel width/height of the captured file via ffprobe.
// Probing is best-effort: any failure, including a missing ffprobe binary,
// degrades to unknown dimensions.
func (c *Capturer) probeDimensions(ctx context.Context, path string) (int, int) {
	ffprobeBin, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, 0
	}

	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0:s=x",
		path,
	}

	stdout, _, err := c.run(runCtx, ffprobeBin, args...)
	if err != nil {
		log.WithError(err).Debug("Dimension probe failed")
		return 0, 0
	}

	return parseDimensions(strings.TrimSpace(string(stdout)))
}

// parseDimensions parses ffprobe's "WIDTHxHEIGHT" output.
func parseDimensions(output string) (int, int) {
	parts := strings.SplitN(output, "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0
	}
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	return width, height
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("Failed to remove partial capture file %s", path)
	}
}
