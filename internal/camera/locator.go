package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultPageURL is the camera page the auth request pretends to come from.
	DefaultPageURL = "https://balticlivecam.com/ru/cameras/estonia/narva/narva/"
	// DefaultAuthEndpoint hands out tokenized HLS URLs.
	DefaultAuthEndpoint = "https://balticlivecam.com/wp-admin/admin-ajax.php"

	locateAttempts = 2

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// streamURLPattern is the strict shape of a tokenized media URL: scheme,
// host, path, .m3u8 extension and a token query parameter. Anything else in
// the response body is ignored.
var streamURLPattern = regexp.MustCompile(`https://[^\s'"<>]+\.m3u8\?token=[^\s'"<>]+`)

// StreamLocator discovers a time-limited media URL for a camera.
type StreamLocator interface {
	Locate(ctx context.Context, cameraID int) (string, error)
}

// Locator discovers tokenized stream URLs by scraping the camera provider's
// auth endpoint. The endpoint response format is not a stable API; all
// knowledge about it is isolated here.
type Locator struct {
	endpoint   string
	pageURL    string
	httpClient *http.Client
}

// NewLocator creates a locator for the given endpoint and camera page. Empty
// arguments fall back to the reference deployment defaults.
func NewLocator(endpoint, pageURL string, timeout time.Duration) *Locator {
	if endpoint == "" {
		endpoint = DefaultAuthEndpoint
	}
	if pageURL == "" {
		pageURL = DefaultPageURL
	}
	return &Locator{
		endpoint: endpoint,
		pageURL:  pageURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Locate returns a tokenized HLS URL for the requested camera. The full
// discovery call is retried up to the attempt budget; each retry is a fresh
// request. On exhaustion a single DiscoveryError wraps the last cause.
func (l *Locator) Locate(ctx context.Context, cameraID int) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= locateAttempts; attempt++ {
		body, err := l.requestAuthPayload(ctx, cameraID)
		if err != nil {
			lastErr = err
			log.WithError(err).Debugf("Stream discovery attempt %d/%d failed", attempt, locateAttempts)
			continue
		}
		streamURL, err := extractStreamURL(body)
		if err != nil {
			lastErr = err
			log.WithError(err).Debugf("Stream discovery attempt %d/%d failed", attempt, locateAttempts)
			continue
		}
		return streamURL, nil
	}

	return "", &DiscoveryError{
		Message: "unable to discover stream URL from auth_token response",
		Err:     lastErr,
	}
}

// requestAuthPayload performs one form-encoded POST mimicking the browser
// the provider expects, and returns the raw response body.
func (l *Locator) requestAuthPayload(ctx context.Context, cameraID int) (string, error) {
	form := url.Values{
		"action":       {"auth_token"},
		"id":           {strconv.Itoa(cameraID)},
		"embed":        {"0"},
		"main_referer": {""},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("auth_token request failed: %w", err)
	}

	origin := l.pageURL
	if parsed, err := url.Parse(l.pageURL); err == nil && parsed.Host != "" {
		origin = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", l.pageURL)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth_token request failed: %s", RedactTokens(err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth_token request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("auth_token response read failed: %w", err)
	}
	return string(body), nil
}

// extractStreamURL scans the response body for a tokenized m3u8 URL.
func extractStreamURL(body string) (string, error) {
	match := streamURLPattern.FindString(body)
	if match == "" {
		return "", fmt.Errorf("no tokenized m3u8 URL found in auth_token response")
	}
	return match, nil
}
