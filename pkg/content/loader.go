// Package content loads the page served by a discovered plug-in.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"

	"github.com/rescp17/pisco/pkg/discovery"
)

const DefaultMaxPageBytes = 4 * 1024 * 1024

var ErrHTTPStatus = errors.New("unexpected HTTP status")

// Page summarizes what an endpoint served.
type Page struct {
	URL        string
	StatusCode int
	MIMEType   string
	Title      string
	Size       int64
	Truncated  bool
	LoadedIn   time.Duration
}

// Loader fetches plug-in pages. Responses are never served from a cache.
type Loader struct {
	client   *http.Client
	maxBytes int64
}

// NewLoader returns a loader whose requests time out after timeout and which
// reads at most maxBytes of a response body.
func NewLoader(timeout time.Duration, maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPageBytes
	}
	return &Loader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Load fetches the root page of endpoint.
func (l *Loader) Load(ctx context.Context, endpoint discovery.Endpoint) (*Page, error) {
	url := endpoint.URL() + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	// One extra byte tells a body that fits exactly apart from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	page := &Page{
		URL:        url,
		StatusCode: resp.StatusCode,
		LoadedIn:   time.Since(start),
	}
	if int64(len(body)) > l.maxBytes {
		body = body[:l.maxBytes]
		page.Truncated = true
	}
	page.Size = int64(len(body))

	mtype := mimetype.Detect(body)
	page.MIMEType = mtype.String()
	if mtype.Is("text/html") {
		page.Title = extractTitle(body)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return page, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, url, resp.StatusCode)
	}

	slog.Info("Page loaded", "url", url, "status", resp.StatusCode, "mime", page.MIMEType, "size", page.Size)
	return page, nil
}

// extractTitle returns the text of the first <title> element.
func extractTitle(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && string(name) == "title" {
				return strings.TrimSpace(b.String())
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		}
	}
}
