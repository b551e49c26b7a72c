package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	appLog "staycal/internal/log"
	"staycal/internal/model"
)

// Source identifies one calendar feed: which property it covers, which
// platform published it, and where to fetch it.
type Source struct {
	Property string
	Origin   model.Origin
	URL      string
	// Label is a human-friendly name for operator-facing messages,
	// e.g. "Gardens Airbnb".
	Label string
}

func (s Source) label() string {
	if s.Label != "" {
		return s.Label
	}
	return string(s.Origin) + " " + s.Property
}

// DefaultProxy is the public fetch proxy used when a direct GET fails.
// The feed URL is appended query-escaped.
const DefaultProxy = "https://api.allorigins.win/raw?url="

const fetchTimeout = 15 * time.Second

// cacheEntry holds conditional-request metadata and the last good body for
// one feed URL.
type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher retrieves feed documents. It honors ETag / Last-Modified from an
// in-memory cache and falls back to a public fetch proxy when the direct
// request fails, since some platforms gate direct access.
type Fetcher struct {
	client   *http.Client
	proxyURL string

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// NewFetcher creates a Fetcher. proxyURL may be empty to disable the proxy
// fallback; DefaultProxy is the usual value.
func NewFetcher(proxyURL string) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		proxyURL: proxyURL,
		cache:    make(map[string]*cacheEntry),
	}
}

// Fetch retrieves one feed document. Failures are feed-level: they abort this
// feed only, and the caller reports them per feed.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return nil, errors.New("feed URL is empty")
	}

	body, err := f.fetchDirect(ctx, src)
	if err == nil {
		return body, nil
	}
	if f.proxyURL == "" {
		return nil, err
	}

	appLog.Warn("direct fetch failed, trying proxy", "feed", src.label(), "err", err)
	body, proxyErr := f.fetchVia(ctx, src, f.proxyURL+url.QueryEscape(src.URL))
	if proxyErr != nil {
		return nil, fmt.Errorf("%s: %w (proxy: %v)", src.label(), err, proxyErr)
	}
	return body, nil
}

func (f *Fetcher) fetchDirect(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	entry := f.cache[src.URL]
	f.mu.Unlock()
	if entry != nil {
		if entry.etag != "" {
			req.Header.Set("If-None-Match", entry.etag)
		}
		if entry.lastModified != "" {
			req.Header.Set("If-Modified-Since", entry.lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && entry != nil && len(entry.body) > 0:
		appLog.Debug("feed not modified, using cached body", "feed", src.label())
		return entry.body, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		f.mu.Lock()
		f.cache[src.URL] = &cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		f.mu.Unlock()
		return body, nil

	default:
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}

// fetchVia performs a plain GET against the proxied URL. The proxy response
// carries no useful validators, so no conditional headers are sent.
func (f *Fetcher) fetchVia(ctx context.Context, src Source, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, strings.TrimSpace(resp.Status))
	}
	return io.ReadAll(resp.Body)
}
