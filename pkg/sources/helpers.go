package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// resolveURL makes href absolute against the page it was found on.
func resolveURL(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

type validators struct {
	etag         string
	lastModified string
}

// conditionalCache remembers response validators per URL for the process
// lifetime. Validators from a fetch stay pending until the caller commits
// them, so a run that fails after downloading does not turn the next fetch
// into a 304.
type conditionalCache struct {
	mu      sync.Mutex
	byURL   map[string]validators
	pending map[string]validators
}

func newConditionalCache() *conditionalCache {
	return &conditionalCache{
		byURL:   make(map[string]validators),
		pending: make(map[string]validators),
	}
}

func (c *conditionalCache) apply(rawURL string, headers map[string]string) {
	c.mu.Lock()
	v, ok := c.byURL[rawURL]
	c.mu.Unlock()
	if !ok {
		return
	}
	if v.etag != "" {
		headers["If-None-Match"] = v.etag
	}
	if v.lastModified != "" {
		headers["If-Modified-Since"] = v.lastModified
	}
}

func (c *conditionalCache) remember(rawURL string, resp interface{ Header(string) string }) {
	v := validators{etag: resp.Header("ETag"), lastModified: resp.Header("Last-Modified")}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.etag == "" && v.lastModified == "" {
		delete(c.pending, rawURL)
		return
	}
	c.pending[rawURL] = v
}

func (c *conditionalCache) commit(rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.pending[rawURL]; ok {
		c.byURL[rawURL] = v
		delete(c.pending, rawURL)
	}
}

// discard drops pending and committed validators, forcing a full download.
func (c *conditionalCache) discard(rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, rawURL)
	delete(c.byURL, rawURL)
}

// download fetches src.URL, honoring conditional fetch when enabled.
func download(ctx context.Context, client HTTPClient, cache *conditionalCache, src Source) ([]byte, error) {
	headers := Headers(src)
	if src.ConditionalFetch && cache != nil {
		cache.apply(src.URL, headers)
	}

	resp, err := client.Get(ctx, src.URL, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s listing: %w", src.ID, err)
	}

	if resp.StatusCode() == http.StatusNotModified {
		return nil, ErrNotModified
	}
	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s listing returned status %d body: %s", src.ID, resp.StatusCode(), responseSnippet(body))
	}
	if src.ConditionalFetch && cache != nil {
		cache.remember(src.URL, resp)
	}
	return body, nil
}
