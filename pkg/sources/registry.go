package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/notice-watch/pkg/httpclient"
)

// fetcherRegistry implements FetcherRegistry.
type fetcherRegistry struct {
	fetchersByType map[string]Fetcher
	mu             sync.RWMutex
}

// NewTypeFetcherRegistry builds a registry keyed by source type.
func NewTypeFetcherRegistry(typeFetchers map[string]Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchersByType: make(map[string]Fetcher),
	}
	for typ, f := range typeFetchers {
		reg.registerTypeFetcher(typ, f)
	}
	return reg
}

// registerTypeFetcher registers a fetcher by source type.
func (r *fetcherRegistry) registerTypeFetcher(typ string, f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByType[key] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given source based on its type.
func (r *fetcherRegistry) FetcherFor(src Source) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	typeKey := strings.ToLower(strings.TrimSpace(src.Type))
	if f, ok := r.fetchersByType[typeKey]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for source %q (type %q)", src.ID, src.Type)
}

// DefaultHTTPClient returns a tuned client for source fetchers.
func DefaultHTTPClient() HTTPClient {
	return httpclient.NewRetryingClient(httpclient.Options{Timeout: 15 * time.Second, RetryCount: 3})
}

// DefaultFetcherRegistry wires up known source fetchers.
func DefaultFetcherRegistry(client HTTPClient) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}

	typeFetchers := map[string]Fetcher{
		TypeHTMLTable: NewHTMLTableFetcher(client),
		TypeRSS:       NewRSSFetcher(client),
	}

	return NewTypeFetcherRegistry(typeFetchers)
}
