package sources

import (
	"context"
	"errors"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
	"github.com/Adda-Baaj/notice-watch/pkg/httpclient"
)

// ErrNotModified reports that the listing is unchanged since the last fetch.
var ErrNotModified = errors.New("listing not modified")

// Fetcher retrieves the current listing for a source, newest first.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, src Source) (domain.EntryList, error)
}

// ConditionalFetcher is implemented by fetchers that send conditional
// requests. Validators seen by Fetch are only used once committed; the
// caller commits after the fetched listing has been fully handled and
// discards them when the run failed.
type ConditionalFetcher interface {
	Fetcher
	CommitValidators(src Source)
	DiscardValidators(src Source)
}

// FetcherRegistry resolves the fetcher implementation for a given source.
type FetcherRegistry interface {
	FetcherFor(src Source) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within sources.
type HTTPClient = httpclient.Client
