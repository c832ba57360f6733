package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// rssFetcher reads entries from an RSS or Atom feed of the listing.
type rssFetcher struct {
	client HTTPClient
	cache  *conditionalCache
	parser *gofeed.Parser
}

// NewRSSFetcher builds a fetcher for listings published as a feed.
func NewRSSFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &rssFetcher{client: client, cache: newConditionalCache(), parser: gofeed.NewParser()}
}

func (f *rssFetcher) ID() string {
	return TypeRSS
}

func (f *rssFetcher) CommitValidators(src Source) {
	f.cache.commit(Sanitize(src).URL)
}

func (f *rssFetcher) DiscardValidators(src Source) {
	f.cache.discard(Sanitize(src).URL)
}

func (f *rssFetcher) Fetch(ctx context.Context, src Source) (domain.EntryList, error) {
	if !strings.EqualFold(src.Type, TypeRSS) {
		return nil, fmt.Errorf("rss fetcher received incompatible source type %q", src.Type)
	}
	src = Sanitize(src)
	if err := Validate(src); err != nil {
		return nil, err
	}

	raw, err := download(ctx, f.client, f.cache, src)
	if err != nil {
		return nil, err
	}
	return parseFeed(f.parser, raw, src)
}

func parseFeed(parser *gofeed.Parser, body []byte, src Source) (domain.EntryList, error) {
	feed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	entries := make(domain.EntryList, 0, len(feed.Items))
	for _, item := range feed.Items {
		if src.RowLimit > 0 && len(entries) >= src.RowLimit {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		date := item.Published
		if date == "" {
			date = item.Updated
		}
		entries = append(entries, domain.NewEntry(date, title, resolveURL(item.Link, src.URL)))
	}
	return entries, nil
}
