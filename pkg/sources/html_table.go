package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// htmlTableFetcher reads entries from the rows of an HTML table.
type htmlTableFetcher struct {
	client HTTPClient
	cache  *conditionalCache
}

// NewHTMLTableFetcher builds a fetcher for listings rendered as an HTML table.
func NewHTMLTableFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &htmlTableFetcher{client: client, cache: newConditionalCache()}
}

func (f *htmlTableFetcher) ID() string {
	return TypeHTMLTable
}

// Fetch downloads the listing page. An unchanged page yields ErrNotModified.
func (f *htmlTableFetcher) CommitValidators(src Source) {
	f.cache.commit(Sanitize(src).URL)
}

func (f *htmlTableFetcher) DiscardValidators(src Source) {
	f.cache.discard(Sanitize(src).URL)
}

func (f *htmlTableFetcher) Fetch(ctx context.Context, src Source) (domain.EntryList, error) {
	if !strings.EqualFold(src.Type, TypeHTMLTable) {
		return nil, fmt.Errorf("html table fetcher received incompatible source type %q", src.Type)
	}
	src = Sanitize(src)
	if err := Validate(src); err != nil {
		return nil, err
	}

	raw, err := download(ctx, f.client, f.cache, src)
	if err != nil {
		return nil, err
	}
	return parseTable(raw, src)
}

// parseTable extracts entries from the configured table. Rows missing cells
// or a title are skipped.
func parseTable(body []byte, src Source) (domain.EntryList, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find(src.TableSelector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%s listing table %q not found", src.ID, src.TableSelector)
	}

	rows := table.Find(src.RowSelector)
	entries := make(domain.EntryList, 0, rows.Length())
	minCells := src.minCells()

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if src.RowLimit > 0 && i >= src.RowLimit {
			return false
		}
		cells := row.Find("td")
		if cells.Length() < minCells {
			return true
		}
		title := strings.TrimSpace(cells.Eq(src.TitleColumn).Text())
		if title == "" {
			return true
		}
		date := strings.TrimSpace(cells.Eq(src.DateColumn).Text())

		link := ""
		if href, ok := cells.Eq(src.LinkColumn).Find("a[href]").First().Attr("href"); ok {
			link = resolveURL(href, src.URL)
		}
		entries = append(entries, domain.NewEntry(date, title, link))
		return true
	})

	return entries, nil
}
