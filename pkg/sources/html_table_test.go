package sources

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
	"github.com/Adda-Baaj/notice-watch/pkg/httpclient"
)

const noticePage = `
<html><body>
<table class="table table-striped">
  <thead><tr><th>Title</th><th>Date</th><th>Download</th></tr></thead>
  <tbody>
    <tr><td> Notice C </td><td>03-02-2025</td><td><a href="/files/c.pdf">Download</a></td></tr>
    <tr><td>Notice B</td><td>02-02-2025</td><td></td></tr>
    <tr><td>broken row</td></tr>
    <tr><td>   </td><td>01-02-2025</td><td></td></tr>
    <tr><td>Notice A</td><td>01-02-2025</td><td><a href="https://cdn.example.com/a.pdf">Download</a></td></tr>
  </tbody>
</table>
</body></html>`

// fakeResponse lets us stub the httpclient.Client interface.
type fakeResponse struct {
	body       []byte
	statusCode int
	headers    map[string]string
}

func (f fakeResponse) Body() []byte             { return f.body }
func (f fakeResponse) StatusCode() int          { return f.statusCode }
func (f fakeResponse) Header(key string) string { return f.headers[key] }

// fakeHTTPClient returns queued responses and records request headers.
type fakeHTTPClient struct {
	responses []fakeResponse
	err       error
	calls     []map[string]string
}

func (f *fakeHTTPClient) Get(_ context.Context, _ string, headers map[string]string) (httpclient.Response, error) {
	f.calls = append(f.calls, headers)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no response queued")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func noticeSource() Source {
	return Source{
		ID:   "rgccr",
		Type: TypeHTMLTable,
		URL:  "https://rgccr.gov.bd/notice_categories/notice/",
		Config: map[string]any{
			ConfigUserAgentKey: "UA",
		},
	}
}

func TestHTMLTableFetcherParsesRows(t *testing.T) {
	client := &fakeHTTPClient{responses: []fakeResponse{{body: []byte(noticePage), statusCode: http.StatusOK}}}
	entries, err := NewHTMLTableFetcher(client).Fetch(context.Background(), noticeSource())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := domain.EntryList{
		{Date: "03-02-2025", Title: "Notice C", Link: "https://rgccr.gov.bd/files/c.pdf"},
		{Date: "02-02-2025", Title: "Notice B", Link: domain.NoLink},
		{Date: "01-02-2025", Title: "Notice A", Link: "https://cdn.example.com/a.pdf"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %#v", len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d = %#v want %#v", i, entries[i], want[i])
		}
	}
	if client.calls[0]["User-Agent"] != "UA" {
		t.Fatalf("expected User-Agent header, got %#v", client.calls[0])
	}
}

func TestHTMLTableFetcherRowLimit(t *testing.T) {
	src := noticeSource()
	src.RowLimit = 2
	client := &fakeHTTPClient{responses: []fakeResponse{{body: []byte(noticePage), statusCode: http.StatusOK}}}
	entries, err := NewHTMLTableFetcher(client).Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 || entries[1].Title != "Notice B" {
		t.Fatalf("unexpected entries %#v", entries)
	}
}

func TestHTMLTableFetcherMissingTable(t *testing.T) {
	client := &fakeHTTPClient{responses: []fakeResponse{{body: []byte("<html><p>maintenance</p></html>"), statusCode: http.StatusOK}}}
	_, err := NewHTMLTableFetcher(client).Fetch(context.Background(), noticeSource())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected table not found error, got %v", err)
	}
}

func TestHTMLTableFetcherNon200(t *testing.T) {
	client := &fakeHTTPClient{responses: []fakeResponse{{body: []byte("oops"), statusCode: http.StatusServiceUnavailable}}}
	_, err := NewHTMLTableFetcher(client).Fetch(context.Background(), noticeSource())
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestHTMLTableFetcherConditionalFetch(t *testing.T) {
	src := noticeSource()
	src.ConditionalFetch = true
	client := &fakeHTTPClient{responses: []fakeResponse{
		{body: []byte(noticePage), statusCode: http.StatusOK, headers: map[string]string{"ETag": `"abc"`, "Last-Modified": "Mon, 03 Feb 2025 10:00:00 GMT"}},
		{statusCode: http.StatusNotModified},
	}}
	fetcher := NewHTMLTableFetcher(client).(ConditionalFetcher)

	if _, err := fetcher.Fetch(context.Background(), src); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	fetcher.CommitValidators(src)
	_, err := fetcher.Fetch(context.Background(), src)
	if !errors.Is(err, ErrNotModified) {
		t.Fatalf("expected ErrNotModified, got %v", err)
	}
	second := client.calls[1]
	if second["If-None-Match"] != `"abc"` || second["If-Modified-Since"] == "" {
		t.Fatalf("validators not sent: %#v", second)
	}
}

func TestHTMLTableFetcherUncommittedValidatorsAreNotSent(t *testing.T) {
	src := noticeSource()
	src.ConditionalFetch = true
	ok := fakeResponse{body: []byte(noticePage), statusCode: http.StatusOK, headers: map[string]string{"ETag": `"v1"`}}
	client := &fakeHTTPClient{responses: []fakeResponse{ok, ok, ok, ok}}
	fetcher := NewHTMLTableFetcher(client).(ConditionalFetcher)

	// a run that failed after downloading never commits
	if _, err := fetcher.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	fetcher.DiscardValidators(src)
	if _, err := fetcher.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := client.calls[1]["If-None-Match"]; ok {
		t.Fatalf("discarded validators were sent: %#v", client.calls[1])
	}

	fetcher.CommitValidators(src)
	if _, err := fetcher.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if client.calls[2]["If-None-Match"] != `"v1"` {
		t.Fatalf("committed validators not sent: %#v", client.calls[2])
	}

	fetcher.DiscardValidators(src)
	if _, err := fetcher.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := client.calls[3]["If-None-Match"]; ok {
		t.Fatalf("validators survived discard: %#v", client.calls[3])
	}
}

func TestHTMLTableFetcherRejectsOtherTypes(t *testing.T) {
	src := noticeSource()
	src.Type = TypeRSS
	if _, err := NewHTMLTableFetcher(&fakeHTTPClient{}).Fetch(context.Background(), src); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestResolveURLHandlesRelative(t *testing.T) {
	got := resolveURL("/img.png", "https://example.com/articles/1")
	if got != "https://example.com/img.png" {
		t.Fatalf("resolveURL got %q", got)
	}

	if got := resolveURL("", "https://example.com"); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestResponseSnippet(t *testing.T) {
	if got := responseSnippet(nil); got != "<empty>" {
		t.Fatalf("responseSnippet(nil) = %q", got)
	}
	if got := responseSnippet([]byte(strings.Repeat("x", 600))); len(got) != 515 {
		t.Fatalf("expected truncated snippet, got %d chars", len(got))
	}
}
