package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/notice-watch/internal/config"
	"github.com/Adda-Baaj/notice-watch/internal/monitor"
	"github.com/Adda-Baaj/notice-watch/pkg/notifiers"
)

const listingPage = `<html><body>
<table class="table table-striped"><tbody>
<tr><td>Notice C</td><td>03-02-2025</td><td><a href="/c.pdf">Download</a></td></tr>
<tr><td>Notice B</td><td>02-02-2025</td><td></td></tr>
<tr><td>Notice A</td><td>01-02-2025</td><td></td></tr>
</tbody></table>
</body></html>`

type hookRecorder struct {
	mu   sync.Mutex
	sent []notifiers.Notification
}

func (h *hookRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var n notifiers.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("decode hook body: %v", err)
		}
		h.mu.Lock()
		h.sent = append(h.sent, n)
		h.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *hookRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

func testConfig(t *testing.T, sourceURL, hookURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	notifiersFile := filepath.Join(dir, "notifiers.yaml")
	raw := "notifiers:\n  - id: hook\n    type: http\n    in_testing: true\n    http:\n      url: " + hookURL + "\n"
	if err := os.WriteFile(notifiersFile, []byte(raw), 0o644); err != nil {
		t.Fatalf("write notifiers file: %v", err)
	}

	return &config.Config{
		AppName:             "notice-watch",
		SourceID:            "rgccr",
		SourceName:          "RGCCR Notices",
		SourceType:          "html_table",
		SourceURL:           sourceURL,
		SourceTableSelector: "table.table-striped",
		SourceRowSelector:   "tbody tr",
		SourceRowLimit:      10,
		SourceUserAgent:     "notice-watch-test",
		SourceTimeout:       2 * time.Second,
		IdentityPolicy:      "title",
		DetectStrategy:      "prefix",
		StateShape:          "single",
		StateWindowSize:     10,
		StorageType:         "file",
		StatePath:           filepath.Join(dir, "latest_notice.json"),
		NotifiersFile:       notifiersFile,
		RenderLimit:         5,
	}
}

func TestWatcherRunOnceEndToEnd(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer page.Close()
	hook := &hookRecorder{}
	hookSrv := httptest.NewServer(hook.handler(t))
	defer hookSrv.Close()

	cfg := testConfig(t, page.URL, hookSrv.URL)
	w, err := NewWatcher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	rep, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if rep.State != monitor.StateNotified || rep.New != 3 {
		t.Fatalf("first report = %+v", rep)
	}
	if hook.count() != 1 || hook.sent[0].Entries[0].Link != page.URL+"/c.pdf" {
		t.Fatalf("hook received %+v", hook.sent)
	}

	rep, err = w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if rep.State != monitor.StateNoChange || hook.count() != 1 {
		t.Fatalf("second run should be quiet: %+v", rep)
	}

	if _, err := os.Stat(cfg.StatePath); err != nil {
		t.Fatalf("state file not written: %v", err)
	}
}

func TestWatcherRunWithoutScheduleReturnsRunError(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer page.Close()
	hook := &hookRecorder{}
	hookSrv := httptest.NewServer(hook.handler(t))
	defer hookSrv.Close()

	w, err := NewWatcher(context.Background(), testConfig(t, page.URL, hookSrv.URL), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	err = w.Run(context.Background())
	if !errors.Is(err, monitor.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if hook.count() != 0 {
		t.Fatalf("failed fetch must not notify")
	}
}

func TestWatcherScheduledRunStopsOnCancel(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer page.Close()
	hook := &hookRecorder{}
	hookSrv := httptest.NewServer(hook.handler(t))
	defer hookSrv.Close()

	cfg := testConfig(t, page.URL, hookSrv.URL)
	cfg.Schedule = "@every 1h"
	w, err := NewWatcher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for hook.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("initial run never notified")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestNewWatcherRejectsInvalidPolicy(t *testing.T) {
	cfg := testConfig(t, "https://example.com", "https://example.com/hook")
	cfg.DetectStrategy = "set_diff"
	cfg.StateShape = "single"
	if _, err := NewWatcher(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected policy error")
	}
}

func TestNewWatcherInvalidScheduleFailsRun(t *testing.T) {
	cfg := testConfig(t, "https://example.com", "https://example.com/hook")
	cfg.Schedule = "not a cron spec"
	w, err := NewWatcher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("expected schedule error")
	}
}
