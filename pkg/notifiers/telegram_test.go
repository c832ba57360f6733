package notifiers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

type telegramCall struct {
	Path   string
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func newTelegramServer(t *testing.T, handle func(n int, call telegramCall, w http.ResponseWriter)) (*httptest.Server, *[]telegramCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []telegramCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call telegramCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode body: %v", err)
		}
		call.Path = r.URL.Path
		mu.Lock()
		calls = append(calls, call)
		n := len(calls)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handle(n, call, w)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func buildTelegram(t *testing.T, baseURL string, testMode bool) Notifier {
	t.Helper()
	cfg := sanitizeNotifierConfig(NotifierConfig{
		ID:   "tg",
		Type: TypeTelegram,
		Telegram: &TelegramNotifierConfig{
			Token:       "TOKEN",
			ChatIDs:     []string{"100,200"},
			TestChatIDs: []string{"999"},
			BaseURL:     baseURL,
		},
	})
	nt, err := newTelegramNotifier(context.Background(), cfg, BuildOptions{Testing: testMode, RenderLimit: 5})
	if err != nil {
		t.Fatalf("newTelegramNotifier: %v", err)
	}
	return nt
}

func TestTelegramNotifierSendsToEveryChat(t *testing.T) {
	srv, calls := newTelegramServer(t, func(_ int, _ telegramCall, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	n := NewNotification("s", "", "", domain.EntryList{domain.NewEntry("01-01-2025", "Exam", "https://example.com/e.pdf")}, nil)
	if err := buildTelegram(t, srv.URL, false).Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(*calls))
	}
	first := (*calls)[0]
	if first.Path != "/botTOKEN/sendMessage" || first.ChatID != "100" {
		t.Fatalf("unexpected call %+v", first)
	}
	if !strings.Contains(first.Text, "1. 01-01-2025 - Exam") || !strings.Contains(first.Text, "🔗 https://example.com/e.pdf") {
		t.Fatalf("text = %q", first.Text)
	}
}

func TestTelegramNotifierTestingUsesTestChats(t *testing.T) {
	srv, calls := newTelegramServer(t, func(_ int, _ telegramCall, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	if err := buildTelegram(t, srv.URL, true).Notify(context.Background(), Notification{Count: 0}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].ChatID != "999" {
		t.Fatalf("calls = %+v", *calls)
	}
}

func TestTelegramNotifierRetriesOnceAfterRateLimit(t *testing.T) {
	srv, calls := newTelegramServer(t, func(n int, _ telegramCall, w http.ResponseWriter) {
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Too Many Requests","parameters":{"retry_after":1}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	cfg := sanitizeNotifierConfig(NotifierConfig{ID: "tg", Type: TypeTelegram, Telegram: &TelegramNotifierConfig{Token: "T", ChatIDs: []string{"1"}, BaseURL: srv.URL}})
	nt, err := newTelegramNotifier(context.Background(), cfg, BuildOptions{})
	if err != nil {
		t.Fatalf("newTelegramNotifier: %v", err)
	}
	if err := nt.Notify(context.Background(), Notification{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", len(*calls))
	}
}

func TestTelegramNotifierReportsFailedChats(t *testing.T) {
	srv, _ := newTelegramServer(t, func(_ int, call telegramCall, w http.ResponseWriter) {
		if call.ChatID == "200" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	err := buildTelegram(t, srv.URL, false).Notify(context.Background(), Notification{})
	if err == nil || !strings.Contains(err.Error(), "chat not found") || !strings.Contains(err.Error(), "200") {
		t.Fatalf("expected chat 200 failure, got %v", err)
	}
}

func TestNewTelegramNotifierWithoutTestChats(t *testing.T) {
	cfg := sanitizeNotifierConfig(NotifierConfig{ID: "tg", Type: TypeTelegram, Telegram: &TelegramNotifierConfig{Token: "T", ChatIDs: []string{"1"}}})
	if _, err := newTelegramNotifier(context.Background(), cfg, BuildOptions{Testing: true}); err == nil {
		t.Fatalf("expected error without test chat ids")
	}
}
