package notifiers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/notice-watch/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

const (
	eventNoticesChanged = "notices.changed"
	eventNoticesTest    = "notices.test"

	headerEvent  = "X-Notice-Event"
	headerSource = "X-Notice-Source"
)

// webhookPayload is the notification plus an event name and a plain-text
// rendering, so chat webhooks that only read "text" still show something.
type webhookPayload struct {
	Event string `json:"event"`
	Text  string `json:"text"`
	Notification
}

type httpNotifier struct {
	id          string
	method      string
	url         string
	headers     map[string]string
	renderLimit int
	client      *resty.Client
	log         Logger
}

func newHTTPNotifier(_ context.Context, cfg NotifierConfig, opts BuildOptions) (Notifier, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("notifier %q missing http configuration", cfg.ID)
	}

	return &httpNotifier{
		id:          cfg.ID,
		method:      cfg.HTTP.Method,
		url:         cfg.HTTP.URL,
		headers:     cfg.HTTP.Headers,
		renderLimit: opts.RenderLimit,
		client:      httpclient.NewRestyHTTPClient(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second),
		log:         ensureLogger(opts.Log),
	}, nil
}

func (h *httpNotifier) ID() string   { return h.id }
func (h *httpNotifier) Type() string { return TypeHTTP }

func (h *httpNotifier) Notify(ctx context.Context, n Notification) error {
	event := eventNoticesChanged
	if n.Testing {
		event = eventNoticesTest
	}

	// configured headers win over the defaults
	req := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(headerEvent, event).
		SetHeader(headerSource, n.SourceID).
		SetHeaders(h.headers).
		SetBody(webhookPayload{
			Event:        event,
			Text:         RenderText(n, h.renderLimit),
			Notification: n,
		})

	resp, err := req.Execute(h.method, h.url)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		snippet := readBodySnippet(resp.Body())
		h.log.ErrorObj("http notifier rejected", "notifier_http_error", map[string]any{
			"notifier_id": h.id,
			"status":      resp.StatusCode(),
			"body":        snippet,
		})
		return fmt.Errorf("http response status %d: %s", resp.StatusCode(), snippet)
	}
	h.log.DebugObj("http notifier delivered", "notifier_http_delivery", map[string]any{
		"notifier_id": h.id,
		"status":      resp.StatusCode(),
		"event":       event,
		"count":       n.Count,
		"removed":     len(n.Removed),
	})
	return nil
}

func readBodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
