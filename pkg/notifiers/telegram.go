package notifiers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Adda-Baaj/notice-watch/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

// telegramMaxRunes is the Bot API limit for one message text.
const telegramMaxRunes = 4096

// maxRetryAfter bounds how long a rate-limited send waits before its single retry.
const maxRetryAfter = 30 * time.Second

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type telegramNotifier struct {
	id          string
	endpoint    string
	chatIDs     []string
	renderLimit int
	client      *resty.Client
	log         Logger
}

func newTelegramNotifier(_ context.Context, cfg NotifierConfig, opts BuildOptions) (Notifier, error) {
	if cfg.Telegram == nil {
		return nil, fmt.Errorf("notifier %q missing telegram configuration", cfg.ID)
	}

	chatIDs := cfg.Telegram.ChatIDs
	if opts.Testing {
		chatIDs = cfg.Telegram.TestChatIDs
	}
	if len(chatIDs) == 0 {
		return nil, fmt.Errorf("notifier %q has no telegram chat ids for this mode", cfg.ID)
	}

	return &telegramNotifier{
		id:          cfg.ID,
		endpoint:    fmt.Sprintf("%s/bot%s/sendMessage", cfg.Telegram.BaseURL, cfg.Telegram.Token),
		chatIDs:     chatIDs,
		renderLimit: opts.RenderLimit,
		client:      httpclient.NewRestyHTTPClient(time.Duration(cfg.Telegram.TimeoutSeconds) * time.Second),
		log:         ensureLogger(opts.Log),
	}, nil
}

func (t *telegramNotifier) ID() string   { return t.id }
func (t *telegramNotifier) Type() string { return TypeTelegram }

// Notify sends the rendered text to every chat. A failing chat does not stop
// the remaining ones.
func (t *telegramNotifier) Notify(ctx context.Context, n Notification) error {
	parts := splitMessage(RenderText(n, t.renderLimit), telegramMaxRunes)

	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.sendChat(ctx, chatID, parts); err != nil {
			t.log.WarnObj("telegram send failed", "notifier_telegram_error", map[string]any{
				"notifier_id": t.id,
				"chat_id":     chatID,
				"error":       err.Error(),
			})
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
			continue
		}
		t.log.DebugObj("telegram message delivered", "notifier_telegram_delivery", map[string]any{
			"notifier_id": t.id,
			"chat_id":     chatID,
			"parts":       len(parts),
		})
	}
	return errors.Join(errs...)
}

func (t *telegramNotifier) sendChat(ctx context.Context, chatID string, parts []string) error {
	for _, text := range parts {
		if err := t.send(ctx, chatID, text, true); err != nil {
			return err
		}
	}
	return nil
}

func (t *telegramNotifier) send(ctx context.Context, chatID, text string, retry bool) error {
	var out telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"chat_id": chatID, "text": text}).
		SetResult(&out).
		SetError(&out).
		Post(t.endpoint)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests && retry {
		wait := time.Duration(out.Parameters.RetryAfter) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		if wait > maxRetryAfter {
			wait = maxRetryAfter
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		return t.send(ctx, chatID, text, false)
	}

	if resp.IsError() || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = readBodySnippet(resp.Body())
		}
		return fmt.Errorf("telegram response status %d: %s", resp.StatusCode(), desc)
	}
	return nil
}
