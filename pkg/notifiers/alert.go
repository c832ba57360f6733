package notifiers

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"
)

// MaintainerAlerter emails a maintainer when a run fails. A nil alerter
// ignores alerts.
type MaintainerAlerter struct {
	appName  string
	to       string
	from     string
	fromName string
	sender   *smtpSender
	log      Logger
}

// NewMaintainerAlerter borrows the SMTP settings of the first email channel
// in cfgs. It returns nil when maintainer is empty or no email channel exists.
func NewMaintainerAlerter(cfgs []NotifierConfig, maintainer, appName string, log Logger) (*MaintainerAlerter, error) {
	maintainer = strings.TrimSpace(maintainer)
	if maintainer == "" {
		return nil, nil
	}
	for _, cfg := range cfgs {
		if cfg.Type != TypeEmail || cfg.Email == nil {
			continue
		}
		sender, err := newSMTPSender(*cfg.Email)
		if err != nil {
			return nil, fmt.Errorf("maintainer alerter: %w", err)
		}
		return &MaintainerAlerter{
			appName:  appName,
			to:       maintainer,
			from:     cfg.Email.From,
			fromName: cfg.Email.FromName,
			sender:   sender,
			log:      ensureLogger(log),
		}, nil
	}
	ensureLogger(log).WarnObj("maintainer email set but no email notifier configured", "maintainer_alert_disabled", map[string]any{
		"maintainer": maintainer,
	})
	return nil, nil
}

// Alert reports runErr to the maintainer.
func (a *MaintainerAlerter) Alert(ctx context.Context, runErr error) error {
	if a == nil || runErr == nil {
		return nil
	}

	m := mail.NewMsg()
	if err := m.FromFormat(a.fromName, a.from); err != nil {
		return fmt.Errorf("invalid from address %q: %w", a.from, err)
	}
	if err := m.To(a.to); err != nil {
		return fmt.Errorf("invalid maintainer address %q: %w", a.to, err)
	}
	m.Subject(fmt.Sprintf("⚠️ %s run failed", a.appName))
	body := fmt.Sprintf("<html><body><p>%s run failed at %s:</p><pre>%s</pre></body></html>",
		html.EscapeString(a.appName),
		time.Now().UTC().Format(time.RFC3339),
		html.EscapeString(runErr.Error()),
	)
	m.SetBodyString(mail.TypeTextHTML, body)

	if err := a.sender.send(ctx, m); err != nil {
		a.log.ErrorObj("maintainer alert failed", "maintainer_alert_error", map[string]any{
			"to":    a.to,
			"error": err.Error(),
		})
		return err
	}
	a.log.InfoObj("maintainer alerted", "maintainer_alert", map[string]any{"to": a.to})
	return nil
}
