package notifiers

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	mail "github.com/wneessen/go-mail"
)

// TLSMode determines how the SMTP client negotiates TLS.
type TLSMode string

const (
	// TLSModeAuto uses port-based defaults (implicit TLS on 465, STARTTLS otherwise).
	TLSModeAuto     TLSMode = "auto"
	TLSModeDisabled TLSMode = "disabled"
	TLSModeStartTLS TLSMode = "starttls"
	TLSModeImplicit TLSMode = "implicit"
)

// mailClient is the part of *mail.Client the notifiers use.
type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// smtpSender owns SMTP connection settings shared by the email notifier and
// the maintainer alerter.
type smtpSender struct {
	host               string
	port               int
	username           string
	password           string
	tlsMode            string
	insecureSkipVerify bool

	// dial builds a client per send; tests replace it.
	dial func() (mailClient, error)
}

func newSMTPSender(cfg EmailNotifierConfig) (*smtpSender, error) {
	s := &smtpSender{
		host:               cfg.Host,
		port:               cfg.Port,
		username:           cfg.Username,
		password:           cfg.Password,
		tlsMode:            cfg.TLSMode,
		insecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if _, err := s.resolveTLSMode(); err != nil {
		return nil, err
	}
	s.dial = s.newClient
	return s, nil
}

func (s *smtpSender) newClient() (mailClient, error) {
	mode, err := s.resolveTLSMode()
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.insecureSkipVerify,
		}),
	}
	switch mode {
	case TLSModeDisabled:
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSModeStartTLS:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case TLSModeImplicit:
		opts = append(opts, mail.WithSSL())
	}
	if s.username != "" {
		opts = append(opts,
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	client, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// send delivers msgs over one connection.
func (s *smtpSender) send(ctx context.Context, msgs ...*mail.Msg) error {
	client, err := s.dial()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msgs...); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// resolveTLSMode returns the configured TLS behavior, falling back to port defaults.
func (s *smtpSender) resolveTLSMode() (TLSMode, error) {
	mode, err := parseTLSMode(s.tlsMode)
	if err != nil {
		return "", err
	}
	if mode == TLSModeAuto {
		if s.port == 465 {
			return TLSModeImplicit, nil
		}
		return TLSModeStartTLS, nil
	}
	return mode, nil
}

// parseTLSMode normalizes the TLS mode string and validates supported values.
func parseTLSMode(mode string) (TLSMode, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "auto":
		return TLSModeAuto, nil
	case "disabled", "off", "none":
		return TLSModeDisabled, nil
	case "starttls", "start_tls":
		return TLSModeStartTLS, nil
	case "implicit", "ssl", "smtps":
		return TLSModeImplicit, nil
	default:
		return "", fmt.Errorf("invalid smtp tls mode %q (expected auto, disabled, starttls or implicit)", mode)
	}
}

type emailNotifier struct {
	id          string
	from        string
	fromName    string
	subject     string
	recipients  []string
	testing     bool
	renderLimit int
	sender      *smtpSender
	log         Logger
}

func newEmailNotifier(_ context.Context, cfg NotifierConfig, opts BuildOptions) (Notifier, error) {
	if cfg.Email == nil {
		return nil, fmt.Errorf("notifier %q missing email configuration", cfg.ID)
	}

	recipients := cfg.Email.Recipients
	if opts.Testing {
		recipients = cfg.Email.TestRecipients
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("notifier %q has no email recipients for this mode", cfg.ID)
	}

	sender, err := newSMTPSender(*cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("notifier %q: %w", cfg.ID, err)
	}

	return &emailNotifier{
		id:          cfg.ID,
		from:        cfg.Email.From,
		fromName:    cfg.Email.FromName,
		subject:     cfg.Email.Subject,
		recipients:  recipients,
		testing:     opts.Testing,
		renderLimit: opts.RenderLimit,
		sender:      sender,
		log:         ensureLogger(opts.Log),
	}, nil
}

func (e *emailNotifier) ID() string   { return e.id }
func (e *emailNotifier) Type() string { return TypeEmail }

// Notify sends one message per recipient over a single SMTP session so
// addresses are never disclosed to each other.
func (e *emailNotifier) Notify(ctx context.Context, n Notification) error {
	html, err := RenderHTML(n, e.renderLimit)
	if err != nil {
		return err
	}
	text := RenderText(n, e.renderLimit)
	subject := RenderSubject(e.subject, e.testing || n.Testing)

	msgs := make([]*mail.Msg, 0, len(e.recipients))
	for _, rcpt := range e.recipients {
		m := mail.NewMsg()
		if err := m.FromFormat(e.fromName, e.from); err != nil {
			return fmt.Errorf("invalid from address %q: %w", e.from, err)
		}
		if err := m.To(rcpt); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", rcpt, err)
		}
		m.Subject(subject)
		m.SetBodyString(mail.TypeTextHTML, html)
		m.AddAlternativeString(mail.TypeTextPlain, text)
		msgs = append(msgs, m)
	}

	sendErr := e.sender.send(ctx, msgs...)
	if sendErr == nil {
		e.log.DebugObj("email notifier delivered", "notifier_email_delivery", map[string]any{
			"notifier_id": e.id,
			"recipients":  len(msgs),
		})
		return nil
	}

	var failed []string
	for i, m := range msgs {
		if m.HasSendError() {
			failed = append(failed, e.recipients[i])
		}
	}
	e.log.ErrorObj("email notifier send failed", "notifier_email_error", map[string]any{
		"notifier_id": e.id,
		"failed":      failed,
		"error":       sendErr.Error(),
	})
	if len(failed) > 0 && len(failed) < len(msgs) {
		return fmt.Errorf("%d of %d recipients failed (%s): %w", len(failed), len(msgs), strings.Join(failed, ", "), sendErr)
	}
	return sendErr
}
