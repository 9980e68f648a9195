// Package notify delivers download links to buyers after payment.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

const subject = "Your SubmitReady reimbursement PDF is ready"

// SMTPConfig carries the outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether enough settings exist to send mail.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// SMTP sends download links over SMTP.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP creates the SMTP notifier.
func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

// SendDownloadLink emails the download URL to the buyer.
func (s *SMTP) SendDownloadLink(ctx context.Context, to, downloadURL string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Your reimbursement PDF is ready.\n\nDownload it here: %s\n\nThe link expires in 24 hours.\n", downloadURL))
	msg.AddAlternativeString(mail.TypeTextHTML, fmt.Sprintf(
		`<p>Your reimbursement PDF is ready.</p><p><a href="%s">Download your PDF</a></p><p>The link expires in 24 hours.</p>`, downloadURL))

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

// LogOnly records the download link instead of sending mail; used when SMTP
// is not configured.
type LogOnly struct{}

// SendDownloadLink logs the link.
func (LogOnly) SendDownloadLink(_ context.Context, to, downloadURL string) error {
	slog.Info("download link ready", "to", to, "url", downloadURL)
	return nil
}
