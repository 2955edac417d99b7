package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"remarknews/config"

	"github.com/dustin/go-humanize"
	"github.com/wneessen/go-mail"
)

const emailBody = "Here is the news you requested."

// MailSender is the part of *mail.Client used for delivery.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Email sends each file as an attachment over authenticated SMTP.
type Email struct {
	cfg    config.EmailConfig
	date   time.Time
	sender MailSender
}

// NewEmail returns an email deliverer. A nil sender dials cfg.Host with
// STARTTLS and plain auth.
func NewEmail(cfg config.EmailConfig, date time.Time, sender MailSender) (*Email, error) {
	if cfg.Sender == "" || cfg.Receiver == "" {
		return nil, fmt.Errorf("email delivery requires EMAIL_SENDER and EMAIL_RECEIVER")
	}
	if sender == nil {
		username := cfg.Username
		if username == "" {
			username = cfg.Sender
		}
		client, err := mail.NewClient(cfg.Host,
			mail.WithPort(cfg.Port),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithTLSPortPolicy(mail.TLSMandatory),
			mail.WithUsername(username),
			mail.WithPassword(cfg.Password),
		)
		if err != nil {
			return nil, fmt.Errorf("creating smtp client: %w", err)
		}
		sender = client
	}
	return &Email{cfg: cfg, date: date, sender: sender}, nil
}

func (e *Email) Name() string { return config.DeliveryEmail }

// Message builds the email carrying file.
func (e *Email) Message(file string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.cfg.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(e.cfg.Receiver); err != nil {
		return nil, fmt.Errorf("invalid receiver: %w", err)
	}
	m.Subject("News " + e.date.Format("20060102"))
	m.SetBodyString(mail.TypeTextPlain, emailBody)
	m.AttachFile(file, mail.WithFileContentType(mail.ContentType(contentType(file))))
	return m, nil
}

func (e *Email) Deliver(ctx context.Context, file string) error {
	size, err := fileSize(file)
	if err != nil {
		return err
	}
	m, err := e.Message(file)
	if err != nil {
		return err
	}
	if err := e.sender.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending %s: %w", file, err)
	}
	slog.Info("email sent", "to", e.cfg.Receiver, "file", file, "size", humanize.Bytes(size))
	return nil
}
