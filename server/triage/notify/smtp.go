package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Secure selects implicit TLS (port 465); otherwise STARTTLS is used when offered.
	Secure    bool
	FromName  string
	FromEmail string
	Timeout   time.Duration
}

type SMTPMailer struct {
	client    *mail.Client
	fromName  string
	fromEmail string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, fromName: cfg.FromName, fromEmail: cfg.FromEmail}, nil
}

func (m *SMTPMailer) SendMail(ctx context.Context, msg EmailMessage) (string, error) {
	message, err := m.buildMessage(msg)
	if err != nil {
		return "", err
	}
	if err := m.client.DialAndSendWithContext(ctx, message); err != nil {
		return "", err
	}
	if ids := message.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

// buildMessage produces a multipart/alternative message: plain text first, HTML as the alternative.
func (m *SMTPMailer) buildMessage(msg EmailMessage) (*mail.Msg, error) {
	message := mail.NewMsg()
	if err := message.FromFormat(m.fromName, m.fromEmail); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := message.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if cc := compact(msg.CC); len(cc) > 0 {
		if err := message.Cc(cc...); err != nil {
			return nil, fmt.Errorf("cc: %w", err)
		}
	}
	if bcc := compact(msg.BCC); len(bcc) > 0 {
		if err := message.Bcc(bcc...); err != nil {
			return nil, fmt.Errorf("bcc: %w", err)
		}
	}
	message.Subject(msg.Subject)
	message.SetMessageID()
	message.SetDate()
	message.SetBodyString(mail.TypeTextPlain, msg.BodyText)
	message.AddAlternativeString(mail.TypeTextHTML, msg.BodyHTML)
	return message, nil
}

func compact(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
