package notify

import (
	"context"
	"errors"
)

// SMSTransport sends one text message and returns the provider's message reference.
type SMSTransport interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type EmailMessage struct {
	To       string
	CC       []string
	BCC      []string
	Subject  string
	BodyHTML string
	BodyText string
}

// MailTransport sends one email and returns the message identifier when known.
type MailTransport interface {
	SendMail(ctx context.Context, msg EmailMessage) (string, error)
}

type ChatTransport interface {
	PostAlert(ctx context.Context, channel string, alert Alert) error
}

var ErrNotConfigured = errors.New("transport is not configured")

// Disabled stands in for any transport whose credentials are missing.
// Every call fails, so attempts are still audited as FAILED.
type Disabled struct {
	Name string
}

func (d Disabled) err() error {
	return &disabledError{name: d.Name}
}

func (d Disabled) SendSMS(context.Context, string, string) (string, error) {
	return "", d.err()
}

func (d Disabled) SendMail(context.Context, EmailMessage) (string, error) {
	return "", d.err()
}

func (d Disabled) PostAlert(context.Context, string, Alert) error {
	return d.err()
}

type disabledError struct {
	name string
}

func (e *disabledError) Error() string {
	return e.name + " transport is not configured"
}

func (e *disabledError) Is(target error) bool {
	return target == ErrNotConfigured
}
