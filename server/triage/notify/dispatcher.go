package notify

import (
	"context"
	"fmt"
	"time"

	cmnlog "triage_server/server/common/log"
	"triage_server/server/triage/domain"
)

// DeliveryOutcome is the uniform result of one send attempt. Failures are data, not errors.
type DeliveryOutcome struct {
	Success            bool
	TransportReference string
	ErrorDetail        string
	Err                error
}

func failed(err error) DeliveryOutcome {
	return DeliveryOutcome{Success: false, ErrorDetail: err.Error(), Err: err}
}

type DispatcherConfig struct {
	SenderPhone  string
	SlackChannel string
	FrontendURL  string
	SendTimeout  time.Duration
}

type Dispatcher struct {
	sms  SMSTransport
	mail MailTransport
	chat ChatTransport
	cfg  DispatcherConfig
}

func NewDispatcher(sms SMSTransport, mail MailTransport, chat ChatTransport, cfg DispatcherConfig) *Dispatcher {
	if sms == nil {
		sms = Disabled{Name: "sms"}
	}
	if mail == nil {
		mail = Disabled{Name: "email"}
	}
	if chat == nil {
		chat = Disabled{Name: "team chat"}
	}
	return &Dispatcher{sms: sms, mail: mail, chat: chat, cfg: cfg}
}

func (d *Dispatcher) SenderPhone() string {
	return d.cfg.SenderPhone
}

func (d *Dispatcher) SendMessage(ctx context.Context, recipientPhone, body string) (out DeliveryOutcome) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	defer recoverInto(&out, "sms")

	ref, err := d.sms.SendSMS(ctx, recipientPhone, body)
	if err != nil {
		return failed(err)
	}
	return DeliveryOutcome{Success: true, TransportReference: ref}
}

func (d *Dispatcher) SendEmailMessage(ctx context.Context, msg EmailMessage) (out DeliveryOutcome) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	defer recoverInto(&out, "email")

	ref, err := d.mail.SendMail(ctx, msg)
	if err != nil {
		return failed(err)
	}
	return DeliveryOutcome{Success: true, TransportReference: ref}
}

// AlertTeam posts a team-chat alert about report. Callers decide whether a failure matters.
func (d *Dispatcher) AlertTeam(ctx context.Context, kind AlertKind, report domain.EmergencyReport) (err error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("team chat transport panicked: %v", r)
		}
	}()

	alert := BuildAlert(kind, report, d.cfg.FrontendURL)
	if err := d.chat.PostAlert(ctx, d.cfg.SlackChannel, alert); err != nil {
		return fmt.Errorf("post %s alert: %w", kind, err)
	}
	cmnlog.Debugf("posted %s alert emergency_id=%s channel=%s", kind, report.ID, d.cfg.SlackChannel)
	return nil
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.SendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.SendTimeout)
}

func recoverInto(out *DeliveryOutcome, channel string) {
	if r := recover(); r != nil {
		*out = failed(fmt.Errorf("%s transport panicked: %v", channel, r))
	}
}
