package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cmnlog "triage_server/server/common/log"
	"triage_server/server/triage/domain"
	"triage_server/server/triage/notify"
)

type AuditStore interface {
	CreateMessage(ctx context.Context, rec domain.MessageRecord) (domain.MessageRecord, error)
	CreateEmail(ctx context.Context, rec domain.EmailRecord) (domain.EmailRecord, error)
	ListMessages(ctx context.Context, emergencyID string) ([]domain.MessageRecord, error)
	ListEmails(ctx context.Context, emergencyID string) ([]domain.EmailRecord, error)
}

type ReportChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Sender interface {
	SenderPhone() string
	SendMessage(ctx context.Context, recipientPhone, body string) notify.DeliveryOutcome
	SendEmailMessage(ctx context.Context, msg notify.EmailMessage) notify.DeliveryOutcome
}

type SendEmailInput struct {
	EmergencyID    string
	RecipientEmail string
	Subject        string
	BodyHTML       string
	BodyText       string
	CCEmails       []string
	BCCEmails      []string
}

// CommunicationService sends SMS/email for a report and records exactly one audit
// row per attempt. A failed send is recorded as FAILED before the error is returned.
type CommunicationService struct {
	audit   AuditStore
	reports ReportChecker
	sender  Sender
	events  EventPublisher
	now     func() time.Time
}

func NewCommunicationService(audit AuditStore, reports ReportChecker, sender Sender, events EventPublisher) *CommunicationService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &CommunicationService{audit: audit, reports: reports, sender: sender, events: events, now: time.Now}
}

// SendSMS returns the persisted record. On transport failure the record is returned
// together with a *domain.TransportError.
func (s *CommunicationService) SendSMS(ctx context.Context, emergencyID, recipientPhone, body string) (domain.MessageRecord, error) {
	verr := &domain.ValidationError{}
	if !isUUID(emergencyID) {
		verr.Add("emergencyId", "must be a valid UUID")
	}
	if strings.TrimSpace(recipientPhone) == "" {
		verr.Add("recipientPhone", "is required")
	}
	if strings.TrimSpace(body) == "" {
		verr.Add("messageBody", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return domain.MessageRecord{}, err
	}
	if err := s.ensureReport(ctx, emergencyID); err != nil {
		return domain.MessageRecord{}, err
	}

	// Once initiated, the send and its audit row complete even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	outcome := s.sender.SendMessage(ctx, recipientPhone, body)

	rec := domain.MessageRecord{
		EmergencyReportID: emergencyID,
		Direction:         domain.DirectionOutbound,
		RecipientPhone:    recipientPhone,
		SenderPhone:       s.sender.SenderPhone(),
		MessageBody:       body,
	}
	if outcome.Success {
		sentAt := s.now().UTC()
		rec.Status = domain.DeliverySent
		rec.SentAt = &sentAt
		if outcome.TransportReference != "" {
			ref := outcome.TransportReference
			rec.TransportReference = &ref
		}
	} else {
		detail := outcome.ErrorDetail
		rec.Status = domain.DeliveryFailed
		rec.ErrorMessage = &detail
	}

	saved, err := s.audit.CreateMessage(ctx, rec)
	if err != nil {
		cmnlog.Errorf("audit sms attempt emergency_id=%s status=%s: %v", emergencyID, rec.Status, err)
		return rec, joinAuditFailure("sms", outcome, err)
	}

	if !outcome.Success {
		cmnlog.Warnf("sms failed emergency_id=%s record_id=%s: %s", emergencyID, saved.ID, outcome.ErrorDetail)
		s.publishDelivery(ctx, EventSMSFailed, saved.EmergencyReportID, saved.ID, saved.Status)
		return saved, transportError("sms", outcome)
	}
	cmnlog.Infof("sms sent emergency_id=%s record_id=%s", emergencyID, saved.ID)
	s.publishDelivery(ctx, EventSMSSent, saved.EmergencyReportID, saved.ID, saved.Status)
	return saved, nil
}

func (s *CommunicationService) SendEmail(ctx context.Context, in SendEmailInput) (domain.EmailRecord, error) {
	verr := &domain.ValidationError{}
	if !isUUID(in.EmergencyID) {
		verr.Add("emergencyId", "must be a valid UUID")
	}
	if strings.TrimSpace(in.RecipientEmail) == "" {
		verr.Add("recipientEmail", "is required")
	}
	if strings.TrimSpace(in.Subject) == "" {
		verr.Add("subject", "is required")
	}
	if strings.TrimSpace(in.BodyHTML) == "" {
		verr.Add("bodyHtml", "is required")
	}
	if strings.TrimSpace(in.BodyText) == "" {
		verr.Add("bodyText", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return domain.EmailRecord{}, err
	}
	if err := s.ensureReport(ctx, in.EmergencyID); err != nil {
		return domain.EmailRecord{}, err
	}

	ctx = context.WithoutCancel(ctx)
	cc := nonNil(in.CCEmails)
	bcc := nonNil(in.BCCEmails)
	outcome := s.sender.SendEmailMessage(ctx, notify.EmailMessage{
		To:       in.RecipientEmail,
		CC:       cc,
		BCC:      bcc,
		Subject:  in.Subject,
		BodyHTML: in.BodyHTML,
		BodyText: in.BodyText,
	})

	rec := domain.EmailRecord{
		EmergencyReportID: in.EmergencyID,
		RecipientEmail:    in.RecipientEmail,
		CCEmails:          cc,
		BCCEmails:         bcc,
		Subject:           in.Subject,
		BodyHTML:          in.BodyHTML,
		BodyText:          in.BodyText,
	}
	if outcome.Success {
		sentAt := s.now().UTC()
		rec.Status = domain.DeliverySent
		rec.SentAt = &sentAt
	} else {
		detail := outcome.ErrorDetail
		rec.Status = domain.DeliveryFailed
		rec.ErrorMessage = &detail
	}

	saved, err := s.audit.CreateEmail(ctx, rec)
	if err != nil {
		cmnlog.Errorf("audit email attempt emergency_id=%s status=%s: %v", in.EmergencyID, rec.Status, err)
		return rec, joinAuditFailure("email", outcome, err)
	}

	if !outcome.Success {
		cmnlog.Warnf("email failed emergency_id=%s record_id=%s: %s", in.EmergencyID, saved.ID, outcome.ErrorDetail)
		s.publishDelivery(ctx, EventEmailFailed, saved.EmergencyReportID, saved.ID, saved.Status)
		return saved, transportError("email", outcome)
	}
	cmnlog.Infof("email sent emergency_id=%s record_id=%s", in.EmergencyID, saved.ID)
	s.publishDelivery(ctx, EventEmailSent, saved.EmergencyReportID, saved.ID, saved.Status)
	return saved, nil
}

func (s *CommunicationService) MessageHistory(ctx context.Context, emergencyID string) ([]domain.MessageRecord, error) {
	if !isUUID(emergencyID) {
		return nil, domain.NewValidationError("emergencyId", "must be a valid UUID")
	}
	return s.audit.ListMessages(ctx, emergencyID)
}

func (s *CommunicationService) EmailHistory(ctx context.Context, emergencyID string) ([]domain.EmailRecord, error) {
	if !isUUID(emergencyID) {
		return nil, domain.NewValidationError("emergencyId", "must be a valid UUID")
	}
	return s.audit.ListEmails(ctx, emergencyID)
}

func (s *CommunicationService) ensureReport(ctx context.Context, emergencyID string) error {
	exists, err := s.reports.Exists(ctx, emergencyID)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Entity: "emergency report", ID: emergencyID}
	}
	return nil
}

func (s *CommunicationService) publishDelivery(ctx context.Context, event, emergencyID, recordID string, status domain.DeliveryStatus) {
	err := s.events.Publish(ctx, event, CommunicationEvent{
		Event:       event,
		EmergencyID: emergencyID,
		RecordID:    recordID,
		Status:      status,
		OccurredAt:  s.now().UTC(),
	})
	if err != nil {
		cmnlog.Warnf("publish %s record_id=%s: %v", event, recordID, err)
	}
}

func transportError(channel string, outcome notify.DeliveryOutcome) error {
	cause := outcome.Err
	if cause == nil {
		cause = errors.New(outcome.ErrorDetail)
	}
	return &domain.TransportError{Channel: channel, Err: cause}
}

func joinAuditFailure(channel string, outcome notify.DeliveryOutcome, auditErr error) error {
	wrapped := fmt.Errorf("record %s attempt: %w", channel, auditErr)
	if outcome.Success {
		return wrapped
	}
	return errors.Join(transportError(channel, outcome), wrapped)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
