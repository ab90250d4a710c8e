package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"triage_server/server/triage/domain"
)

// CommunicationRepository is the append-only audit log for outbound SMS and email.
type CommunicationRepository struct {
	pool *pgxpool.Pool
}

func NewCommunicationRepository(pool *pgxpool.Pool) *CommunicationRepository {
	return &CommunicationRepository{pool: pool}
}

func (r *CommunicationRepository) CreateMessage(ctx context.Context, rec domain.MessageRecord) (domain.MessageRecord, error) {
	if rec.Direction == "" {
		rec.Direction = domain.DirectionOutbound
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages(emergency_report_id, direction, recipient_phone, sender_phone, message_body,
			transport_reference, status, sent_at, error_message)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, rec.EmergencyReportID, rec.Direction, rec.RecipientPhone, rec.SenderPhone, rec.MessageBody,
		rec.TransportReference, rec.Status, rec.SentAt, rec.ErrorMessage).Scan(&rec.ID, &rec.CreatedAt)
	return rec, err
}

func (r *CommunicationRepository) CreateEmail(ctx context.Context, rec domain.EmailRecord) (domain.EmailRecord, error) {
	if rec.CCEmails == nil {
		rec.CCEmails = []string{}
	}
	if rec.BCCEmails == nil {
		rec.BCCEmails = []string{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO email_logs(emergency_report_id, recipient_email, cc_emails, bcc_emails, subject, body_html, body_text,
			status, sent_at, error_message)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, rec.EmergencyReportID, rec.RecipientEmail, rec.CCEmails, rec.BCCEmails, rec.Subject, rec.BodyHTML, rec.BodyText,
		rec.Status, rec.SentAt, rec.ErrorMessage).Scan(&rec.ID, &rec.CreatedAt)
	return rec, err
}

func (r *CommunicationRepository) ListMessages(ctx context.Context, emergencyID string) ([]domain.MessageRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, emergency_report_id, direction, recipient_phone, sender_phone, message_body,
		       transport_reference, status, sent_at, error_message, created_at
		FROM messages
		WHERE emergency_report_id = $1
		ORDER BY created_at DESC, id DESC
	`, emergencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MessageRecord, 0)
	for rows.Next() {
		var item domain.MessageRecord
		if err := rows.Scan(&item.ID, &item.EmergencyReportID, &item.Direction, &item.RecipientPhone, &item.SenderPhone,
			&item.MessageBody, &item.TransportReference, &item.Status, &item.SentAt, &item.ErrorMessage, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CommunicationRepository) ListEmails(ctx context.Context, emergencyID string) ([]domain.EmailRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, emergency_report_id, recipient_email, cc_emails, bcc_emails, subject, body_html, body_text,
		       status, sent_at, error_message, created_at
		FROM email_logs
		WHERE emergency_report_id = $1
		ORDER BY created_at DESC, id DESC
	`, emergencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.EmailRecord, 0)
	for rows.Next() {
		var item domain.EmailRecord
		if err := rows.Scan(&item.ID, &item.EmergencyReportID, &item.RecipientEmail, &item.CCEmails, &item.BCCEmails,
			&item.Subject, &item.BodyHTML, &item.BodyText, &item.Status, &item.SentAt, &item.ErrorMessage, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
