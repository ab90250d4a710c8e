package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triage_server/server/triage/domain"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ListPresetMessages(ctx context.Context) ([]domain.PresetMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, label, content, category, is_active
		FROM preset_messages
		WHERE is_active = TRUE
		ORDER BY label ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PresetMessage, 0)
	for rows.Next() {
		var item domain.PresetMessage
		if err := rows.Scan(&item.ID, &item.Label, &item.Content, &item.Category, &item.IsActive); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CatalogRepository) ListPresetEmails(ctx context.Context) ([]domain.PresetEmail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, label, subject, body_html, body_text, category, is_active
		FROM preset_emails
		WHERE is_active = TRUE
		ORDER BY label ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PresetEmail, 0)
	for rows.Next() {
		var item domain.PresetEmail
		if err := rows.Scan(&item.ID, &item.Label, &item.Subject, &item.BodyHTML, &item.BodyText, &item.Category, &item.IsActive); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertPresets writes both preset sets in one transaction, keyed by label.
func (r *CatalogRepository) UpsertPresets(ctx context.Context, messages []domain.PresetMessage, emails []domain.PresetEmail) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, m := range messages {
		if _, err := tx.Exec(ctx, `
			INSERT INTO preset_messages(label, content, category, is_active)
			VALUES($1, $2, $3, $4)
			ON CONFLICT (label) DO UPDATE
			SET content = EXCLUDED.content, category = EXCLUDED.category, is_active = EXCLUDED.is_active, updated_at = NOW()
		`, m.Label, m.Content, m.Category, m.IsActive); err != nil {
			return err
		}
	}
	for _, e := range emails {
		if _, err := tx.Exec(ctx, `
			INSERT INTO preset_emails(label, subject, body_html, body_text, category, is_active)
			VALUES($1, $2, $3, $4, $5, $6)
			ON CONFLICT (label) DO UPDATE
			SET subject = EXCLUDED.subject, body_html = EXCLUDED.body_html, body_text = EXCLUDED.body_text,
			    category = EXCLUDED.category, is_active = EXCLUDED.is_active, updated_at = NOW()
		`, e.Label, e.Subject, e.BodyHTML, e.BodyText, e.Category, e.IsActive); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *CatalogRepository) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, email, phone_number, role
		FROM users
		WHERE role IN ('STAFF', 'ADMIN')
		ORDER BY full_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TeamMember, 0)
	for rows.Next() {
		var item domain.TeamMember
		if err := rows.Scan(&item.ID, &item.FullName, &item.Email, &item.PhoneNumber, &item.Role); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetUserRole resolves any user, not only team members, so callers can tell
// "unknown user" apart from "not eligible".
func (r *CatalogRepository) GetUserRole(ctx context.Context, userID string) (domain.Role, error) {
	var role domain.Role
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &domain.NotFoundError{Entity: "user", ID: userID}
	}
	return role, err
}
