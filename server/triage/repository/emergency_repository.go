package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triage_server/server/common/infra/db"
	"triage_server/server/triage/domain"
)

const emergencySelect = `
	SELECT e.id, e.reservation_id, e.reported_by_id, e.emergency_type, e.description,
	       e.photo1_url, e.photo2_url, e.status, e.guidance_instructions,
	       e.assigned_to_id, e.assigned_at, e.resolved_at, e.is_hidden, e.created_at, e.updated_at,
	       r.agreement_number, r.check_in_date, r.check_out_date, r.status,
	       l.id, l.address, COALESCE(l.city, ''), COALESCE(l.state, ''), COALESCE(l.zip_code, ''), COALESCE(l.country, ''),
	       g.id, g.email, g.full_name, g.phone_number, g.role,
	       rb.email, rb.full_name, rb.phone_number, rb.role,
	       a.email, a.full_name, a.phone_number, a.role
	FROM emergency_reports e
	JOIN reservations r ON r.id = e.reservation_id
	JOIN listings l ON l.id = r.listing_id
	JOIN users g ON g.id = r.guest_id
	JOIN users rb ON rb.id = e.reported_by_id
	LEFT JOIN users a ON a.id = e.assigned_to_id`

type EmergencyRepository struct {
	pool *pgxpool.Pool
}

func NewEmergencyRepository(pool *pgxpool.Pool) *EmergencyRepository {
	return &EmergencyRepository{pool: pool}
}

func (r *EmergencyRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.EmergencyReport, error) {
	where, args := buildListWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := emergencySelect + where + fmt.Sprintf(" ORDER BY e.created_at DESC, e.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmergencies(rows)
}

func (r *EmergencyRepository) Count(ctx context.Context, filter domain.ListFilter) (int64, error) {
	where, args := buildListWhere(filter)
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emergency_reports e`+where, args...).Scan(&total)
	return total, err
}

func (r *EmergencyRepository) GetByID(ctx context.Context, id string) (domain.EmergencyReport, error) {
	report, err := scanEmergency(r.pool.QueryRow(ctx, emergencySelect+` WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EmergencyReport{}, &domain.NotFoundError{Entity: "emergency report", ID: id}
	}
	return report, err
}

func (r *EmergencyRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM emergency_reports WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// ListByAgreementNumber includes hidden reports.
func (r *EmergencyRepository) ListByAgreementNumber(ctx context.Context, agreementNumber string) ([]domain.EmergencyReport, error) {
	rows, err := r.pool.Query(ctx, emergencySelect+` WHERE r.agreement_number = $1 ORDER BY e.created_at DESC, e.id DESC`, agreementNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmergencies(rows)
}

func (r *EmergencyRepository) Create(ctx context.Context, in domain.NewEmergencyReport) (domain.EmergencyReport, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO emergency_reports(reservation_id, reported_by_id, emergency_type, description, photo1_url, photo2_url, status)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, in.ReservationID, in.ReportedByID, in.EmergencyType, in.Description, in.Photo1URL, in.Photo2URL, in.Status).Scan(&id)
	if err != nil {
		return domain.EmergencyReport{}, referenceError(err, map[string]string{
			constraintReservation: in.ReservationID,
			constraintReportedBy:  in.ReportedByID,
		})
	}
	return r.GetByID(ctx, id)
}

// Update applies patch in one statement and returns the refreshed report.
func (r *EmergencyRepository) Update(ctx context.Context, id string, patch domain.EmergencyPatch) (domain.EmergencyReport, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}
	sets, args := buildPatch(patch)
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE emergency_reports SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		assignee := ""
		if patch.AssignedToID != nil {
			assignee = *patch.AssignedToID
		}
		return domain.EmergencyReport{}, referenceError(err, map[string]string{constraintAssignedTo: assignee})
	}
	if cmd.RowsAffected() == 0 {
		return domain.EmergencyReport{}, &domain.NotFoundError{Entity: "emergency report", ID: id}
	}
	return r.GetByID(ctx, id)
}

func buildListWhere(filter domain.ListFilter) (string, []any) {
	clauses := []string{"e.is_hidden = FALSE"}
	args := make([]any, 0, 4)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("e.status = $%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("e.assigned_to_id = $%d", len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildPatch(patch domain.EmergencyPatch) ([]string, []any) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 8)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.EmergencyType != nil {
		add("emergency_type", *patch.EmergencyType)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.GuidanceInstructions != nil {
		add("guidance_instructions", *patch.GuidanceInstructions)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.AssignedToID != nil {
		add("assigned_to_id", *patch.AssignedToID)
	}
	if patch.AssignedAt != nil {
		add("assigned_at", *patch.AssignedAt)
	}
	if patch.ResolvedAt != nil {
		add("resolved_at", *patch.ResolvedAt)
	}
	if patch.IsHidden != nil {
		add("is_hidden", *patch.IsHidden)
	}
	return sets, args
}

var constraintFields = map[string]string{
	constraintReservation: "reservationId",
	constraintReportedBy:  "reportedById",
	constraintAssignedTo:  "assignedToId",
}

func referenceError(err error, ids map[string]string) error {
	constraint, ok := db.ForeignKeyViolation(err)
	if !ok {
		return err
	}
	field, known := constraintFields[constraint]
	if !known {
		return err
	}
	return &domain.ReferenceError{Field: field, ID: ids[constraint]}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectEmergencies(rows pgx.Rows) ([]domain.EmergencyReport, error) {
	items := make([]domain.EmergencyReport, 0)
	for rows.Next() {
		item, err := scanEmergency(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanEmergency(row rowScanner) (domain.EmergencyReport, error) {
	var (
		item        domain.EmergencyReport
		reservation domain.Reservation
		reporter    domain.User
		status      string
		guestRole   string
		reportRole  string

		assigneeEmail *string
		assigneeName  *string
		assigneePhone *string
		assigneeRole  *string
	)
	err := row.Scan(
		&item.ID, &item.ReservationID, &item.ReportedByID, &item.EmergencyType, &item.Description,
		&item.Photo1URL, &item.Photo2URL, &status, &item.GuidanceInstructions,
		&item.AssignedToID, &item.AssignedAt, &item.ResolvedAt, &item.IsHidden, &item.CreatedAt, &item.UpdatedAt,
		&reservation.AgreementNumber, &reservation.CheckInDate, &reservation.CheckOutDate, &reservation.Status,
		&reservation.Listing.ID, &reservation.Listing.Address, &reservation.Listing.City, &reservation.Listing.State,
		&reservation.Listing.ZipCode, &reservation.Listing.Country,
		&reservation.Guest.ID, &reservation.Guest.Email, &reservation.Guest.FullName, &reservation.Guest.PhoneNumber, &guestRole,
		&reporter.Email, &reporter.FullName, &reporter.PhoneNumber, &reportRole,
		&assigneeEmail, &assigneeName, &assigneePhone, &assigneeRole,
	)
	if err != nil {
		return domain.EmergencyReport{}, err
	}
	item.Status = domain.EmergencyStatus(status)
	reservation.ID = item.ReservationID
	reservation.Guest.Role = domain.Role(guestRole)
	item.Reservation = &reservation

	reporter.ID = item.ReportedByID
	reporter.Role = domain.Role(reportRole)
	item.ReportedBy = &reporter

	if item.AssignedToID != nil && assigneeEmail != nil {
		assignee := domain.User{ID: *item.AssignedToID, Email: *assigneeEmail, PhoneNumber: assigneePhone}
		if assigneeName != nil {
			assignee.FullName = *assigneeName
		}
		if assigneeRole != nil {
			assignee.Role = domain.Role(*assigneeRole)
		}
		item.AssignedTo = &assignee
	}
	return item, nil
}
