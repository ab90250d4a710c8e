package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cmnlog "triage_server/server/common/log"
	"triage_server/server/triage/domain"
	"triage_server/server/triage/notify"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type EmergencyStore interface {
	List(ctx context.Context, filter domain.ListFilter) ([]domain.EmergencyReport, error)
	Count(ctx context.Context, filter domain.ListFilter) (int64, error)
	GetByID(ctx context.Context, id string) (domain.EmergencyReport, error)
	ListByAgreementNumber(ctx context.Context, agreementNumber string) ([]domain.EmergencyReport, error)
	Create(ctx context.Context, in domain.NewEmergencyReport) (domain.EmergencyReport, error)
	Update(ctx context.Context, id string, patch domain.EmergencyPatch) (domain.EmergencyReport, error)
}

type HistoryStore interface {
	ListMessages(ctx context.Context, emergencyID string) ([]domain.MessageRecord, error)
	ListEmails(ctx context.Context, emergencyID string) ([]domain.EmailRecord, error)
}

type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (domain.Role, error)
}

type TeamAlerter interface {
	AlertTeam(ctx context.Context, kind notify.AlertKind, report domain.EmergencyReport) error
}

type ListQuery struct {
	Status     string
	AssignedTo string
	Limit      *int
	Offset     *int
}

type CreateInput struct {
	ReservationID string
	ReportedByID  string
	EmergencyType string
	Description   string
	Photo1URL     *string
	Photo2URL     *string
}

type UpdateInput struct {
	EmergencyType        *string
	Description          *string
	GuidanceInstructions *string
	Status               *string
}

// AssignResult carries the committed report; AlertErr is set when the team alert failed.
type AssignResult struct {
	Report   domain.EmergencyReport
	AlertErr error
}

// EmergencyService owns the report lifecycle. Every mutation is one store update.
type EmergencyService struct {
	store   EmergencyStore
	history HistoryStore
	roles   RoleLookup
	alerts  TeamAlerter
	events  EventPublisher
	now     func() time.Time
}

func NewEmergencyService(store EmergencyStore, history HistoryStore, roles RoleLookup, alerts TeamAlerter, events EventPublisher) *EmergencyService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &EmergencyService{store: store, history: history, roles: roles, alerts: alerts, events: events, now: time.Now}
}

func (s *EmergencyService) List(ctx context.Context, q ListQuery) (domain.Page, error) {
	filter, err := q.filter()
	if err != nil {
		return domain.Page{}, err
	}

	var (
		items []domain.EmergencyReport
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Data: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (q ListQuery) filter() (domain.ListFilter, error) {
	verr := &domain.ValidationError{}
	filter := domain.ListFilter{Limit: DefaultPageLimit}
	if q.Status != "" {
		status := domain.EmergencyStatus(q.Status)
		if !status.Valid() {
			verr.Add("status", "must be one of REPORTED, ASSIGNED, IN_PROGRESS, RESOLVED, CLOSED")
		}
		filter.Status = &status
	}
	if q.AssignedTo != "" {
		if !isUUID(q.AssignedTo) {
			verr.Add("assignedTo", "must be a valid UUID")
		}
		assignee := q.AssignedTo
		filter.AssignedTo = &assignee
	}
	if q.Limit != nil {
		if *q.Limit < 1 || *q.Limit > MaxPageLimit {
			verr.Add("limit", "must be between 1 and 100")
		}
		filter.Limit = *q.Limit
	}
	if q.Offset != nil {
		if *q.Offset < 0 {
			verr.Add("offset", "must be zero or greater")
		}
		filter.Offset = *q.Offset
	}
	if err := verr.OrNil(); err != nil {
		return domain.ListFilter{}, err
	}
	return filter, nil
}

// GetByID returns the report with its SMS and email history, newest first.
func (s *EmergencyService) GetByID(ctx context.Context, id string) (domain.EmergencyDetail, error) {
	if !isUUID(id) {
		return domain.EmergencyDetail{}, domain.NewValidationError("id", "must be a valid UUID")
	}
	report, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.EmergencyDetail{}, err
	}

	detail := domain.EmergencyDetail{EmergencyReport: report}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail.Messages, err = s.history.ListMessages(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Emails, err = s.history.ListEmails(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.EmergencyDetail{}, err
	}
	if detail.Messages == nil {
		detail.Messages = []domain.MessageRecord{}
	}
	if detail.Emails == nil {
		detail.Emails = []domain.EmailRecord{}
	}
	return detail, nil
}

// Lookup returns the report without communication history.
func (s *EmergencyService) Lookup(ctx context.Context, id string) (domain.EmergencyReport, error) {
	if !isUUID(id) {
		return domain.EmergencyReport{}, domain.NewValidationError("id", "must be a valid UUID")
	}
	return s.store.GetByID(ctx, id)
}

// GetByAgreementNumber includes hidden reports.
func (s *EmergencyService) GetByAgreementNumber(ctx context.Context, agreementNumber string) ([]domain.EmergencyReport, error) {
	agreementNumber = strings.TrimSpace(agreementNumber)
	if agreementNumber == "" {
		return nil, domain.NewValidationError("agreementNumber", "is required")
	}
	return s.store.ListByAgreementNumber(ctx, agreementNumber)
}

func (s *EmergencyService) Create(ctx context.Context, in CreateInput) (domain.EmergencyReport, error) {
	verr := &domain.ValidationError{}
	if !isUUID(in.ReservationID) {
		verr.Add("reservationId", "must be a valid UUID")
	}
	if !isUUID(in.ReportedByID) {
		verr.Add("reportedById", "must be a valid UUID")
	}
	if strings.TrimSpace(in.EmergencyType) == "" {
		verr.Add("emergencyType", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description", "is required")
	}
	if in.Photo1URL != nil && !domain.ValidPhotoRef(*in.Photo1URL) {
		verr.Add("photo1Url", "must be an http(s) URL or an uploaded photo key")
	}
	if in.Photo2URL != nil && !domain.ValidPhotoRef(*in.Photo2URL) {
		verr.Add("photo2Url", "must be an http(s) URL or an uploaded photo key")
	}
	if err := verr.OrNil(); err != nil {
		return domain.EmergencyReport{}, err
	}

	report, err := s.store.Create(ctx, domain.NewEmergencyReport{
		ReservationID: in.ReservationID,
		ReportedByID:  in.ReportedByID,
		EmergencyType: strings.TrimSpace(in.EmergencyType),
		Description:   strings.TrimSpace(in.Description),
		Photo1URL:     in.Photo1URL,
		Photo2URL:     in.Photo2URL,
		Status:        domain.StatusReported,
	})
	if err != nil {
		return domain.EmergencyReport{}, err
	}
	cmnlog.Infof("emergency created id=%s reservation_id=%s type=%q", report.ID, report.ReservationID, report.EmergencyType)

	if err := s.alerts.AlertTeam(ctx, notify.AlertCreation, report); err != nil {
		cmnlog.Warnf("creation alert failed id=%s: %v", report.ID, err)
	}
	s.publish(ctx, EventEmergencyCreated, report)
	return report, nil
}

// Update merges descriptive fields and status without touching lifecycle timestamps.
func (s *EmergencyService) Update(ctx context.Context, id string, in UpdateInput) (domain.EmergencyReport, error) {
	verr := &domain.ValidationError{}
	if !isUUID(id) {
		verr.Add("id", "must be a valid UUID")
	}
	patch := domain.EmergencyPatch{GuidanceInstructions: in.GuidanceInstructions}
	if in.EmergencyType != nil {
		if strings.TrimSpace(*in.EmergencyType) == "" {
			verr.Add("emergencyType", "must not be empty")
		}
		patch.EmergencyType = in.EmergencyType
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			verr.Add("description", "must not be empty")
		}
		patch.Description = in.Description
	}
	if in.Status != nil {
		status := domain.EmergencyStatus(*in.Status)
		if !status.Valid() {
			verr.Add("status", "must be one of REPORTED, ASSIGNED, IN_PROGRESS, RESOLVED, CLOSED")
		}
		patch.Status = &status
	}
	if err := verr.OrNil(); err != nil {
		return domain.EmergencyReport{}, err
	}

	report, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return domain.EmergencyReport{}, err
	}
	s.publish(ctx, EventEmergencyUpdated, report)
	return report, nil
}

// Assign sets assignee, assignedAt and ASSIGNED in one update, then alerts the team.
// A failed alert is reported in the result and never undoes the assignment.
func (s *EmergencyService) Assign(ctx context.Context, id, assignedToID string, guidance *string) (AssignResult, error) {
	verr := &domain.ValidationError{}
	if !isUUID(id) {
		verr.Add("id", "must be a valid UUID")
	}
	if !isUUID(assignedToID) {
		verr.Add("assignedToId", "must be a valid UUID")
	}
	if err := verr.OrNil(); err != nil {
		return AssignResult{}, err
	}

	role, err := s.roles.GetUserRole(ctx, assignedToID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AssignResult{}, &domain.ReferenceError{Field: "assignedToId", ID: assignedToID}
		}
		return AssignResult{}, err
	}
	if !role.CanTriage() {
		return AssignResult{}, domain.NewValidationError("assignedToId", "must reference a STAFF or ADMIN user")
	}

	now := s.now().UTC()
	status := domain.StatusAssigned
	report, err := s.store.Update(ctx, id, domain.EmergencyPatch{
		GuidanceInstructions: guidance,
		Status:               &status,
		AssignedToID:         &assignedToID,
		AssignedAt:           &now,
	})
	if err != nil {
		return AssignResult{}, err
	}
	cmnlog.Infof("emergency assigned id=%s assigned_to=%s", report.ID, assignedToID)
	s.publish(ctx, EventEmergencyAssigned, report)

	result := AssignResult{Report: report}
	if err := s.alerts.AlertTeam(ctx, notify.AlertAssignment, report); err != nil {
		cmnlog.Warnf("assignment alert failed id=%s: %v", report.ID, err)
		result.AlertErr = err
	}
	return result, nil
}

// UpdateStatus allows any transition. Entering RESOLVED stamps resolvedAt; leaving it keeps the stamp.
func (s *EmergencyService) UpdateStatus(ctx context.Context, id, rawStatus string) (domain.EmergencyReport, error) {
	verr := &domain.ValidationError{}
	if !isUUID(id) {
		verr.Add("id", "must be a valid UUID")
	}
	status := domain.EmergencyStatus(rawStatus)
	if !status.Valid() {
		verr.Add("status", "must be one of REPORTED, ASSIGNED, IN_PROGRESS, RESOLVED, CLOSED")
	}
	if err := verr.OrNil(); err != nil {
		return domain.EmergencyReport{}, err
	}

	patch := domain.EmergencyPatch{Status: &status}
	if status == domain.StatusResolved {
		now := s.now().UTC()
		patch.ResolvedAt = &now
	}
	report, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return domain.EmergencyReport{}, err
	}
	cmnlog.Infof("emergency status id=%s status=%s", report.ID, report.Status)
	s.publish(ctx, EventEmergencyStatusChanged, report)
	return report, nil
}

func (s *EmergencyService) UpdateVisibility(ctx context.Context, id string, hidden bool) (domain.EmergencyReport, error) {
	if !isUUID(id) {
		return domain.EmergencyReport{}, domain.NewValidationError("id", "must be a valid UUID")
	}
	report, err := s.store.Update(ctx, id, domain.EmergencyPatch{IsHidden: &hidden})
	if err != nil {
		return domain.EmergencyReport{}, err
	}
	s.publish(ctx, EventEmergencyVisibilityChanged, report)
	return report, nil
}

func (s *EmergencyService) publish(ctx context.Context, event string, report domain.EmergencyReport) {
	err := s.events.Publish(ctx, event, LifecycleEvent{
		Event:        event,
		EmergencyID:  report.ID,
		Status:       report.Status,
		AssignedToID: report.AssignedToID,
		IsHidden:     report.IsHidden,
		OccurredAt:   s.now().UTC(),
	})
	if err != nil {
		cmnlog.Warnf("publish %s id=%s: %v", event, report.ID, err)
	}
}

func isUUID(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}
