package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"triage_server/server/triage/domain"
	"triage_server/server/triage/notify"
)

// clock hands out strictly increasing instants.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type memStore struct {
	mu       sync.Mutex
	clock    *clock
	seq      int
	reports  map[string]domain.EmergencyReport
	users    map[string]domain.User
	messages []domain.MessageRecord
	emails   []domain.EmailRecord

	reservations map[string]string // id -> agreement number
	createCalls  int
	listCalls    int
	failAudit    error
}

func newMemStore(c *clock) *memStore {
	return &memStore{
		clock:        c,
		reports:      map[string]domain.EmergencyReport{},
		users:        map[string]domain.User{},
		reservations: map[string]string{},
	}
}

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
}

func (m *memStore) addUser(role domain.Role, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.users[id] = domain.User{ID: id, FullName: name, Email: id + "@example.com", Role: role}
	return id
}

func (m *memStore) addReservation(agreement string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.reservations[id] = agreement
	return id
}

func (m *memStore) hydrate(r domain.EmergencyReport) domain.EmergencyReport {
	r.Reservation = &domain.Reservation{ID: r.ReservationID, AgreementNumber: m.reservations[r.ReservationID]}
	if u, ok := m.users[r.ReportedByID]; ok {
		r.ReportedBy = &u
	}
	r.AssignedTo = nil
	if r.AssignedToID != nil {
		if u, ok := m.users[*r.AssignedToID]; ok {
			r.AssignedTo = &u
		}
	}
	return r
}

func (m *memStore) sorted(keep func(domain.EmergencyReport) bool) []domain.EmergencyReport {
	items := make([]domain.EmergencyReport, 0)
	for _, r := range m.reports {
		if keep(r) {
			items = append(items, m.hydrate(r))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items
}

func matches(filter domain.ListFilter) func(domain.EmergencyReport) bool {
	return func(r domain.EmergencyReport) bool {
		if r.IsHidden {
			return false
		}
		if filter.Status != nil && r.Status != *filter.Status {
			return false
		}
		if filter.AssignedTo != nil && (r.AssignedToID == nil || *r.AssignedToID != *filter.AssignedTo) {
			return false
		}
		return true
	}
}

func (m *memStore) List(_ context.Context, filter domain.ListFilter) ([]domain.EmergencyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	items := m.sorted(matches(filter))
	if filter.Offset >= len(items) {
		return []domain.EmergencyReport{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[filter.Offset:end], nil
}

func (m *memStore) Count(_ context.Context, filter domain.ListFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sorted(matches(filter)))), nil
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.EmergencyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return domain.EmergencyReport{}, &domain.NotFoundError{Entity: "emergency report", ID: id}
	}
	return m.hydrate(r), nil
}

func (m *memStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reports[id]
	return ok, nil
}

func (m *memStore) ListByAgreementNumber(_ context.Context, agreement string) ([]domain.EmergencyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(r domain.EmergencyReport) bool { return m.reservations[r.ReservationID] == agreement }), nil
}

func (m *memStore) Create(_ context.Context, in domain.NewEmergencyReport) (domain.EmergencyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if _, ok := m.reservations[in.ReservationID]; !ok {
		return domain.EmergencyReport{}, &domain.ReferenceError{Field: "reservationId", ID: in.ReservationID}
	}
	if _, ok := m.users[in.ReportedByID]; !ok {
		return domain.EmergencyReport{}, &domain.ReferenceError{Field: "reportedById", ID: in.ReportedByID}
	}
	now := m.clock.Now()
	r := domain.EmergencyReport{
		ID:            m.nextID(),
		ReservationID: in.ReservationID,
		ReportedByID:  in.ReportedByID,
		EmergencyType: in.EmergencyType,
		Description:   in.Description,
		Photo1URL:     in.Photo1URL,
		Photo2URL:     in.Photo2URL,
		Status:        in.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.reports[r.ID] = r
	return m.hydrate(r), nil
}

func (m *memStore) Update(_ context.Context, id string, p domain.EmergencyPatch) (domain.EmergencyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return domain.EmergencyReport{}, &domain.NotFoundError{Entity: "emergency report", ID: id}
	}
	if p.EmergencyType != nil {
		r.EmergencyType = *p.EmergencyType
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.GuidanceInstructions != nil {
		r.GuidanceInstructions = p.GuidanceInstructions
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AssignedToID != nil {
		r.AssignedToID = p.AssignedToID
	}
	if p.AssignedAt != nil {
		r.AssignedAt = p.AssignedAt
	}
	if p.ResolvedAt != nil {
		r.ResolvedAt = p.ResolvedAt
	}
	if p.IsHidden != nil {
		r.IsHidden = *p.IsHidden
	}
	r.UpdatedAt = m.clock.Now()
	m.reports[id] = r
	return m.hydrate(r), nil
}

func (m *memStore) GetUserRole(_ context.Context, id string) (domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return "", &domain.NotFoundError{Entity: "user", ID: id}
	}
	return u.Role, nil
}

func (m *memStore) CreateMessage(_ context.Context, rec domain.MessageRecord) (domain.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit != nil {
		return domain.MessageRecord{}, m.failAudit
	}
	rec.ID = m.nextID()
	rec.CreatedAt = m.clock.Now()
	m.messages = append(m.messages, rec)
	return rec, nil
}

func (m *memStore) CreateEmail(_ context.Context, rec domain.EmailRecord) (domain.EmailRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit != nil {
		return domain.EmailRecord{}, m.failAudit
	}
	rec.ID = m.nextID()
	rec.CreatedAt = m.clock.Now()
	m.emails = append(m.emails, rec)
	return rec, nil
}

func (m *memStore) ListMessages(_ context.Context, emergencyID string) ([]domain.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MessageRecord, 0)
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].EmergencyReportID == emergencyID {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

func (m *memStore) ListEmails(_ context.Context, emergencyID string) ([]domain.EmailRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EmailRecord, 0)
	for i := len(m.emails) - 1; i >= 0; i-- {
		if m.emails[i].EmergencyReportID == emergencyID {
			out = append(out, m.emails[i])
		}
	}
	return out, nil
}

type fakeAlerter struct {
	mu    sync.Mutex
	err   error
	kinds []notify.AlertKind
}

func (f *fakeAlerter) AlertTeam(_ context.Context, kind notify.AlertKind, _ domain.EmergencyReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return f.err
}

type fakeSender struct {
	smsErr   error
	mailErr  error
	smsCalls int
	lastMail notify.EmailMessage
}

func (f *fakeSender) SenderPhone() string { return "+15550001111" }

func (f *fakeSender) SendMessage(ctx context.Context, _, _ string) notify.DeliveryOutcome {
	f.smsCalls++
	if ctx.Err() != nil {
		return notify.DeliveryOutcome{ErrorDetail: ctx.Err().Error(), Err: ctx.Err()}
	}
	if f.smsErr != nil {
		return notify.DeliveryOutcome{ErrorDetail: f.smsErr.Error(), Err: f.smsErr}
	}
	return notify.DeliveryOutcome{Success: true, TransportReference: "SM0001"}
}

func (f *fakeSender) SendEmailMessage(_ context.Context, msg notify.EmailMessage) notify.DeliveryOutcome {
	f.lastMail = msg
	if f.mailErr != nil {
		return notify.DeliveryOutcome{ErrorDetail: f.mailErr.Error(), Err: f.mailErr}
	}
	return notify.DeliveryOutcome{Success: true, TransportReference: "<id@example.com>"}
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return p.err
}

var errBroker = errors.New("broker unavailable")
