package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonauth "triage_server/server/common/auth"
	"triage_server/server/triage/domain"
	"triage_server/server/triage/service"
)

const (
	reportID  = "00000000-0000-4000-8000-000000000001"
	staffID   = "00000000-0000-4000-8000-000000000002"
	reservID  = "00000000-0000-4000-8000-000000000003"
	unknownID = "00000000-0000-4000-8000-000000000099"
)

type stubEmergencies struct {
	Emergencies
	report    domain.EmergencyReport
	err       error
	alertErr  error
	lastQuery service.ListQuery
	lastInput service.CreateInput
}

func (s *stubEmergencies) List(_ context.Context, q service.ListQuery) (domain.Page, error) {
	s.lastQuery = q
	return domain.Page{Data: []domain.EmergencyReport{s.report}, Total: 1, Limit: 50}, s.err
}

func (s *stubEmergencies) GetByID(ctx context.Context, id string) (domain.EmergencyDetail, error) {
	report, err := s.Lookup(ctx, id)
	if err != nil {
		return domain.EmergencyDetail{}, err
	}
	return domain.EmergencyDetail{EmergencyReport: report, Messages: []domain.MessageRecord{}, Emails: []domain.EmailRecord{}}, nil
}

func (s *stubEmergencies) Lookup(_ context.Context, id string) (domain.EmergencyReport, error) {
	if id != s.report.ID {
		return domain.EmergencyReport{}, &domain.NotFoundError{Entity: "emergency report", ID: id}
	}
	return s.report, s.err
}

func (s *stubEmergencies) Create(_ context.Context, in service.CreateInput) (domain.EmergencyReport, error) {
	s.lastInput = in
	return s.report, s.err
}

func (s *stubEmergencies) Assign(_ context.Context, _, assignedToID string, _ *string) (service.AssignResult, error) {
	if s.err != nil {
		return service.AssignResult{}, s.err
	}
	r := s.report
	r.Status = domain.StatusAssigned
	r.AssignedToID = &assignedToID
	return service.AssignResult{Report: r, AlertErr: s.alertErr}, nil
}

type stubComms struct {
	Communications
	rec domain.MessageRecord
	err error
}

func (s *stubComms) SendSMS(_ context.Context, emergencyID, phone, body string) (domain.MessageRecord, error) {
	if s.err != nil && !errors.As(s.err, new(*domain.TransportError)) {
		return domain.MessageRecord{}, s.err
	}
	rec := s.rec
	rec.EmergencyReportID = emergencyID
	rec.RecipientPhone = phone
	rec.MessageBody = body
	return rec, s.err
}

type stubCatalog struct {
	Catalog
}

func (stubCatalog) ListPresetMessages(context.Context) ([]domain.PresetMessage, error) {
	return []domain.PresetMessage{{ID: "p1", Label: "Ack", Content: "{{EMERGENCY_TYPE}} for {{AGREEMENT_NUMBER}} received"}}, nil
}

type stubAccounts struct{}

func (stubAccounts) Login(_ context.Context, email, password string) (domain.User, string, error) {
	switch {
	case email == "guest@example.com":
		return domain.User{}, "", domain.ErrForbiddenRole
	case password != "correct-horse":
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	return domain.User{ID: staffID, Email: email, Role: domain.RoleStaff}, "signed-token", nil
}

type testServer struct {
	router      *gin.Engine
	auth        *commonauth.Service
	emergencies *stubEmergencies
	comms       *stubComms
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		auth: commonauth.NewService("test-secret", 60),
		emergencies: &stubEmergencies{report: domain.EmergencyReport{
			ID:            reportID,
			ReservationID: reservID,
			EmergencyType: "Water Leak",
			Status:        domain.StatusReported,
			Reservation:   &domain.Reservation{AgreementNumber: "AGR-1"},
		}},
		comms: &stubComms{},
	}
	h := NewHandler(Deps{
		Emergencies:    ts.emergencies,
		Communications: ts.comms,
		Catalog:        stubCatalog{},
		Accounts:       stubAccounts{},
		Auth:           ts.auth,
		Ready:          func(context.Context) error { return nil },
	})
	ts.router = gin.New()
	h.RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := ts.auth.GenerateToken(staffID, "ops@example.com", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	}
}

func TestAuthGuards(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/emergencies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication required", decode(t, w)["error"])

	w = ts.do(t, http.MethodGet, "/api/emergencies", "HOST", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient permissions", decode(t, w)["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/emergencies", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid or expired token", decode(t, rec)["error"])
}

func TestListEmergenciesParsesQuery(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/emergencies?status=ASSIGNED&limit=10&offset=20", "ADMIN", nil)

	require.Equal(t, http.StatusOK, w.Code)
	q := ts.emergencies.lastQuery
	assert.Equal(t, "ASSIGNED", q.Status)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
	require.NotNil(t, q.Offset)
	assert.Equal(t, 20, *q.Offset)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["data"], 1)
}

func TestListEmergenciesRejectsNonNumericLimit(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/emergencies?limit=ten", "STAFF", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, map[string]any{"limit": "must be an integer"}, body["fields"])
}

func TestGetEmergencyIncludesEmptyHistory(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/emergencies/"+reportID, "STAFF", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, reportID, body["id"])
	assert.Equal(t, []any{}, body["messages"])
	assert.Equal(t, []any{}, body["emails"])
}

func TestGetEmergencyNotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/emergencies/"+unknownID, "STAFF", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateEmergencyBindingErrorsUseJSONNames(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/emergencies", "STAFF", map[string]any{
		"reservationId": "nope",
		"photo1Url":     "../etc/passwd",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Equal(t, "must be a valid UUID", fields["reservationId"])
	assert.Equal(t, "is required", fields["emergencyType"])
	assert.Equal(t, "is required", fields["description"])
	assert.Equal(t, "must be an http(s) URL or a photo object key", fields["photo1Url"])
}

func TestCreateEmergencyDefaultsReporterToActor(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/emergencies", "STAFF", map[string]any{
		"reservationId": reservID,
		"emergencyType": "Water Leak",
		"description":   "Pipe burst",
		"photo1Url":     "emergencies/photos/abc.jpg",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, staffID, ts.emergencies.lastInput.ReportedByID)
	assert.Equal(t, "emergencies/photos/abc.jpg", *ts.emergencies.lastInput.Photo1URL)
}

func TestCreateEmergencyReferenceError(t *testing.T) {
	ts := newTestServer(t)
	ts.emergencies.err = &domain.ReferenceError{Field: "reservationId", ID: unknownID}

	w := ts.do(t, http.MethodPost, "/api/emergencies", "STAFF", map[string]any{
		"reservationId": unknownID,
		"emergencyType": "Fire",
		"description":   "Smoke",
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "reservationId")
}

func TestAssignSurfacesAlertWarning(t *testing.T) {
	ts := newTestServer(t)
	ts.emergencies.alertErr = errors.New("channel_not_found")

	w := ts.do(t, http.MethodPut, "/api/emergencies/"+reportID+"/assign", "STAFF", map[string]any{
		"assignedToId":         staffID,
		"guidanceInstructions": "Shut off the valve",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ASSIGNED", body["status"])
	assert.Equal(t, staffID, body["assignedToId"])
	assert.Equal(t, "team alert failed: channel_not_found", body["alertWarning"])

	ts.emergencies.alertErr = nil
	w = ts.do(t, http.MethodPut, "/api/emergencies/"+reportID+"/assign", "STAFF", map[string]any{"assignedToId": staffID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "alertWarning")
}

func TestSendSMSFailureReturnsAuditedRecord(t *testing.T) {
	ts := newTestServer(t)
	detail := "carrier rejected"
	ts.comms.rec = domain.MessageRecord{ID: "m1", Status: domain.DeliveryFailed, ErrorMessage: &detail}
	ts.comms.err = &domain.TransportError{Channel: "sms", Err: errors.New(detail)}

	w := ts.do(t, http.MethodPost, "/api/communication/"+reportID+"/sms", "STAFF", map[string]any{
		"recipientPhone": "+15551234567",
		"messageBody":    "On our way",
	})

	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, "sms delivery failed: carrier rejected", body["error"])
	record := body["record"].(map[string]any)
	assert.Equal(t, "m1", record["id"])
	assert.Equal(t, "FAILED", record["status"])
	assert.Equal(t, "carrier rejected", record["errorMessage"])
}

func TestSendSMSValidatesPhone(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/communication/"+reportID+"/sms", "STAFF", map[string]any{
		"recipientPhone": "555-1234",
		"messageBody":    "hi",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"recipientPhone": "must be an E.164 phone number"}, decode(t, w)["fields"])
}

func TestSendSMSUnknownReport(t *testing.T) {
	ts := newTestServer(t)
	ts.comms.err = &domain.NotFoundError{Entity: "emergency report", ID: unknownID}

	w := ts.do(t, http.MethodPost, "/api/communication/"+unknownID+"/sms", "STAFF", map[string]any{
		"recipientPhone": "+15551234567",
		"messageBody":    "hi",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPresetMessagesRenderForEmergency(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/presets/messages?emergencyId="+reportID, "STAFF", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []domain.PresetMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Equal(t, "Water Leak for AGR-1 received", items[0].Content)

	w = ts.do(t, http.MethodGet, "/api/presets/messages", "STAFF", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Equal(t, "{{EMERGENCY_TYPE}} for {{AGREEMENT_NUMBER}} received", items[0].Content)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ops@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "signed-token", body["accessToken"])
	assert.Equal(t, "STAFF", body["role"])

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ops@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "guest@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPhotoRoutesAbsentWhenDisabled(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/photos/presign-upload", "STAFF", map[string]any{"fileName": "a.jpg"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}
