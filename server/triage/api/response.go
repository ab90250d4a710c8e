package api

import (
	"triage_server/server/common/transport/httpresp"
	"triage_server/server/triage/domain"
	"triage_server/server/triage/service"
)

type ErrorResponse = httpresp.ErrorResponse
type URLResponse = httpresp.URLResponse
type TokenResponse = httpresp.TokenResponse

type HealthResponse struct {
	Status string `json:"status"`
}

// AssignResponse is the report plus a warning when the team alert could not be delivered.
type AssignResponse struct {
	domain.EmergencyReport
	AlertWarning string `json:"alertWarning,omitempty"`
}

type DeliveryFailureResponse struct {
	Error  string `json:"error"`
	Record any    `json:"record"`
}

func NewErrorResponse(message string) ErrorResponse {
	return httpresp.NewErrorResponse(message)
}

func NewFieldErrorResponse(message string, fields map[string]string) ErrorResponse {
	return httpresp.NewFieldErrorResponse(message, fields)
}

func NewURLResponse(url string) URLResponse {
	return httpresp.NewURLResponse(url)
}

func NewTokenResponse(accessToken, userID, email, role string) TokenResponse {
	return httpresp.NewTokenResponse(accessToken, userID, email, role)
}

func NewHealthResponse(status string) HealthResponse {
	return HealthResponse{Status: status}
}

func NewAssignResponse(result service.AssignResult) AssignResponse {
	resp := AssignResponse{EmergencyReport: result.Report}
	if result.AlertErr != nil {
		resp.AlertWarning = "team alert failed: " + result.AlertErr.Error()
	}
	return resp
}

func NewDeliveryFailureResponse(message string, record any) DeliveryFailureResponse {
	return DeliveryFailureResponse{Error: message, Record: record}
}
