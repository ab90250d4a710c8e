package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"triage_server/server/triage/domain"
	"triage_server/server/triage/service"
)

type createEmergencyRequest struct {
	ReservationID string  `json:"reservationId" binding:"required,uuid"`
	ReportedByID  string  `json:"reportedById" binding:"omitempty,uuid"`
	EmergencyType string  `json:"emergencyType" binding:"required,max=100"`
	Description   string  `json:"description" binding:"required"`
	Photo1URL     *string `json:"photo1Url" binding:"omitempty,photo_ref"`
	Photo2URL     *string `json:"photo2Url" binding:"omitempty,photo_ref"`
}

type updateEmergencyRequest struct {
	EmergencyType        *string `json:"emergencyType" binding:"omitempty,min=1,max=100"`
	Description          *string `json:"description" binding:"omitempty,min=1"`
	GuidanceInstructions *string `json:"guidanceInstructions"`
	Status               *string `json:"status" binding:"omitempty,oneof=REPORTED ASSIGNED IN_PROGRESS RESOLVED CLOSED"`
}

type assignRequest struct {
	AssignedToID         string  `json:"assignedToId" binding:"required,uuid"`
	GuidanceInstructions *string `json:"guidanceInstructions"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=REPORTED ASSIGNED IN_PROGRESS RESOLVED CLOSED"`
}

type visibilityRequest struct {
	IsHidden *bool `json:"isHidden" binding:"required"`
}

func (h *Handler) listEmergencies(c *gin.Context) {
	q := service.ListQuery{Status: c.Query("status"), AssignedTo: c.Query("assignedTo")}
	verr := &domain.ValidationError{}
	q.Limit = intQuery(c, "limit", verr)
	q.Offset = intQuery(c, "offset", verr)
	if err := verr.OrNil(); err != nil {
		writeError(c, err)
		return
	}
	page, err := h.emergencies.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func intQuery(c *gin.Context, name string, verr *domain.ValidationError) *int {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(name, "must be an integer")
		return nil
	}
	return &v
}

func (h *Handler) getEmergency(c *gin.Context) {
	report, err := h.emergencies.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) emergenciesByAgreement(c *gin.Context) {
	reports, err := h.emergencies.GetByAgreementNumber(c.Request.Context(), c.Param("agreementNumber"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) createEmergency(c *gin.Context) {
	var req createEmergencyRequest
	if !bindJSON(c, &req) {
		return
	}
	// Console users may omit the reporter; the report is then attributed to them.
	if req.ReportedByID == "" {
		req.ReportedByID = actorID(c)
	}
	report, err := h.emergencies.Create(c.Request.Context(), service.CreateInput{
		ReservationID: req.ReservationID,
		ReportedByID:  req.ReportedByID,
		EmergencyType: req.EmergencyType,
		Description:   req.Description,
		Photo1URL:     req.Photo1URL,
		Photo2URL:     req.Photo2URL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *Handler) updateEmergency(c *gin.Context) {
	var req updateEmergencyRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.emergencies.Update(c.Request.Context(), c.Param("id"), service.UpdateInput{
		EmergencyType:        req.EmergencyType,
		Description:          req.Description,
		GuidanceInstructions: req.GuidanceInstructions,
		Status:               req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) assignEmergency(c *gin.Context) {
	var req assignRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.emergencies.Assign(c.Request.Context(), c.Param("id"), req.AssignedToID, req.GuidanceInstructions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewAssignResponse(result))
}

func (h *Handler) updateEmergencyStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.emergencies.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) updateEmergencyVisibility(c *gin.Context) {
	var req visibilityRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.emergencies.UpdateVisibility(c.Request.Context(), c.Param("id"), *req.IsHidden)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
