package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"triage_server/server/triage/domain"
	"triage_server/server/triage/service"
)

func (h *Handler) listTeam(c *gin.Context) {
	members, err := h.catalog.ListTeamMembers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *Handler) listPresetMessages(c *gin.Context) {
	items, err := h.catalog.ListPresetMessages(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	report, ok, err := h.renderTarget(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if ok {
		items = service.RenderPresetMessages(items, report)
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) listPresetEmails(c *gin.Context) {
	items, err := h.catalog.ListPresetEmails(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	report, ok, err := h.renderTarget(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if ok {
		items = service.RenderPresetEmails(items, report)
	}
	c.JSON(http.StatusOK, items)
}

// renderTarget loads the report named by ?emergencyId=, if any.
func (h *Handler) renderTarget(c *gin.Context) (domain.EmergencyReport, bool, error) {
	id := strings.TrimSpace(c.Query("emergencyId"))
	if id == "" {
		return domain.EmergencyReport{}, false, nil
	}
	report, err := h.emergencies.Lookup(c.Request.Context(), id)
	if err != nil {
		return domain.EmergencyReport{}, false, err
	}
	return report, true, nil
}

func (h *Handler) presignUpload(c *gin.Context) {
	var req struct {
		FileName string `json:"fileName" binding:"max=255"`
	}
	if !bindJSON(c, &req) {
		return
	}
	upload, err := h.photos.PresignUpload(c.Request.Context(), req.FileName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

func (h *Handler) presignDownload(c *gin.Context) {
	var req struct {
		ObjectKey string `json:"objectKey" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.photos.PresignDownload(c.Request.Context(), req.ObjectKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewURLResponse(u))
}

func (h *Handler) registerPhoto(c *gin.Context) {
	var req struct {
		ObjectKey   string `json:"objectKey" binding:"required"`
		ContentType string `json:"contentType"`
	}
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.photos.RegisterPhoto(c.Request.Context(), req.ObjectKey, req.ContentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}
