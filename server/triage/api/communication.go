package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"triage_server/server/triage/domain"
	"triage_server/server/triage/service"
)

type smsRequest struct {
	RecipientPhone string `json:"recipientPhone" binding:"required,e164"`
	MessageBody    string `json:"messageBody" binding:"required,max=1600"`
}

type emailRequest struct {
	RecipientEmail string   `json:"recipientEmail" binding:"required,email"`
	Subject        string   `json:"subject" binding:"required,max=998"`
	BodyHTML       string   `json:"bodyHtml" binding:"required"`
	BodyText       string   `json:"bodyText" binding:"required"`
	CCEmails       []string `json:"ccEmails" binding:"omitempty,dive,email"`
	BCCEmails      []string `json:"bccEmails" binding:"omitempty,dive,email"`
}

func (h *Handler) sendSMS(c *gin.Context) {
	var req smsRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.comms.SendSMS(c.Request.Context(), c.Param("emergencyId"), req.RecipientPhone, req.MessageBody)
	if err != nil {
		writeDeliveryError(c, err, rec, rec.ID != "")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) sendEmail(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.comms.SendEmail(c.Request.Context(), service.SendEmailInput{
		EmergencyID:    c.Param("emergencyId"),
		RecipientEmail: req.RecipientEmail,
		Subject:        req.Subject,
		BodyHTML:       req.BodyHTML,
		BodyText:       req.BodyText,
		CCEmails:       req.CCEmails,
		BCCEmails:      req.BCCEmails,
	})
	if err != nil {
		writeDeliveryError(c, err, rec, rec.ID != "")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// writeDeliveryError answers a failed send with the audited record when one was persisted.
func writeDeliveryError(c *gin.Context, err error, record any, persisted bool) {
	var terr *domain.TransportError
	if errors.As(err, &terr) && persisted {
		c.JSON(http.StatusBadGateway, NewDeliveryFailureResponse(terr.Error(), record))
		return
	}
	writeError(c, err)
}

func (h *Handler) messageHistory(c *gin.Context) {
	items, err := h.comms.MessageHistory(c.Request.Context(), c.Param("emergencyId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) emailHistory(c *gin.Context) {
	items, err := h.comms.EmailHistory(c.Request.Context(), c.Param("emergencyId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
