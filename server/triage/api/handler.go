package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	commonauth "triage_server/server/common/auth"
	"triage_server/server/common/middleware"
	"triage_server/server/triage/domain"
	"triage_server/server/triage/service"
)

type Emergencies interface {
	List(ctx context.Context, q service.ListQuery) (domain.Page, error)
	GetByID(ctx context.Context, id string) (domain.EmergencyDetail, error)
	Lookup(ctx context.Context, id string) (domain.EmergencyReport, error)
	GetByAgreementNumber(ctx context.Context, agreementNumber string) ([]domain.EmergencyReport, error)
	Create(ctx context.Context, in service.CreateInput) (domain.EmergencyReport, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (domain.EmergencyReport, error)
	Assign(ctx context.Context, id, assignedToID string, guidance *string) (service.AssignResult, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.EmergencyReport, error)
	UpdateVisibility(ctx context.Context, id string, hidden bool) (domain.EmergencyReport, error)
}

type Communications interface {
	SendSMS(ctx context.Context, emergencyID, recipientPhone, body string) (domain.MessageRecord, error)
	SendEmail(ctx context.Context, in service.SendEmailInput) (domain.EmailRecord, error)
	MessageHistory(ctx context.Context, emergencyID string) ([]domain.MessageRecord, error)
	EmailHistory(ctx context.Context, emergencyID string) ([]domain.EmailRecord, error)
}

type Catalog interface {
	ListPresetMessages(ctx context.Context) ([]domain.PresetMessage, error)
	ListPresetEmails(ctx context.Context) ([]domain.PresetEmail, error)
	ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error)
}

type Accounts interface {
	Login(ctx context.Context, email, password string) (domain.User, string, error)
}

type Photos interface {
	PresignUpload(ctx context.Context, fileName string) (domain.PhotoUpload, error)
	PresignDownload(ctx context.Context, objectKey string) (string, error)
	RegisterPhoto(ctx context.Context, objectKey, contentType string) (domain.PhotoObject, error)
}

// Deps groups what the handler serves. Photos and Ready are optional.
type Deps struct {
	Emergencies    Emergencies
	Communications Communications
	Catalog        Catalog
	Accounts       Accounts
	Photos         Photos
	Auth           *commonauth.Service
	Ready          func(ctx context.Context) error
}

type Handler struct {
	emergencies Emergencies
	comms       Communications
	catalog     Catalog
	accounts    Accounts
	photos      Photos
	auth        *commonauth.Service
	ready       func(ctx context.Context) error
}

func NewHandler(deps Deps) *Handler {
	registerValidators()
	return &Handler{
		emergencies: deps.Emergencies,
		comms:       deps.Communications,
		catalog:     deps.Catalog,
		accounts:    deps.Accounts,
		photos:      deps.Photos,
		auth:        deps.Auth,
		ready:       deps.Ready,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, NewHealthResponse("ok")) })
	r.GET("/health/live", func(c *gin.Context) { c.JSON(http.StatusOK, NewHealthResponse("ok")) })
	r.GET("/health/ready", h.readiness)

	r.POST("/api/auth/login", h.login)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(h.auth), middleware.RequireRoles(string(domain.RoleStaff), string(domain.RoleAdmin)))
	{
		api.GET("/emergencies", h.listEmergencies)
		api.GET("/emergencies/agreement/:agreementNumber", h.emergenciesByAgreement)
		api.GET("/emergencies/:id", h.getEmergency)
		api.POST("/emergencies", h.createEmergency)
		api.PUT("/emergencies/:id", h.updateEmergency)
		api.PUT("/emergencies/:id/assign", h.assignEmergency)
		api.PUT("/emergencies/:id/status", h.updateEmergencyStatus)
		api.PUT("/emergencies/:id/visibility", h.updateEmergencyVisibility)

		api.POST("/communication/:emergencyId/sms", h.sendSMS)
		api.POST("/communication/:emergencyId/email", h.sendEmail)
		api.GET("/communication/:emergencyId/messages", h.messageHistory)
		api.GET("/communication/:emergencyId/emails", h.emailHistory)

		api.GET("/team", h.listTeam)
		api.GET("/presets/messages", h.listPresetMessages)
		api.GET("/presets/emails", h.listPresetEmails)

		if h.photos != nil {
			api.POST("/photos/presign-upload", h.presignUpload)
			api.POST("/photos/presign-download", h.presignDownload)
			api.POST("/photos/register", h.registerPhoto)
		}
	}
}

func (h *Handler) readiness(c *gin.Context) {
	if h.ready == nil {
		c.JSON(http.StatusOK, NewHealthResponse("ok"))
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.ready(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, NewHealthResponse("unavailable"))
		return
	}
	c.JSON(http.StatusOK, NewHealthResponse("ok"))
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTokenResponse(token, user.ID, user.Email, string(user.Role)))
}

func actorID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}
