package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleGuest Role = "GUEST"
	RoleHost  Role = "HOST"
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleGuest, RoleHost, RoleStaff, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// CanTriage reports whether the role may work the emergency queue.
func (r Role) CanTriage() bool {
	return r == RoleStaff || r == RoleAdmin
}

type EmergencyStatus string

const (
	StatusReported   EmergencyStatus = "REPORTED"
	StatusAssigned   EmergencyStatus = "ASSIGNED"
	StatusInProgress EmergencyStatus = "IN_PROGRESS"
	StatusResolved   EmergencyStatus = "RESOLVED"
	StatusClosed     EmergencyStatus = "CLOSED"
)

var EmergencyStatuses = []EmergencyStatus{StatusReported, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed}

func (s EmergencyStatus) Valid() bool {
	for _, status := range EmergencyStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

type MessageDirection string

const (
	DirectionOutbound MessageDirection = "OUTBOUND"
	DirectionInbound  MessageDirection = "INBOUND"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PhoneNumber  *string   `json:"phoneNumber,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Listing struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type Reservation struct {
	ID              string    `json:"id"`
	AgreementNumber string    `json:"agreementNumber"`
	CheckInDate     time.Time `json:"checkInDate"`
	CheckOutDate    time.Time `json:"checkOutDate"`
	Status          string    `json:"status"`
	Listing         Listing   `json:"listing"`
	Guest           User      `json:"guest"`
}

type EmergencyReport struct {
	ID                   string          `json:"id"`
	ReservationID        string          `json:"reservationId"`
	Reservation          *Reservation    `json:"reservation,omitempty"`
	ReportedByID         string          `json:"reportedById"`
	ReportedBy           *User           `json:"reportedBy,omitempty"`
	EmergencyType        string          `json:"emergencyType"`
	Description          string          `json:"description"`
	Photo1URL            *string         `json:"photo1Url,omitempty"`
	Photo2URL            *string         `json:"photo2Url,omitempty"`
	Status               EmergencyStatus `json:"status"`
	GuidanceInstructions *string         `json:"guidanceInstructions,omitempty"`
	AssignedToID         *string         `json:"assignedToId,omitempty"`
	AssignedTo           *User           `json:"assignedTo,omitempty"`
	AssignedAt           *time.Time      `json:"assignedAt,omitempty"`
	ResolvedAt           *time.Time      `json:"resolvedAt,omitempty"`
	IsHidden             bool            `json:"isHidden"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// EmergencyDetail is a report with its full SMS and email history, newest first.
// Both history slices are always non-nil.
type EmergencyDetail struct {
	EmergencyReport
	Messages []MessageRecord `json:"messages"`
	Emails   []EmailRecord   `json:"emails"`
}

type NewEmergencyReport struct {
	ReservationID string
	ReportedByID  string
	EmergencyType string
	Description   string
	Photo1URL     *string
	Photo2URL     *string
	Status        EmergencyStatus
}

// EmergencyPatch lists the columns a single update statement may touch; nil means unchanged.
type EmergencyPatch struct {
	EmergencyType        *string
	Description          *string
	GuidanceInstructions *string
	Status               *EmergencyStatus
	AssignedToID         *string
	AssignedAt           *time.Time
	ResolvedAt           *time.Time
	IsHidden             *bool
}

func (p EmergencyPatch) Empty() bool {
	return p.EmergencyType == nil && p.Description == nil && p.GuidanceInstructions == nil &&
		p.Status == nil && p.AssignedToID == nil && p.AssignedAt == nil && p.ResolvedAt == nil && p.IsHidden == nil
}

type ListFilter struct {
	Status     *EmergencyStatus
	AssignedTo *string
	Limit      int
	Offset     int
}

type Page struct {
	Data   []EmergencyReport `json:"data"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type MessageRecord struct {
	ID                 string           `json:"id"`
	EmergencyReportID  string           `json:"emergencyReportId"`
	Direction          MessageDirection `json:"direction"`
	RecipientPhone     string           `json:"recipientPhone"`
	SenderPhone        string           `json:"senderPhone"`
	MessageBody        string           `json:"messageBody"`
	TransportReference *string          `json:"transportReference,omitempty"`
	Status             DeliveryStatus   `json:"status"`
	SentAt             *time.Time       `json:"sentAt,omitempty"`
	ErrorMessage       *string          `json:"errorMessage,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
}

type EmailRecord struct {
	ID                string         `json:"id"`
	EmergencyReportID string         `json:"emergencyReportId"`
	RecipientEmail    string         `json:"recipientEmail"`
	CCEmails          []string       `json:"ccEmails"`
	BCCEmails         []string       `json:"bccEmails"`
	Subject           string         `json:"subject"`
	BodyHTML          string         `json:"bodyHtml"`
	BodyText          string         `json:"bodyText"`
	Status            DeliveryStatus `json:"status"`
	SentAt            *time.Time     `json:"sentAt,omitempty"`
	ErrorMessage      *string        `json:"errorMessage,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

type PresetMessage struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Content  string `json:"content"`
	Category string `json:"category"`
	IsActive bool   `json:"isActive"`
}

type PresetEmail struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"bodyHtml"`
	BodyText string `json:"bodyText"`
	Category string `json:"category"`
	IsActive bool   `json:"isActive"`
}

type TeamMember struct {
	ID          string  `json:"id"`
	FullName    string  `json:"fullName"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Role        Role    `json:"role"`
}
