package notify

import (
	"fmt"
	"net/url"
	"strings"

	"triage_server/server/triage/domain"
)

type AlertKind string

const (
	AlertAssignment AlertKind = "assignment"
	AlertCreation   AlertKind = "creation"
)

const noGuidance = "No additional guidance provided"

// Alert is a transport-neutral team-chat notification about one report.
type Alert struct {
	Kind        AlertKind
	EmergencyID string
	Header      string
	Body        string
	LinkURL     string
	LinkLabel   string
	// Style is the button emphasis: "primary" for assignments, "danger" for new reports.
	Style string
}

func EmergencyURL(frontendURL, emergencyID string) string {
	base := strings.TrimRight(frontendURL, "/")
	return base + "/_internal-emergency?emergency=" + url.QueryEscape(emergencyID)
}

func BuildAlert(kind AlertKind, report domain.EmergencyReport, frontendURL string) Alert {
	link := EmergencyURL(frontendURL, report.ID)
	agreement, address := "", ""
	if report.Reservation != nil {
		agreement = report.Reservation.AgreementNumber
		address = report.Reservation.Listing.Address
	}
	reporter := ""
	if report.ReportedBy != nil {
		reporter = report.ReportedBy.FullName
	}

	alert := Alert{Kind: kind, EmergencyID: report.ID, LinkURL: link, LinkLabel: "View Emergency"}
	var b strings.Builder
	switch kind {
	case AlertAssignment:
		assignee := ""
		if report.AssignedTo != nil {
			assignee = report.AssignedTo.FullName
		}
		guidance := noGuidance
		if report.GuidanceInstructions != nil && strings.TrimSpace(*report.GuidanceInstructions) != "" {
			guidance = *report.GuidanceInstructions
		}
		alert.Header = "🚨 Emergency Assigned to " + assignee
		alert.Style = "primary"
		fmt.Fprintf(&b, "*Emergency Assigned to %s*\n\n", assignee)
		fmt.Fprintf(&b, "Please go to <%s|this page> and handle the below emergency.\n\n", link)
		fmt.Fprintf(&b, "*Agreement #:* %s\n", agreement)
		fmt.Fprintf(&b, "*Reported By:* %s\n", reporter)
		fmt.Fprintf(&b, "*Date Reported:* %s\n", report.CreatedAt.Format("01/02/2006"))
		fmt.Fprintf(&b, "*Emergency Type:* %s\n", report.EmergencyType)
		fmt.Fprintf(&b, "*Listing Address:* %s\n\n", address)
		fmt.Fprintf(&b, "*Guidance / Instructions:*\n%s", guidance)
	default:
		alert.Header = "🚨 New Emergency Reported"
		alert.Style = "danger"
		b.WriteString("*New Emergency Reported*\n\n")
		fmt.Fprintf(&b, "*Agreement #:* %s\n", agreement)
		fmt.Fprintf(&b, "*Reported By:* %s\n", reporter)
		fmt.Fprintf(&b, "*Emergency Type:* %s\n", report.EmergencyType)
		fmt.Fprintf(&b, "*Listing Address:* %s\n\n", address)
		fmt.Fprintf(&b, "*Description:*\n%s", report.Description)
	}
	alert.Body = b.String()
	return alert
}
