package domain

import "strings"

// PlaceholderValues maps the {{TOKEN}} placeholders used by preset templates to report data.
func PlaceholderValues(report EmergencyReport) map[string]string {
	values := map[string]string{
		"EMERGENCY_TYPE": report.EmergencyType,
	}
	if report.Reservation != nil {
		values["AGREEMENT_NUMBER"] = report.Reservation.AgreementNumber
		values["GUEST_NAME"] = report.Reservation.Guest.FullName
		values["LISTING_ADDRESS"] = report.Reservation.Listing.Address
	}
	if report.ReportedBy != nil {
		values["REPORTER_NAME"] = report.ReportedBy.FullName
	}
	if report.AssignedTo != nil {
		values["ASSIGNEE_NAME"] = report.AssignedTo.FullName
	}
	return values
}

// RenderPlaceholders substitutes known placeholders and leaves unknown ones untouched.
func RenderPlaceholders(text string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (p PresetMessage) Render(report EmergencyReport) PresetMessage {
	values := PlaceholderValues(report)
	p.Content = RenderPlaceholders(p.Content, values)
	return p
}

func (p PresetEmail) Render(report EmergencyReport) PresetEmail {
	values := PlaceholderValues(report)
	p.Subject = RenderPlaceholders(p.Subject, values)
	p.BodyHTML = RenderPlaceholders(p.BodyHTML, values)
	p.BodyText = RenderPlaceholders(p.BodyText, values)
	return p
}
