package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleReport() EmergencyReport {
	return EmergencyReport{
		ID:            "r-1",
		EmergencyType: "Water Leak",
		Reservation: &Reservation{
			AgreementNumber: "AGR-2024-001",
			Listing:         Listing{Address: "123 Main Street"},
			Guest:           User{FullName: "Guest User"},
		},
		ReportedBy: &User{FullName: "Host User"},
	}
}

func TestPresetEmailRender(t *testing.T) {
	preset := PresetEmail{
		Label:    "Emergency Acknowledged",
		Subject:  "Emergency Report Received - {{AGREEMENT_NUMBER}}",
		BodyHTML: "<p>Dear {{GUEST_NAME}},</p><p>{{EMERGENCY_TYPE}}</p>",
		BodyText: "Dear {{GUEST_NAME}}, {{UNKNOWN}}",
	}

	got := preset.Render(sampleReport())

	assert.Equal(t, "Emergency Report Received - AGR-2024-001", got.Subject)
	assert.Equal(t, "<p>Dear Guest User,</p><p>Water Leak</p>", got.BodyHTML)
	assert.Equal(t, "Dear Guest User, {{UNKNOWN}}", got.BodyText)
	assert.Equal(t, "Emergency Report Received - {{AGREEMENT_NUMBER}}", preset.Subject)
}

func TestPresetMessageRenderWithoutReservation(t *testing.T) {
	preset := PresetMessage{Content: "Re {{AGREEMENT_NUMBER}}: {{EMERGENCY_TYPE}}"}

	got := preset.Render(EmergencyReport{EmergencyType: "Lockout"})

	assert.Equal(t, "Re {{AGREEMENT_NUMBER}}: Lockout", got.Content)
}
