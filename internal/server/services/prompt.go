package services

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

const persona = "You are a medical AI assistant. You are NOT a doctor, but you have access to the patient's medical records. " +
	"Your role is to help patients understand their medical records and prepare for doctor appointments. " +
	"Always remind patients that you are not a replacement for professional medical advice. " +
	"Be helpful, empathetic, and clear in your explanations."

const (
	noRecords      = "No medical records available yet.\n"
	noAppointments = "No appointment history available.\n"
	notProvided    = "Not provided"
	defaultZone    = "UTC"
)

// PromptInput is everything the system prompt is assembled from. Records and
// appointments are expected newest first, History oldest first.
type PromptInput struct {
	Now           time.Time
	LocalDateTime string
	Timezone      string
	Records       []models.MedicalRecord
	Appointments  []models.Appointment
	History       []models.Message
}

// BuildSystemPrompt renders the assistant instructions followed by the
// patient's records, appointments and the conversation so far.
func BuildSystemPrompt(in PromptInput) string {
	local := strings.TrimSpace(in.LocalDateTime)
	if local == "" {
		local = notProvided
	}
	zone := strings.TrimSpace(in.Timezone)
	if zone == "" {
		zone = defaultZone
	}

	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n")

	b.WriteString("Current UTC date and time: ")
	b.WriteString(in.Now.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString(" UTC\n")
	b.WriteString("Patient's local date and time: ")
	b.WriteString(local)
	b.WriteString("\nPatient's timezone: ")
	b.WriteString(zone)
	b.WriteString("\n\n")

	b.WriteString("MEDICAL RECORDS:\n\n")
	b.WriteString(formatRecords(in.Records))
	b.WriteString("\n")

	b.WriteString("APPOINTMENTS:\n\n")
	b.WriteString(formatAppointments(in.Appointments))
	b.WriteString("\n")

	b.WriteString("CONVERSATION HISTORY:\n\n")
	b.WriteString(formatHistory(in.History))

	return b.String()
}

func formatRecords(records []models.MedicalRecord) string {
	if len(records) == 0 {
		return noRecords
	}
	var b strings.Builder
	for _, r := range records {
		b.WriteString("=== " + r.Title + " (" + r.Type + ") - Date: " + r.Date.Format("2006-01-02") + " ===\n")
		b.WriteString(r.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

func formatAppointments(appts []models.Appointment) string {
	if len(appts) == 0 {
		return noAppointments
	}
	var b strings.Builder
	for _, a := range appts {
		b.WriteString("Date: " + a.Date.Format("2006-01-02"))
		if a.Time != "" {
			b.WriteString(" at " + a.Time)
		}
		b.WriteString("\n")
		b.WriteString("Doctor: " + a.DoctorName + "\n")
		if a.Type != "" {
			b.WriteString("Type: " + a.Type + "\n")
		}
		if a.Location != "" {
			b.WriteString("Location: " + a.Location + "\n")
		}
		b.WriteString("Status: " + a.Status + "\n")
		if a.Notes != "" {
			b.WriteString("Doctor's Notes:\n" + a.Notes + "\n")
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

func formatHistory(history []models.Message) string {
	var b strings.Builder
	for _, m := range history {
		if m.Role == models.RolePatient {
			b.WriteString("Patient: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Body)
		b.WriteString("\n\n")
	}
	return b.String()
}
