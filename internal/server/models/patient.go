package models

import "time"

type Patient struct {
	UserID    string
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID         string
	UserID     string
	DoctorName string
	Date       time.Time
	// Time is the local wall-clock time, "HH:MM"; empty when unknown.
	Time     string
	AtUTC    *time.Time
	Type     string
	Location string
	Notes    string
	Status   string
}

type MedicalRecord struct {
	ID             string
	UserID         string
	Title          string
	Type           string
	Date           time.Time
	Content        string
	SourceFilename string
	CreatedAt      time.Time
}
