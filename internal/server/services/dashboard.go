package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
)

const (
	defaultPatientName = "Patient"
	recentChats        = 3
	previewRunes       = 100
)

type Dashboard struct {
	Name              string
	Email             string
	Appointment       *AppointmentSummary
	RecentChats       []ChatSummary
	HasMedicalRecords bool
}

// AppointmentSummary shows the UTC date and time when the appointment has
// one, otherwise the stored date and local time.
type AppointmentSummary struct {
	Doctor   string
	Date     string
	Time     string
	Type     string
	Location string
	Status   string
}

type ChatSummary struct {
	ID        string
	Preview   string
	UpdatedAt time.Time
}

type DashboardService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewDashboardService(db *sql.DB, m repomanager.RepositoryManager) *DashboardService {
	return &DashboardService{db: db, repomanager: m}
}

func (s *DashboardService) Get(ctx context.Context, userID string) (*Dashboard, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	d := &Dashboard{Name: defaultPatientName, Email: user.Email}

	patient, err := s.repomanager.Patients(s.db).Get(ctx, userID)
	switch {
	case err == nil:
		if patient.FullName != "" {
			d.Name = patient.FullName
		}
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error loading patient: %w", err)
	}

	appt, err := s.repomanager.Appointments(s.db).Latest(ctx, userID)
	switch {
	case err == nil:
		sum := &AppointmentSummary{
			Doctor:   appt.DoctorName,
			Date:     appt.Date.Format("2006-01-02"),
			Time:     appt.Time,
			Type:     appt.Type,
			Location: appt.Location,
			Status:   appt.Status,
		}
		if appt.AtUTC != nil {
			at := appt.AtUTC.UTC()
			sum.Date = at.Format("2006-01-02")
			sum.Time = at.Format("15:04")
		}
		d.Appointment = sum
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error loading appointment: %w", err)
	}

	convs, err := s.repomanager.Conversations(s.db).ListByUser(ctx, userID, recentChats)
	if err != nil {
		return nil, fmt.Errorf("error loading conversations: %w", err)
	}
	d.RecentChats = make([]ChatSummary, 0, len(convs))
	for _, c := range convs {
		d.RecentChats = append(d.RecentChats, ChatSummary{
			ID:        c.ID,
			Preview:   truncate(c.Title, previewRunes),
			UpdatedAt: c.UpdatedAt,
		})
	}

	d.HasMedicalRecords, err = s.repomanager.Records(s.db).HasAny(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error checking records: %w", err)
	}

	return d, nil
}
