package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/appointments"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/messages"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/patients"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/records"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/users"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/verificationcodes"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error

	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	VerificationCodes(db dbx.DBTX) verificationcodes.Repository

	Patients(db dbx.DBTX) patients.Repository
	Appointments(db dbx.DBTX) appointments.Repository
	Records(db dbx.DBTX) records.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
}
