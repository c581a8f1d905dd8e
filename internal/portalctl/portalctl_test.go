package portalctl

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/filex"
	"github.com/dmitrijs2005/patientportal/internal/server/config"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/appointments"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/patients"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/users"
)

// ---- fakes ----

// fakeRepos implements only what the commands touch; any other call panics
// on the nil embedded interface.
type fakeRepos struct {
	repomanager.RepositoryManager

	migrated   bool
	migrateErr error

	sessions     *fakeSessions
	users        *fakeUsers
	patients     *fakePatients
	appointments *fakeAppointments
}

func (f *fakeRepos) RunMigrations(ctx context.Context, db *sql.DB) error {
	f.migrated = true
	return f.migrateErr
}
func (f *fakeRepos) Sessions(dbx.DBTX) sessions.Repository         { return f.sessions }
func (f *fakeRepos) Users(dbx.DBTX) users.Repository               { return f.users }
func (f *fakeRepos) Patients(dbx.DBTX) patients.Repository         { return f.patients }
func (f *fakeRepos) Appointments(dbx.DBTX) appointments.Repository { return f.appointments }

type fakeSessions struct {
	sessions.Repository
	purged int64
	err    error
}

func (f *fakeSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return f.purged, f.err
}

type fakeUsers struct {
	users.Repository
	byEmail map[string]string
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.User{ID: id, Email: email}, nil
}

func (f *fakeUsers) UpsertLogin(ctx context.Context, email, newID string, now time.Time) (string, error) {
	f.byEmail[email] = newID
	return newID, nil
}

type fakePatients struct {
	patients.Repository
	names map[string]string
}

func (f *fakePatients) Upsert(ctx context.Context, p *models.Patient) error {
	f.names[p.UserID] = p.FullName
	return nil
}

type fakeAppointments struct {
	appointments.Repository
	created int
}

func (f *fakeAppointments) ExistsWithDoctor(ctx context.Context, userID, doctor string) (bool, error) {
	return f.created > 0, nil
}

func (f *fakeAppointments) Create(ctx context.Context, a *models.Appointment) error {
	f.created++
	return nil
}

// ---- helpers ----

func newTestEnv(t *testing.T) (*Env, *fakeRepos, sqlmock.Sqlmock, *bytes.Buffer) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(true)

	c := &config.Config{}
	c.LoadDefaults()
	c.MaintenanceFile = filepath.Join(t.TempDir(), "maintenance")

	repos := &fakeRepos{
		sessions:     &fakeSessions{},
		users:        &fakeUsers{byEmail: map[string]string{}},
		patients:     &fakePatients{names: map[string]string{}},
		appointments: &fakeAppointments{},
	}

	out := &bytes.Buffer{}
	env := &Env{
		Config: c,
		Out:    out,
		OpenDB: func(ctx context.Context, dsn string) (*sql.DB, error) { return db, nil },
		Repos:  repos,
	}
	return env, repos, mock, out
}

func run(t *testing.T, env *Env, args ...string) error {
	t.Helper()
	cmd := NewRootCommand(env)
	cmd.SetArgs(args)
	cmd.SetOut(env.Out)
	cmd.SetErr(env.Out)
	return cmd.ExecuteContext(context.Background())
}

// ---- tests ----

func TestMigrate(t *testing.T) {
	env, repos, mock, out := newTestEnv(t)
	mock.ExpectClose()

	require.NoError(t, run(t, env, "migrate"))
	assert.True(t, repos.migrated)
	assert.Contains(t, out.String(), "migrations applied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Errors(t *testing.T) {
	env, repos, mock, _ := newTestEnv(t)
	repos.migrateErr = errors.New("dirty schema")
	mock.ExpectClose()

	err := run(t, env, "migrate")
	assert.ErrorContains(t, err, "dirty schema")

	env.OpenDB = func(ctx context.Context, dsn string) (*sql.DB, error) { return nil, errors.New("refused") }
	err = run(t, env, "migrate")
	assert.ErrorContains(t, err, "db init error")
}

func TestSeedDemo(t *testing.T) {
	env, repos, mock, out := newTestEnv(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectClose()

	require.NoError(t, run(t, env, "seed-demo", "--email", "demo@example.com"))

	id := repos.users.byEmail["demo@example.com"]
	require.NotEmpty(t, id)
	assert.Equal(t, "John Doe", repos.patients.names[id])
	assert.Equal(t, 1, repos.appointments.created)
	assert.Contains(t, out.String(), "demo data seeded for demo@example.com")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDemo_RequiresEmail(t *testing.T) {
	env, _, _, _ := newTestEnv(t)
	env.Config.DemoEmail = ""
	assert.ErrorContains(t, run(t, env, "seed-demo"), "--email is required")
}

func TestMaintenance(t *testing.T) {
	env, _, _, out := newTestEnv(t)
	flag := env.Config.MaintenanceFile

	require.NoError(t, run(t, env, "maintenance", "on"))
	assert.True(t, filex.Exists(flag))
	assert.Contains(t, out.String(), "maintenance mode is on")

	out.Reset()
	require.NoError(t, run(t, env, "maintenance", "status"))
	assert.Contains(t, out.String(), "maintenance mode is on")

	out.Reset()
	require.NoError(t, run(t, env, "maintenance", "off"))
	assert.False(t, filex.Exists(flag))
	assert.Contains(t, out.String(), "maintenance mode is off")

	assert.Error(t, run(t, env, "maintenance", "sideways"))
	assert.Error(t, run(t, env, "maintenance"))
}

func TestSessionsPurgeExpired(t *testing.T) {
	env, repos, mock, out := newTestEnv(t)
	repos.sessions.purged = 4
	mock.ExpectClose()

	require.NoError(t, run(t, env, "sessions", "purge-expired"))
	assert.Contains(t, out.String(), "4 expired sessions removed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigFlagOverrides(t *testing.T) {
	env, _, mock, _ := newTestEnv(t)
	db := env.OpenDB

	var gotDSN string
	env.OpenDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db(ctx, dsn)
	}
	mock.ExpectClose()

	require.NoError(t, run(t, env, "--dsn=postgres://ops@db/portal", "migrate"))
	assert.Equal(t, "postgres://ops@db/portal", gotDSN)
	assert.Equal(t, "postgres://ops@db/portal", env.Config.DatabaseDSN)
}

func TestConfigFlagOverrides_ShortForms(t *testing.T) {
	env, repos, mock, _ := newTestEnv(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectClose()

	flag := filepath.Join(t.TempDir(), "maint")
	require.NoError(t, run(t, env, "-m", flag, "-a", ":9090", "-l", "console", "-u", "/srv/pdf", "maintenance", "on"))
	assert.True(t, filex.Exists(flag))
	assert.Equal(t, ":9090", env.Config.HTTPAddr)
	assert.Equal(t, "console", env.Config.LogFormat)
	assert.Equal(t, "/srv/pdf", env.Config.UploadsDir)

	require.NoError(t, run(t, env, "-e", "demo@example.com", "seed-demo"))
	assert.NotEmpty(t, repos.users.byEmail["demo@example.com"])
}

func TestConfigFlagOverrides_UnsetKeepsLoadedValue(t *testing.T) {
	env, _, _, _ := newTestEnv(t)
	loaded := env.Config.MaintenanceFile

	require.NoError(t, run(t, env, "maintenance", "status"))
	assert.Equal(t, loaded, env.Config.MaintenanceFile)
}
