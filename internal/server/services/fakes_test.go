package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/server/llm"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/appointments"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/messages"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/patients"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/records"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/users"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/verificationcodes"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// expectTx registers one transaction that commits or rolls back.
func expectTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// --- users ---

type fakeUsers struct {
	byEmail map[string]*models.User

	upsertErr error
	getErr    error
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byEmail: map[string]*models.User{}} }

func (f *fakeUsers) UpsertLogin(ctx context.Context, email, newID string, now time.Time) (string, error) {
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		u = &models.User{ID: newID, Email: email, CreatedAt: now}
		f.byEmail[email] = u
	}
	n := now
	u.LastLogin = &n
	return u.ID, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

// --- sessions ---

type fakeSessions struct {
	byToken map[string]*models.Session

	createErr error
	touchErr  error
	deleteErr error
	purgeErr  error
}

func newFakeSessions() *fakeSessions { return &fakeSessions{byToken: map[string]*models.Session{}} }

func (f *fakeSessions) Create(ctx context.Context, s *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	c := *s
	c.LastActivity = s.CreatedAt
	f.byToken[s.Token] = &c
	return nil
}

func (f *fakeSessions) live(token string, now time.Time) (*models.Session, error) {
	if f.touchErr != nil {
		return nil, f.touchErr
	}
	s, ok := f.byToken[token]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (f *fakeSessions) Touch(ctx context.Context, token string, now time.Time) (string, error) {
	s, err := f.live(token, now)
	if err != nil {
		return "", err
	}
	s.LastActivity = now
	return s.UserID, nil
}

func (f *fakeSessions) Refresh(ctx context.Context, token string, now, expiresAt time.Time) (string, error) {
	s, err := f.live(token, now)
	if err != nil {
		return "", err
	}
	s.LastActivity = now
	s.ExpiresAt = expiresAt
	return s.UserID, nil
}

func (f *fakeSessions) Delete(ctx context.Context, token string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.byToken, token)
	return nil
}

func (f *fakeSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	var n int64
	for k, s := range f.byToken {
		if !s.ExpiresAt.After(now) {
			delete(f.byToken, k)
			n++
		}
	}
	return n, nil
}

// --- verification codes ---

type fakeCodes struct {
	rows []*models.VerificationCode

	createErr  error
	consumeErr error
}

func (f *fakeCodes) Create(ctx context.Context, c *models.VerificationCode) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *c
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeCodes) Consume(ctx context.Context, email, code string, now time.Time) (string, error) {
	if f.consumeErr != nil {
		return "", f.consumeErr
	}
	var best *models.VerificationCode
	for _, r := range f.rows {
		if r.Email != email || r.Code != code || r.Used || !r.ExpiresAt.After(now) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return "", common.ErrorNotFound
	}
	best.Used = true
	return best.ID, nil
}

// --- patients / appointments / records ---

type fakePatients struct {
	rows      map[string]*models.Patient
	upsertErr error
	getErr    error
}

func newFakePatients() *fakePatients { return &fakePatients{rows: map[string]*models.Patient{}} }

func (f *fakePatients) Upsert(ctx context.Context, p *models.Patient) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	c := *p
	f.rows[p.UserID] = &c
	return nil
}

func (f *fakePatients) Get(ctx context.Context, userID string) (*models.Patient, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.rows[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

type fakeAppointments struct {
	rows []models.Appointment

	createErr error
	listErr   error
	latestErr error
	existsErr error
}

func (f *fakeAppointments) Create(ctx context.Context, a *models.Appointment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.rows = append(f.rows, *a)
	return nil
}

func (f *fakeAppointments) ListByUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Appointment
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) Latest(ctx context.Context, userID string) (*models.Appointment, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	list, _ := f.ListByUser(ctx, userID)
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return &list[0], nil
}

func (f *fakeAppointments) ExistsWithDoctor(ctx context.Context, userID, doctor string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, a := range f.rows {
		if a.UserID == userID && a.DoctorName == doctor {
			return true, nil
		}
	}
	return false, nil
}

type fakeRecords struct {
	rows    []models.MedicalRecord
	listErr error
	anyErr  error
}

func (f *fakeRecords) Create(ctx context.Context, r *models.MedicalRecord) error {
	f.rows = append(f.rows, *r)
	return nil
}

func (f *fakeRecords) ListByUser(ctx context.Context, userID string) ([]models.MedicalRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.MedicalRecord
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Get(ctx context.Context, id, userID string) (*models.MedicalRecord, error) {
	for _, r := range f.rows {
		if r.ID == id && r.UserID == userID {
			c := r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRecords) HasAny(ctx context.Context, userID string) (bool, error) {
	if f.anyErr != nil {
		return false, f.anyErr
	}
	list, _ := f.ListByUser(ctx, userID)
	return len(list) > 0, nil
}

// --- conversations / messages ---

type fakeConversations struct {
	rows map[string]*models.Conversation

	createErr error
	listErr   error
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{rows: map[string]*models.Conversation{}}
}

func (f *fakeConversations) Create(ctx context.Context, c *models.Conversation) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeConversations) owned(id, userID string) (*models.Conversation, bool) {
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return nil, false
	}
	return c, true
}

func (f *fakeConversations) Touch(ctx context.Context, id, userID string, now time.Time) error {
	c, ok := f.owned(id, userID)
	if !ok || c.Status != models.StatusActive {
		return common.ErrorNotFound
	}
	c.UpdatedAt = now
	return nil
}

func (f *fakeConversations) Bump(ctx context.Context, id string, now time.Time) error {
	c, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	c.UpdatedAt = now
	return nil
}

func (f *fakeConversations) Get(ctx context.Context, id, userID string) (*models.Conversation, error) {
	c, ok := f.owned(id, userID)
	if !ok || c.Status != models.StatusActive {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Conversation
	for _, c := range f.rows {
		if c.UserID == userID && c.Status == models.StatusActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeConversations) SoftDelete(ctx context.Context, id, userID string, now time.Time) error {
	c, ok := f.owned(id, userID)
	if !ok {
		return common.ErrorNotFound
	}
	c.Status = models.StatusDeleted
	c.UpdatedAt = now
	return nil
}

type fakeMessages struct {
	convs *fakeConversations
	rows  []*models.Message

	createErr error
}

func (f *fakeMessages) Create(ctx context.Context, m *models.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *m
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeMessages) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.rows {
		if m.ConversationID == conversationID && m.Status == models.StatusActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) SoftDelete(ctx context.Context, messageID, userID string) error {
	for _, m := range f.rows {
		if m.ID != messageID {
			continue
		}
		if _, ok := f.convs.owned(m.ConversationID, userID); !ok {
			return common.ErrorNotFound
		}
		m.Status = models.StatusDeleted
		return nil
	}
	return common.ErrorNotFound
}

func (f *fakeMessages) SoftDeleteAll(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	for _, m := range f.rows {
		if m.ConversationID == conversationID && m.Status == models.StatusActive {
			m.Status = models.StatusDeleted
			n++
		}
	}
	return n, nil
}

// --- manager ---

type fakeRepoManager struct {
	users         *fakeUsers
	sessions      *fakeSessions
	codes         *fakeCodes
	patients      *fakePatients
	appointments  *fakeAppointments
	records       *fakeRecords
	conversations *fakeConversations
	messages      *fakeMessages

	nilSessions bool
}

func newFakeRepoManager() *fakeRepoManager {
	convs := newFakeConversations()
	return &fakeRepoManager{
		users:         newFakeUsers(),
		sessions:      newFakeSessions(),
		codes:         &fakeCodes{},
		patients:      newFakePatients(),
		appointments:  &fakeAppointments{},
		records:       &fakeRecords{},
		conversations: convs,
		messages:      &fakeMessages{convs: convs},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return m.users }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessions.Repository {
	if m.nilSessions {
		return nil
	}
	return m.sessions
}
func (m *fakeRepoManager) VerificationCodes(db dbx.DBTX) verificationcodes.Repository {
	return m.codes
}
func (m *fakeRepoManager) Patients(db dbx.DBTX) patients.Repository         { return m.patients }
func (m *fakeRepoManager) Appointments(db dbx.DBTX) appointments.Repository { return m.appointments }
func (m *fakeRepoManager) Records(db dbx.DBTX) records.Repository           { return m.records }
func (m *fakeRepoManager) Conversations(db dbx.DBTX) conversations.Repository {
	return m.conversations
}
func (m *fakeRepoManager) Messages(db dbx.DBTX) messages.Repository { return m.messages }

// --- collaborators ---

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return f.err
}

type fakeLLM struct {
	reply string
	err   error

	system   string
	messages []llm.Message
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, system string, msgs []llm.Message) (string, error) {
	f.calls++
	f.system = system
	f.messages = msgs
	return f.reply, f.err
}
