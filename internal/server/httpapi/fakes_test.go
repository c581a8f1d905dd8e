package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/metrics"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/services"
)

// ---- fakes ----

type fakeAuth struct {
	issueErr error
	issued   []string

	verifyUser  string
	verifyToken string
	verifyErr   error
	verifyArgs  []string

	// sessions maps valid tokens to user ids
	sessions    map[string]string
	validateErr error

	revoked   []string
	revokeErr error
}

func (f *fakeAuth) IssueVerificationCode(ctx context.Context, email string) (string, error) {
	f.issued = append(f.issued, email)
	return "123456", f.issueErr
}

func (f *fakeAuth) VerifyCode(ctx context.Context, email, code, device string) (string, string, error) {
	f.verifyArgs = []string{email, code, device}
	return f.verifyUser, f.verifyToken, f.verifyErr
}

func (f *fakeAuth) ValidateToken(ctx context.Context, token string, refresh bool) (string, error) {
	if f.validateErr != nil {
		return "", f.validateErr
	}
	if id, ok := f.sessions[token]; ok && token != "" {
		return id, nil
	}
	return "", common.ErrorUnauthorized
}

func (f *fakeAuth) RevokeSession(ctx context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return f.revokeErr
}

type fakeChat struct {
	turn    *services.Turn
	turnErr error
	lastReq services.TurnRequest
	lastUID string

	view    *services.ConversationView
	viewErr error

	list      []models.Conversation
	listErr   error
	lastLimit int

	deleteErr  error
	deletedIDs []string

	cleared  int64
	clearErr error
}

func (f *fakeChat) SendMessage(ctx context.Context, userID string, req services.TurnRequest) (*services.Turn, error) {
	f.lastUID, f.lastReq = userID, req
	return f.turn, f.turnErr
}

func (f *fakeChat) GetConversation(ctx context.Context, conversationID, userID string) (*services.ConversationView, error) {
	f.lastUID = userID
	return f.view, f.viewErr
}

func (f *fakeChat) ListConversations(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	f.lastUID, f.lastLimit = userID, limit
	return f.list, f.listErr
}

func (f *fakeChat) SoftDeleteConversation(ctx context.Context, conversationID, userID string) error {
	f.deletedIDs = append(f.deletedIDs, conversationID)
	return f.deleteErr
}

func (f *fakeChat) SoftDeleteMessage(ctx context.Context, messageID, userID string) error {
	f.deletedIDs = append(f.deletedIDs, messageID)
	return f.deleteErr
}

func (f *fakeChat) ClearConversation(ctx context.Context, conversationID, userID string) (int64, error) {
	return f.cleared, f.clearErr
}

type fakeRecords struct {
	list    []models.MedicalRecord
	listErr error

	pdfName string
	pdfBody string
	pdfErr  error
}

func (f *fakeRecords) List(ctx context.Context, userID string) ([]models.MedicalRecord, error) {
	return f.list, f.listErr
}

func (f *fakeRecords) OpenPDF(ctx context.Context, userID, recordID string) (*services.PDF, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return &services.PDF{
		Name: f.pdfName,
		Size: int64(len(f.pdfBody)),
		Body: io.NopCloser(strings.NewReader(f.pdfBody)),
	}, nil
}

type fakeDashboard struct {
	out *services.Dashboard
	err error
}

func (f *fakeDashboard) Get(ctx context.Context, userID string) (*services.Dashboard, error) {
	return f.out, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

// ---- helpers ----

const (
	testToken  = "tok-valid"
	testUserID = "user-1"
)

var t0 = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type env struct {
	auth      *fakeAuth
	chat      *fakeChat
	records   *fakeRecords
	dashboard *fakeDashboard
	pinger    *fakePinger
	metrics   *metrics.Metrics
	opts      Options
}

func newEnv() *env {
	return &env{
		auth:      &fakeAuth{sessions: map[string]string{testToken: testUserID}},
		chat:      &fakeChat{},
		records:   &fakeRecords{},
		dashboard: &fakeDashboard{},
		pinger:    &fakePinger{},
		metrics:   metrics.New(),
		opts:      Options{AllowedOrigins: []string{"http://portal.test"}},
	}
}

func (e *env) handler() http.Handler {
	return NewRouter(e.opts, Services{
		Auth:      e.auth,
		Chat:      e.chat,
		Records:   e.records,
		Dashboard: e.dashboard,
		DB:        e.pinger,
	}, logging.Nop(), e.metrics)
}

func (e *env) do(t *testing.T, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.AddCookie(&http.Cookie{Name: "portal_session", Value: testToken})
	}
	rec := httptest.NewRecorder()
	e.handler().ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "portal_session" {
			return c
		}
	}
	return nil
}
