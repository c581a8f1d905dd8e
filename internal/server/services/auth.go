package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/mailer"
	"github.com/dmitrijs2005/patientportal/internal/server/metrics"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
)

// Verification email content.
const (
	CodeEmailSubject = "Patient Portal - Verification Code"
	codeEmailBody    = "Your verification code is: %s\n\nThis code will expire in 15 minutes."

	unknownDevice   = "Unknown"
	mailSendTimeout = 30 * time.Second
)

// AuthOptions tunes AuthService. Zero durations fall back to the package
// defaults in common.
type AuthOptions struct {
	SessionTTL time.Duration
	CodeTTL    time.Duration
	DemoEmail  string
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailer      mailer.Mailer
	demo        *DemoSeeder
	metrics     *metrics.Metrics
	log         logging.Logger
	now         func() time.Time

	sessionTTL time.Duration
	codeTTL    time.Duration
	demoEmail  string

	mailWG sync.WaitGroup
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, ml mailer.Mailer, demo *DemoSeeder,
	mt *metrics.Metrics, log logging.Logger, opts AuthOptions) *AuthService {

	if opts.SessionTTL <= 0 {
		opts.SessionTTL = common.SessionTTL
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = common.VerificationCodeTTL
	}
	if log == nil {
		log = logging.Nop()
	}

	return &AuthService{
		db:          db,
		repomanager: m,
		mailer:      ml,
		demo:        demo,
		metrics:     mt,
		log:         log,
		now:         time.Now,
		sessionTTL:  opts.SessionTTL,
		codeTTL:     opts.CodeTTL,
		demoEmail:   strings.TrimSpace(opts.DemoEmail),
	}
}

// IssueVerificationCode stores a fresh 6-digit code for email and mails it in
// the background. Earlier codes for the same address stay valid until they
// expire.
func (s *AuthService) IssueVerificationCode(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if !common.IsValidEmail(email) {
		return "", fmt.Errorf("%w: please enter a valid email address", common.ErrorInvalidInput)
	}

	code, err := common.NewVerificationCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	vc := &models.VerificationCode{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.repomanager.VerificationCodes(s.db).Create(ctx, vc); err != nil {
		return "", fmt.Errorf("error storing verification code: %w", err)
	}

	s.metrics.CodeIssued()
	s.sendCode(ctx, email, code)

	return code, nil
}

// sendCode mails the code without blocking the request. Delivery failures are
// logged and never reach the caller.
func (s *AuthService) sendCode(ctx context.Context, email, code string) {
	if s.mailer == nil {
		s.log.Warn(ctx, "no mailer configured, verification code not sent", "email", email)
		return
	}

	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailSendTimeout)
		defer cancel()

		if err := s.mailer.Send(ctx, email, CodeEmailSubject, fmt.Sprintf(codeEmailBody, code)); err != nil {
			s.log.Error(ctx, "failed to send verification code", "email", email, "error", err)
		}
	}()
}

// Wait blocks until background mail deliveries have finished.
func (s *AuthService) Wait() {
	s.mailWG.Wait()
}

type login struct {
	userID string
	token  string
}

// VerifyCode redeems a code and opens a session for the matching account,
// creating the account on first login. The code is consumed, the user is
// upserted and the session is stored in one transaction.
func (s *AuthService) VerifyCode(ctx context.Context, email, code, device string) (userID, token string, err error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", "", fmt.Errorf("%w: email and code are required", common.ErrorInvalidInput)
	}

	device = strings.TrimSpace(device)
	if device == "" {
		device = unknownDevice
	}

	now := s.now()

	res, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (login, error) {
		if _, err := s.repomanager.VerificationCodes(tx).Consume(ctx, email, code, now); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return login{}, common.ErrorUnauthorized
			}
			return login{}, fmt.Errorf("error consuming code: %w", err)
		}

		newID, err := common.NewOpaqueID()
		if err != nil {
			return login{}, err
		}
		userID, err := s.repomanager.Users(tx).UpsertLogin(ctx, email, newID, now)
		if err != nil {
			return login{}, fmt.Errorf("error upserting user: %w", err)
		}

		token, err := common.NewOpaqueID()
		if err != nil {
			return login{}, err
		}
		session := &models.Session{
			ID:         uuid.NewString(),
			UserID:     userID,
			Token:      token,
			DeviceInfo: device,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.sessionTTL),
		}
		if err := s.repomanager.Sessions(tx).Create(ctx, session); err != nil {
			return login{}, fmt.Errorf("error creating session: %w", err)
		}

		return login{userID: userID, token: token}, nil
	})
	s.metrics.Login(err == nil)
	if err != nil {
		return "", "", err
	}

	if s.demo != nil && s.demoEmail != "" && email == s.demoEmail {
		if err := s.demo.Seed(ctx, res.userID); err != nil {
			s.log.Error(ctx, "demo data seeding failed", "user_id", res.userID, "error", err)
		}
	}

	return res.userID, res.token, nil
}

// ValidateToken maps a session token to its user id and stamps activity.
// With refresh the session is also extended to a full TTL from now. Any
// missing piece yields common.ErrorUnauthorized.
func (s *AuthService) ValidateToken(ctx context.Context, token string, refresh bool) (string, error) {
	if token == "" || s.repomanager == nil {
		return "", common.ErrorUnauthorized
	}
	repo := s.repomanager.Sessions(s.db)
	if repo == nil {
		return "", common.ErrorUnauthorized
	}

	now := s.now()

	var (
		userID string
		err    error
	)
	if refresh {
		userID, err = repo.Refresh(ctx, token, now, now.Add(s.sessionTTL))
	} else {
		userID, err = repo.Touch(ctx, token, now)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("error validating session: %w", err)
	}
	if userID == "" {
		return "", common.ErrorUnauthorized
	}
	return userID, nil
}

// RevokeSession deletes the session. Unknown or empty tokens are ignored.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repomanager.Sessions(s.db).Delete(ctx, token); err != nil {
		return fmt.Errorf("error revoking session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions removes every session whose expiry has passed.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Sessions(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error purging sessions: %w", err)
	}
	return n, nil
}
