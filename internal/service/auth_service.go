package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/musayazlik/postify/internal/entity"
	"github.com/musayazlik/postify/internal/repository"
	"github.com/musayazlik/postify/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const defaultSessionName = "auth_token"

type AuthService struct {
	users        repository.UserRepository
	sessions     repository.SessionRepository
	securityLogs repository.SecurityLogRepository

	codes        *VerificationCodeManager
	passwordHash PasswordHasher
	accessTokens AccessTokenIssuer
	clock        Clock
	config       AuthConfig
	logger       logrus.FieldLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	securityLogs repository.SecurityLogRepository,
	codes *VerificationCodeManager,
	passwordHash PasswordHasher,
	accessTokens AccessTokenIssuer,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthService {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		users:        users,
		sessions:     sessions,
		securityLogs: securityLogs,
		codes:        codes,
		passwordHash: passwordHash,
		accessTokens: accessTokens,
		clock:        clock,
		config:       config,
		logger:       logger,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := utils.NormalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewValidationError("email", "The email has already been taken.")
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, NewValidationError("email", "The email has already been taken.")
		}
		return nil, err
	}

	if _, err := s.codes.Issue(ctx, user.Email, entity.PurposeEmailVerification); err != nil {
		return nil, err
	}

	token, err := s.createSession(ctx, user, input.Meta)
	if err != nil {
		return nil, err
	}

	s.logSecurity(ctx, &user.ID, input.Meta.IPAddress, entity.Registered, nil)
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, userID uuid.UUID, code string, meta RequestMeta) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasVerifiedEmail() {
		return ErrEmailAlreadyVerified
	}

	ok, err := s.codes.Verify(ctx, user.Email, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID, s.clock.Now()); err != nil {
		return err
	}
	s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.EmailVerified, nil)
	return nil
}

func (s *AuthService) ResendVerificationCode(ctx context.Context, userID uuid.UUID, meta RequestMeta) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasVerifiedEmail() {
		return ErrEmailAlreadyVerified
	}

	if _, err := s.codes.Issue(ctx, user.Email, entity.PurposeEmailVerification); err != nil {
		return err
	}
	s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.VerificationCodeSent, nil)
	return nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, meta RequestMeta) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if _, err := s.codes.Issue(ctx, user.Email, entity.PurposePasswordReset); err != nil {
		return err
	}
	s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.PasswordResetRequested, nil)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || strings.TrimSpace(input.Code) == "" || input.Password == "" {
		return ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return NewValidationError("email", "The selected email is invalid.")
	}

	ok, err := s.codes.Verify(ctx, user.Email, input.Code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if err := s.sessions.RevokeAllByUser(ctx, user.ID, s.clock.Now()); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("revoke sessions after password reset")
	}
	s.logSecurity(ctx, &user.ID, input.Meta.IPAddress, entity.PasswordReset, nil)
	return nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = s.passwordHash.Verify(s.dummyPasswordHash(), input.Password)
		s.logSecurity(ctx, nil, input.Meta.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(user.PasswordHash, input.Password) {
		s.logSecurity(ctx, &user.ID, input.Meta.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}

	token, err := s.createSession(ctx, user, input.Meta)
	if err != nil {
		return nil, err
	}

	s.logSecurity(ctx, &user.ID, input.Meta.IPAddress, entity.LoginSuccess, nil)
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, meta RequestMeta) error {
	if err := s.sessions.Revoke(ctx, sessionID, s.clock.Now()); err != nil {
		return err
	}
	s.logSecurity(ctx, &userID, meta.IPAddress, entity.Logout, nil)
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.loadUser(ctx, userID)
}

// Authenticate resolves the session behind a bearer token.
func (s *AuthService) Authenticate(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*entity.Session, error) {
	session, err := s.sessions.FindActive(ctx, sessionID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrInvalidToken
	}
	return session, nil
}

func (s *AuthService) createSession(ctx context.Context, user *entity.User, meta RequestMeta) (string, error) {
	session := &entity.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      s.sessionName(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	token, expiresAt, err := s.accessTokens.IssueAccessToken(user.ID, session.ID, s.clock.Now())
	if err != nil {
		return "", err
	}
	session.ExpiresAt = expiresAt

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) loadUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if s.securityLogs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			s.logger.WithError(err).WithField("action", action).Warn("encode security log metadata")
			return
		}
		payload = datatypes.JSON(bytes)
	}

	log := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("write security log")
	}
}

// dummyPasswordHash keeps unknown-email logins as slow as wrong-password ones.
func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwordHash.Hash(uuid.NewString())
		if err != nil {
			s.logger.WithError(err).Warn("build dummy password hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) sessionName() string {
	if strings.TrimSpace(s.config.SessionName) != "" {
		return s.config.SessionName
	}
	return defaultSessionName
}
