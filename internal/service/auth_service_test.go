package service

import (
	"context"
	"testing"
	"time"

	"github.com/musayazlik/postify/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerUser(t *testing.T, env *testEnv, email string) *AuthResult {
	t.Helper()
	result, err := env.auth.Register(context.Background(), RegisterInput{
		Name:     "Jane Doe",
		Email:    email,
		Password: "secret-password",
	})
	require.NoError(t, err)
	return result
}

func TestAuthService_RegisterIssuesVerificationCode(t *testing.T) {
	env := newTestEnv(t)

	result := registerUser(t, env, " Jane@Example.com ")
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "jane@example.com", result.User.Email)
	assert.False(t, result.User.HasVerifiedEmail())
	assert.NotEqual(t, "secret-password", result.User.PasswordHash)

	rows := env.storedCodes(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "jane@example.com", rows[0].Email)
	assert.Equal(t, "Email Verification Code", env.mailer.Last().Subject)

	var logs []entity.SecurityLog
	require.NoError(t, env.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, entity.Registered, logs[0].Action)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "jane@example.com")

	_, err := env.auth.Register(context.Background(), RegisterInput{
		Name:     "Other",
		Email:    "JANE@example.com",
		Password: "secret-password",
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"The email has already been taken."}, validationErr.Fields["email"])
}

func TestAuthService_RegisterSucceedsWhenMailFails(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errMailDown

	result := registerUser(t, env, "jane@example.com")
	assert.NotEmpty(t, result.Token)
	assert.Len(t, env.storedCodes(t), 1)
	assert.Len(t, env.reporter.errs, 1)
}

func TestAuthService_VerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := registerUser(t, env, "jane@example.com")
	code := env.storedCodes(t)[0].Code

	env.clock.Advance(5 * time.Minute)
	err := env.auth.VerifyEmail(ctx, result.User.ID, "999999", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, env.auth.VerifyEmail(ctx, result.User.ID, code, RequestMeta{}))

	user, err := env.auth.CurrentUser(ctx, result.User.ID)
	require.NoError(t, err)
	require.NotNil(t, user.EmailVerifiedAt)
	assert.True(t, user.EmailVerifiedAt.Equal(t0.Add(5*time.Minute)))
	assert.Empty(t, env.storedCodes(t))

	err = env.auth.VerifyEmail(ctx, result.User.ID, code, RequestMeta{})
	assert.ErrorIs(t, err, ErrEmailAlreadyVerified)
}

func TestAuthService_VerifyEmailExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	result := registerUser(t, env, "jane@example.com")
	code := env.storedCodes(t)[0].Code

	env.clock.Advance(11 * time.Minute)
	err := env.auth.VerifyEmail(context.Background(), result.User.ID, code, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestAuthService_ResendVerificationCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := registerUser(t, env, "jane@example.com")
	first := env.storedCodes(t)[0].Code

	env.clock.Advance(time.Minute)
	require.NoError(t, env.auth.ResendVerificationCode(ctx, result.User.ID, RequestMeta{}))

	rows := env.storedCodes(t)
	require.Len(t, rows, 1)
	assert.NotEqual(t, first, rows[0].Code)
	assert.Equal(t, 2, env.mailer.Count())

	assert.ErrorIs(t, env.auth.VerifyEmail(ctx, result.User.ID, first, RequestMeta{}), ErrInvalidCode)
	require.NoError(t, env.auth.VerifyEmail(ctx, result.User.ID, rows[0].Code, RequestMeta{}))

	err := env.auth.ResendVerificationCode(ctx, result.User.ID, RequestMeta{})
	assert.ErrorIs(t, err, ErrEmailAlreadyVerified)
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := registerUser(t, env, "jane@example.com")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "JANE@example.com", RequestMeta{}))
	assert.Equal(t, "Password Reset Code", env.mailer.Last().Subject)
	code := env.storedCodes(t)[0].Code

	err := env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "jane@example.com", Code: "000000", Password: "new-password"})
	assert.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, env.auth.ResetPassword(ctx, ResetPasswordInput{
		Email:    "jane@example.com",
		Code:     code,
		Password: "new-password",
	}))

	_, err = env.auth.Login(ctx, LoginInput{Email: "jane@example.com", Password: "secret-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, LoginInput{Email: "jane@example.com", Password: "new-password"})
	assert.NoError(t, err)

	original := sessionFor(t, env, result.User.ID)
	assert.NotNil(t, original.RevokedAt, "sessions issued before the reset are revoked")

	err = env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "jane@example.com", Code: code, Password: "third-password"})
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestAuthService_PasswordResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.auth.RequestPasswordReset(ctx, "nobody@example.com", RequestMeta{})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, env.storedCodes(t))

	err = env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "nobody@example.com", Code: "123456", Password: "new-password"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "email")
}

func TestAuthService_LoginAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registered := registerUser(t, env, "jane@example.com")

	_, err := env.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, LoginInput{Email: "jane@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := env.auth.Login(ctx, LoginInput{Email: "Jane@Example.com", Password: "secret-password"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, registered.User.ID, result.User.ID)

	var sessions []entity.Session
	require.NoError(t, env.db.Where("user_id = ?", registered.User.ID).Find(&sessions).Error)
	require.Len(t, sessions, 2)

	for _, session := range sessions {
		_, err := env.auth.Authenticate(ctx, registered.User.ID, session.ID)
		require.NoError(t, err)
	}

	target := sessions[0].ID
	require.NoError(t, env.auth.Logout(ctx, registered.User.ID, target, RequestMeta{}))
	_, err = env.auth.Authenticate(ctx, registered.User.ID, target)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.auth.Authenticate(ctx, registered.User.ID, sessions[1].ID)
	assert.NoError(t, err)
}

func TestAuthService_AuthenticateRejectsForeignSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	jane := registerUser(t, env, "jane@example.com")
	john := registerUser(t, env, "john@example.com")

	session := sessionFor(t, env, jane.User.ID)
	_, err := env.auth.Authenticate(ctx, john.User.ID, session.ID)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.auth.Authenticate(ctx, jane.User.ID, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_CurrentUserMissing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.CurrentUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func sessionFor(t *testing.T, env *testEnv, userID uuid.UUID) entity.Session {
	t.Helper()
	var session entity.Session
	require.NoError(t, env.db.Where("user_id = ?", userID).Order("created_at").First(&session).Error)
	return session
}
