package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/musayazlik/postify/internal/entity"
	"github.com/musayazlik/postify/internal/repository"
	"github.com/musayazlik/postify/internal/utils"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// sequenceGenerator hands out 100000, 100001, ... in order.
type sequenceGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := fmt.Sprintf("%06d", minVerificationCode+g.next)
	g.next++
	return code, nil
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []EmailMessage
	err      error
}

func (m *recordingMailer) Send(_ context.Context, message EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return m.err
}

func (m *recordingMailer) Last() EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return EmailMessage{}
	}
	return m.messages[len(m.messages)-1]
}

func (m *recordingMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(_ context.Context, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

var errMailDown = errors.New("mail transport down")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entity.Models()...))
	return db
}

type testEnv struct {
	db       *gorm.DB
	clock    *testClock
	mailer   *recordingMailer
	reporter *recordingReporter
	codes    *VerificationCodeManager
	auth     *AuthService
	hasher   PasswordHasher
	users    repository.UserRepository
	sessions repository.SessionRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	clock := newTestClock(t0)
	mailer := &recordingMailer{}
	reporter := &recordingReporter{}
	hasher := BcryptPasswordHasher{Cost: bcrypt.MinCost}

	codes := NewVerificationCodeManager(
		repository.NewVerificationCodeRepository(db),
		mailer,
		&sequenceGenerator{},
		clock,
		10*time.Minute,
		nil,
		reporter,
	)

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	manager := &utils.JWTManager{Secret: []byte("test-secret-with-enough-bytes-000"), Issuer: "postify"}

	auth := NewAuthService(
		users,
		sessions,
		repository.NewSecurityLogRepository(db),
		codes,
		hasher,
		JWTAccessIssuer{Manager: manager},
		clock,
		AuthConfig{},
		nil,
	)

	return &testEnv{
		db:       db,
		clock:    clock,
		mailer:   mailer,
		reporter: reporter,
		codes:    codes,
		auth:     auth,
		hasher:   hasher,
		users:    users,
		sessions: sessions,
	}
}

func (e *testEnv) storedCodes(t *testing.T) []entity.VerificationCode {
	t.Helper()
	var rows []entity.VerificationCode
	require.NoError(t, e.db.Find(&rows).Error)
	return rows
}
