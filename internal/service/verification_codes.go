package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/musayazlik/postify/internal/entity"
	"github.com/musayazlik/postify/internal/repository"
	"github.com/musayazlik/postify/internal/utils"

	"github.com/sirupsen/logrus"
)

const defaultVerificationCodeTTL = 10 * time.Minute

// VerificationCodeManager issues and redeems the one-time numeric codes used
// for email verification and password reset.
type VerificationCodeManager struct {
	codes     repository.VerificationCodeRepository
	mailer    EmailSender
	generator CodeGenerator
	clock     Clock
	ttl       time.Duration
	logger    logrus.FieldLogger
	reporter  ErrorReporter
}

func NewVerificationCodeManager(
	codes repository.VerificationCodeRepository,
	mailer EmailSender,
	generator CodeGenerator,
	clock Clock,
	ttl time.Duration,
	logger logrus.FieldLogger,
	reporter ErrorReporter,
) *VerificationCodeManager {
	if generator == nil {
		generator = RandomCodeGenerator{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	if ttl <= 0 {
		ttl = defaultVerificationCodeTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VerificationCodeManager{
		codes:     codes,
		mailer:    mailer,
		generator: generator,
		clock:     clock,
		ttl:       ttl,
		logger:    logger,
		reporter:  reporter,
	}
}

// Issue replaces any outstanding code for email with a new one and mails it.
// A failed delivery is logged and reported but does not undo the stored code.
func (m *VerificationCodeManager) Issue(ctx context.Context, email string, purpose entity.CodePurpose) (string, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return "", ErrInvalidInput
	}

	code, err := m.generator.Generate()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	message, err := mailForPurpose(purpose, email, code, m.ttl)
	if err != nil {
		return "", err
	}

	now := m.clock.Now()
	record := &entity.VerificationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.codes.Replace(ctx, record); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}

	m.deliver(ctx, message, purpose)
	return code, nil
}

// Verify redeems code for email. It returns false for a wrong, expired or
// already consumed code without saying which.
func (m *VerificationCodeManager) Verify(ctx context.Context, email string, code string) (bool, error) {
	email = utils.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || !isVerificationCode(code) {
		return false, nil
	}
	ok, err := m.codes.Consume(ctx, email, code, m.clock.Now())
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	return ok, nil
}

// Prune deletes codes that can no longer match. Nothing calls it on a schedule.
func (m *VerificationCodeManager) Prune(ctx context.Context) (int64, error) {
	return m.codes.DeleteExpired(ctx, m.clock.Now())
}

func (m *VerificationCodeManager) TTL() time.Duration {
	return m.ttl
}

func (m *VerificationCodeManager) deliver(ctx context.Context, message EmailMessage, purpose entity.CodePurpose) {
	if m.mailer == nil {
		return
	}
	if err := m.mailer.Send(ctx, message); err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"to":      message.To,
			"purpose": purpose,
		}).Error("verification code mail not delivered")
		if m.reporter != nil {
			m.reporter.Report(ctx, fmt.Errorf("send %s code: %w", purpose, err))
		}
	}
}

func isVerificationCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
