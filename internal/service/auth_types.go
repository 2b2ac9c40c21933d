package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minVerificationCode = 100000
	maxVerificationCode = 999999
)

type AuthConfig struct {
	SessionName string
}

type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type EmailSender interface {
	Send(ctx context.Context, message EmailMessage) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type AccessTokenIssuer interface {
	IssueAccessToken(userID uuid.UUID, sessionID uuid.UUID, issuedAt time.Time) (string, time.Time, error)
}

// ErrorReporter receives failures that are deliberately not returned to the caller.
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws codes uniformly from [100000, 999999].
type RandomCodeGenerator struct {
	Reader io.Reader
}

func (g RandomCodeGenerator) Generate() (string, error) {
	reader := g.Reader
	if reader == nil {
		reader = rand.Reader
	}
	n, err := rand.Int(reader, big.NewInt(maxVerificationCode-minVerificationCode+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+minVerificationCode), nil
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
