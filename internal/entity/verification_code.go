package entity

import "time"

// VerificationCode is the single outstanding one-time code for an email
// address. Issuing a new code overwrites the row for that email.
type VerificationCode struct {
	Email     string    `gorm:"type:varchar(255);primaryKey"`
	Code      string    `gorm:"type:char(6);not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

type CodePurpose string

const (
	PurposeEmailVerification CodePurpose = "email_verification"
	PurposePasswordReset     CodePurpose = "password_reset"
)
