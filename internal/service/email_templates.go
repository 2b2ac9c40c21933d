package service

import (
	"fmt"
	"time"

	"github.com/musayazlik/postify/internal/entity"
)

func VerificationCodeMail(to string, code string, ttl time.Duration) EmailMessage {
	minutes := int(ttl.Minutes())
	return EmailMessage{
		To:      to,
		Subject: "Email Verification Code",
		HTML: fmt.Sprintf(
			"<p>Your email verification code is:</p><h2>%s</h2><p>This code will expire in %d minutes.</p>",
			code, minutes,
		),
		Text: fmt.Sprintf(
			"Your email verification code is: %s\nThis code will expire in %d minutes.",
			code, minutes,
		),
	}
}

func PasswordResetCodeMail(to string, code string, ttl time.Duration) EmailMessage {
	minutes := int(ttl.Minutes())
	return EmailMessage{
		To:      to,
		Subject: "Password Reset Code",
		HTML: fmt.Sprintf(
			"<p>Your password reset code is:</p><h2>%s</h2><p>This code will expire in %d minutes.</p>"+
				"<p>If you didn't request a password reset, please ignore this email.</p>",
			code, minutes,
		),
		Text: fmt.Sprintf(
			"Your password reset code is: %s\nThis code will expire in %d minutes.\n"+
				"If you didn't request a password reset, please ignore this email.",
			code, minutes,
		),
	}
}

func mailForPurpose(purpose entity.CodePurpose, to string, code string, ttl time.Duration) (EmailMessage, error) {
	switch purpose {
	case entity.PurposeEmailVerification:
		return VerificationCodeMail(to, code, ttl), nil
	case entity.PurposePasswordReset:
		return PasswordResetCodeMail(to, code, ttl), nil
	default:
		return EmailMessage{}, fmt.Errorf("unknown code purpose %q", purpose)
	}
}
