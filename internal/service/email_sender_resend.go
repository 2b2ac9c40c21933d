package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resendlabs/resend-go"
)

const defaultResendTimeout = 10 * time.Second

type ResendEmailSender struct {
	From    string
	Timeout time.Duration

	send func(request *resend.SendEmailRequest) error
}

func NewResendEmailSender(apiKey string, from string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendEmailSender{}
	}
	client := resend.NewClient(apiKey)
	return &ResendEmailSender{
		From: from,
		send: func(request *resend.SendEmailRequest) error {
			_, err := client.Emails.Send(request)
			return err
		},
	}
}

// Send gives up once ctx is done or Timeout elapses. The SDK call has no
// context parameter, so an abandoned request finishes in the background.
func (s *ResendEmailSender) Send(ctx context.Context, message EmailMessage) error {
	if s.send == nil {
		return errors.New("email sender not configured")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultResendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}

	request := &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{message.To},
		Subject: message.Subject,
		Html:    message.HTML,
		Text:    message.Text,
	}
	done := make(chan error, 1)
	go func() {
		done <- s.send(request)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("resend request abandoned: %w", ctx.Err())
	}
}
