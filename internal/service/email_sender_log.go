package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogEmailSender writes outgoing mail to the log instead of delivering it.
// Used for local development.
type LogEmailSender struct {
	Logger logrus.FieldLogger
}

func (s LogEmailSender) Send(_ context.Context, message EmailMessage) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.WithFields(logrus.Fields{
		"to":      message.To,
		"subject": message.Subject,
	}).Info(message.Text)
	return nil
}
