package service

import (
	"time"

	"github.com/musayazlik/postify/internal/utils"

	"github.com/google/uuid"
)

type JWTAccessIssuer struct {
	Manager *utils.JWTManager
}

func (j JWTAccessIssuer) IssueAccessToken(userID uuid.UUID, sessionID uuid.UUID, issuedAt time.Time) (string, time.Time, error) {
	if j.Manager == nil {
		return "", time.Time{}, ErrInvalidToken
	}
	return j.Manager.IssueAccessToken(userID.String(), sessionID.String(), issuedAt)
}
