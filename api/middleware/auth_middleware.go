package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/musayazlik/postify/internal/entity"
	"github.com/musayazlik/postify/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SessionAuthenticator interface {
	Authenticate(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*entity.Session, error)
}

// AuthMiddleware accepts a bearer token only while the session it names is
// still active, so logging out invalidates the token immediately.
type AuthMiddleware struct {
	JWT      *utils.JWTManager
	Sessions SessionAuthenticator
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.JWT == nil || m.Sessions == nil {
			return unauthenticated()
		}
		token := extractBearerToken(c.Request())
		if token == "" {
			return unauthenticated()
		}
		claims, err := m.JWT.ParseAccessToken(token)
		if err != nil {
			return unauthenticated()
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return unauthenticated()
		}
		sessionID, err := uuid.Parse(claims.SessionID)
		if err != nil {
			return unauthenticated()
		}
		if _, err := m.Sessions.Authenticate(c.Request().Context(), userID, sessionID); err != nil {
			return unauthenticated()
		}
		SetAuthContext(c, userID, sessionID)
		return next(c)
	}
}

func unauthenticated() error {
	return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated.")
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
