package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/musayazlik/postify/api/middleware"
	"github.com/musayazlik/postify/internal/dto"
	"github.com/musayazlik/postify/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

var errInvalidBody = errors.New("invalid request body")

type AuthHandler struct {
	Service   *service.AuthService
	Validator *RequestValidator
	Logger    logrus.FieldLogger
}

func NewAuthHandler(svc *service.AuthService, validator *RequestValidator, logger logrus.FieldLogger) *AuthHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthHandler{
		Service:   svc,
		Validator: validator,
		Logger:    logger,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, errInvalidBody.Error())
	}
	if err := h.Validator.Validate(req); err != nil {
		return h.writeServiceError(c, err)
	}
	result, err := h.Service.Register(c.Request().Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.AuthResponse{
		Status:  "success",
		Message: "User registered successfully. Please check your email for verification code.",
		Token:   result.Token,
		User:    dto.UserResponseFromEntity(result.User),
	})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeUnauthenticated(c)
	}
	var req dto.VerifyEmailRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, errInvalidBody.Error())
	}
	if err := h.Validator.Validate(req); err != nil {
		return h.writeServiceError(c, err)
	}
	if err := h.Service.VerifyEmail(c.Request().Context(), userID, req.Code, requestMeta(c)); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.Success("Email verified successfully"))
}

func (h *AuthHandler) ResendVerificationCode(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeUnauthenticated(c)
	}
	if err := h.Service.ResendVerificationCode(c.Request().Context(), userID, requestMeta(c)); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.Success("Verification code sent successfully"))
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req dto.ForgotPasswordRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, errInvalidBody.Error())
	}
	if err := h.Validator.Validate(req); err != nil {
		return h.writeServiceError(c, err)
	}
	if err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email, requestMeta(c)); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.Success("Password reset code sent successfully"))
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req dto.ResetPasswordRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, errInvalidBody.Error())
	}
	if err := h.Validator.Validate(req); err != nil {
		return h.writeServiceError(c, err)
	}
	err := h.Service.ResetPassword(c.Request().Context(), service.ResetPasswordInput{
		Email:    req.Email,
		Code:     req.Code,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.Success("Password reset successfully"))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, errInvalidBody.Error())
	}
	if err := h.Validator.Validate(req); err != nil {
		return h.writeServiceError(c, err)
	}
	result, err := h.Service.Login(c.Request().Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AuthResponse{
		Status:  "success",
		Message: "Login successful",
		Token:   result.Token,
		User:    dto.UserResponseFromEntity(result.User),
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeUnauthenticated(c)
	}
	sessionID, ok := middleware.SessionIDFromContext(c)
	if !ok {
		return writeUnauthenticated(c)
	}
	if err := h.Service.Logout(c.Request().Context(), userID, sessionID, requestMeta(c)); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.Success("Logged out successfully"))
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeUnauthenticated(c)
	}
	user, err := h.Service.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *AuthHandler) writeServiceError(c echo.Context, err error) error {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusUnprocessableEntity, dto.ValidationErrorResponse{
			Status:  "error",
			Message: "Validation failed",
			Errors:  validationErr.Fields,
		})
	case errors.Is(err, service.ErrInvalidInput):
		return writeError(c, http.StatusUnprocessableEntity, "Validation failed")
	case errors.Is(err, service.ErrInvalidCode):
		return writeError(c, http.StatusBadRequest, "Invalid or expired verification code")
	case errors.Is(err, service.ErrEmailAlreadyVerified):
		return writeError(c, http.StatusBadRequest, "Email already verified")
	case errors.Is(err, service.ErrInvalidCredentials):
		return writeError(c, http.StatusUnauthorized, "Invalid login credentials")
	case errors.Is(err, service.ErrInvalidToken):
		return writeUnauthenticated(c)
	case errors.Is(err, service.ErrUserNotFound):
		return writeError(c, http.StatusNotFound, "User not found")
	}

	h.Logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"uri":    c.Request().RequestURI,
	}).Error("unhandled service error")
	return writeError(c, http.StatusInternalServerError, "internal server error")
}

// decodeJSON leaves target zero-valued for an empty body so the validator
// reports the missing fields. Unknown fields are ignored.
func decodeJSON(c echo.Context, target any) error {
	err := json.NewDecoder(c.Request().Body).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, dto.Failure(message))
}

func writeUnauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
}

func requestMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: stringPtr(c.Request().UserAgent()),
	}
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
