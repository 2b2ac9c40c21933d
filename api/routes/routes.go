package routes

import (
	"github.com/musayazlik/postify/api/handler"
	"github.com/musayazlik/postify/api/middleware"

	"github.com/labstack/echo/v4"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	authMiddleware middleware.AuthMiddleware,
	authRate *middleware.RateLimiter,
	loginRate *middleware.RateLimiter,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		AuthMiddleware: authMiddleware,
		AuthRate:       authRate,
		LoginRate:      loginRate,
	}
}

func (r *Router) RegisterRoutes() {
	api := r.Echo.Group("/api")

	api.GET("/health", handler.Health)

	api.POST("/register", r.Auth.Register, r.AuthRate.Middleware())
	api.POST("/login", r.Auth.Login, r.LoginRate.Middleware())
	api.POST("/forgot-password", r.Auth.ForgotPassword, r.LoginRate.Middleware())
	api.POST("/reset-password", r.Auth.ResetPassword, r.AuthRate.Middleware())

	protected := api.Group("", r.AuthMiddleware.RequireAuth)
	protected.POST("/verify-email", r.Auth.VerifyEmail, r.AuthRate.Middleware())
	protected.POST("/resend-verification-code", r.Auth.ResendVerificationCode, r.AuthRate.Middleware())
	protected.POST("/logout", r.Auth.Logout)
	protected.GET("/user", r.Auth.Me)
}
