package routes

import (
	"net/http"

	"github.com/AhmadIb227/syria-gpt/api/handler"
	"github.com/AhmadIb227/syria-gpt/api/middleware"

	"github.com/labstack/echo/v4"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	AuthMiddleware middleware.AuthMiddleware
	Metrics        http.Handler
}

func NewRouter(e *echo.Echo, authHandler *handler.AuthHandler, authMiddleware middleware.AuthMiddleware, metrics http.Handler) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	requireAuth := r.AuthMiddleware.RequireAuth

	auth := e.Group("/auth")
	auth.POST("/register", r.Auth.Register)
	auth.POST("/verify-email", r.Auth.VerifyEmail)
	auth.POST("/verify-email/resend", r.Auth.ResendVerification)
	auth.POST("/login", r.Auth.Login)
	auth.POST("/login/2fa", r.Auth.LoginTwoFactor)
	auth.POST("/refresh", r.Auth.Refresh)
	auth.POST("/logout", r.Auth.Logout, requireAuth)
	auth.POST("/logout-all", r.Auth.LogoutAll, requireAuth)

	auth.POST("/password/forgot", r.Auth.PasswordForgot)
	auth.POST("/password/reset", r.Auth.PasswordReset)
	auth.POST("/password/change", r.Auth.PasswordChange, requireAuth)

	auth.POST("/2fa/email/enable", r.Auth.EnableEmailTwoFactor, requireAuth)
	auth.POST("/2fa/totp/enroll", r.Auth.EnrollTOTP, requireAuth)
	auth.POST("/2fa/totp/confirm", r.Auth.ConfirmTOTP, requireAuth)
	auth.POST("/2fa/challenge", r.Auth.TwoFactorChallenge, requireAuth)
	auth.POST("/2fa/disable", r.Auth.DisableTwoFactor, requireAuth)

	auth.GET("/oauth/:provider/url", r.Auth.OAuthURL)
	auth.GET("/oauth/:provider/callback", r.Auth.OAuthCallback)
	auth.DELETE("/oauth/:provider", r.Auth.OAuthUnlink, requireAuth)

	e.GET("/me", r.Auth.Me, requireAuth)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}
}
