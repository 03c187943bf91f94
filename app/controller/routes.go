package controller

import (
	"net/http"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
	"github.com/exoticlogicbuilder/auth-service/app/middleware"

	"github.com/labstack/echo/v4"
)

type Routes struct {
	UserAuth     *UserAuthController
	InternalAuth *InternalAuthController
	Health       *HealthController
	Auth         *middleware.AuthMiddleware
	APIKey       *middleware.APIKeyMiddleware
}

func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/healthz", r.Health.Healthz)

	auth := e.Group("/auth")
	auth.POST("/register", r.UserAuth.Register)
	auth.POST("/login", r.UserAuth.Login)
	auth.POST("/refresh-token", r.UserAuth.RefreshToken)
	auth.POST("/logout", r.UserAuth.Logout)
	auth.Match([]string{http.MethodGet, http.MethodPost}, "/verify-email", r.UserAuth.VerifyEmail)
	auth.POST("/resend-verification", r.UserAuth.ResendVerification)
	auth.POST("/forgot-password", r.UserAuth.ForgotPassword)
	auth.POST("/reset-password", r.UserAuth.ResetPassword)
	auth.POST("/validate-token", r.UserAuth.ValidateToken)

	authProtected := auth.Group("")
	authProtected.Use(r.Auth.RequireAuth)
	authProtected.GET("/me", r.UserAuth.Me)
	authProtected.POST("/change-password", r.UserAuth.ChangePassword)
	authProtected.POST("/logout-all", r.UserAuth.LogoutAll)

	admin := authProtected.Group("/admin")
	admin.Use(r.Auth.RequireRole(entity.RoleAdmin))
	admin.GET("/ping", r.UserAuth.AdminPing)

	internal := auth.Group("/internal")
	internal.Use(r.APIKey.RequireAPIKey)
	internal.POST("/verify-token", r.InternalAuth.VerifyToken)
}
