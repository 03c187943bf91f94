package controller

import (
	"errors"
	"net/http"

	"github.com/exoticlogicbuilder/auth-service/app/middleware"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/app/types"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	resendVerificationMessage = "if the account exists and is not verified, a verification email has been sent"
	forgotPasswordMessage     = "if the email exists, a password reset email has been sent"
)

type UserAuthController struct {
	authService   *service.AuthService
	cookies       refreshCookies
	exposeSecrets bool
}

func NewUserAuthController(authService *service.AuthService, cfg *config.Config) *UserAuthController {
	return &UserAuthController{
		authService:   authService,
		cookies:       newRefreshCookies(cfg.Tokens),
		exposeSecrets: cfg.Tokens.ExposeSecrets,
	}
}

func (c *UserAuthController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	result, err := c.authService.RegisterUser(ctx.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			logrus.WithField("email", req.Email).Warn("Register failed: email already registered")
			return ctx.JSON(http.StatusConflict, types.ErrorResponse{Error: "email already registered"})
		}
		if errors.Is(err, service.ErrValidation) {
			logrus.WithField("email", req.Email).Debug("Register failed: invalid input")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": result.User.ID,
		"email":   result.User.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, types.NewRegisterResponse(result, c.exposeSecrets))
}

func (c *UserAuthController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	session, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrValidation) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid credentials"})
		}
		if errors.Is(err, service.ErrAccountNotConfirmed) {
			logrus.WithField("email", req.Email).Warn("Login failed: account not confirmed")
			return ctx.JSON(http.StatusForbidden, types.ErrorResponse{Error: "account not confirmed"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	c.cookies.set(ctx, session.RefreshToken, session.RefreshTokenExpiresAt)
	logrus.WithField("user_id", session.UserID).Info("Login successful")
	return ctx.JSON(http.StatusOK, types.NewSessionResponse(session))
}

func (c *UserAuthController) RefreshToken(ctx echo.Context) error {
	req, err := types.NewRefreshTokenRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind refresh token request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	req.RefreshToken = c.cookies.read(ctx, req.RefreshToken)
	if err = req.Validate(); err != nil {
		logrus.Debug("Refresh token validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	session, err := c.authService.RotateRefreshToken(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			logrus.Warn("Refresh token failed: invalid or expired token")
			c.cookies.clear(ctx)
			return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid refresh token"})
		}
		logrus.WithError(err).Error("Refresh token failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	c.cookies.set(ctx, session.RefreshToken, session.RefreshTokenExpiresAt)
	logrus.WithField("user_id", session.UserID).Info("Refresh token rotated")
	return ctx.JSON(http.StatusOK, types.NewSessionResponse(session))
}

// Logout always succeeds so a client can discard its state even when the
// token was already gone.
func (c *UserAuthController) Logout(ctx echo.Context) error {
	req, err := types.NewLogoutRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind logout request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	raw := c.cookies.read(ctx, req.RefreshToken)
	if raw != "" {
		revoked, err := c.authService.RevokeRefreshToken(ctx.Request().Context(), raw)
		if err != nil {
			logrus.WithError(err).Error("Logout failed")
			return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
		}
		logrus.WithField("revoked", revoked).Info("Logout request processed")
	}

	c.cookies.clear(ctx)
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "logged out successfully"})
}

func (c *UserAuthController) LogoutAll(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uint64)
	if !ok {
		logrus.Warn("Logout all failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
	}

	revoked, err := c.authService.RevokeAllSessions(ctx.Request().Context(), userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Logout all failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"revoked": revoked,
	}).Info("All sessions revoked")

	c.cookies.clear(ctx)
	return ctx.JSON(http.StatusOK, &types.LogoutAllResponse{RevokedSessions: revoked})
}

func (c *UserAuthController) VerifyEmail(ctx echo.Context) error {
	req, err := types.NewVerifyEmailRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind verify email request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Verify email validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	err = c.authService.VerifyEmailToken(ctx.Request().Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			logrus.Warn("Verify email failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid token"})
		}
		if errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Verify email failed: token expired")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "token has expired"})
		}
		logrus.WithError(err).Error("Verify email failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Email verified")
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "email verified successfully"})
}

func (c *UserAuthController) ResendVerification(ctx echo.Context) error {
	req, err := types.NewResendVerificationRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind resend verification request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Resend verification validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Verification resend requested")
	result, err := c.authService.ResendVerification(ctx.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Resend verification failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, types.NewEmailTokenResponse(resendVerificationMessage, result, c.exposeSecrets))
}

func (c *UserAuthController) ForgotPassword(ctx echo.Context) error {
	req, err := types.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Forgot password validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Password reset requested")
	result, err := c.authService.RequestPasswordReset(ctx.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Request password reset failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, types.NewEmailTokenResponse(forgotPasswordMessage, result, c.exposeSecrets))
}

func (c *UserAuthController) ResetPassword(ctx echo.Context) error {
	req, err := types.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Reset password validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.Info("Reset password request received")
	err = c.authService.ResetPassword(ctx.Request().Context(), req.Token, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			logrus.Warn("Reset password failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid token"})
		}
		if errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Reset password failed: token expired")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "token has expired"})
		}
		if errors.Is(err, service.ErrValidation) {
			logrus.Warn("Reset password failed: weak password")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).Error("Reset password failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "password reset successfully"})
}

func (c *UserAuthController) ValidateToken(ctx echo.Context) error {
	req, err := types.NewValidateTokenRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind validate token request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Validate token failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	claims, err := c.authService.VerifyAccessToken(req.AccessToken)
	if err != nil {
		logrus.WithError(err).Debug("Validate token rejected")
		return ctx.JSON(http.StatusOK, types.NewRejectedTokenResponse(err))
	}

	logrus.WithField("user_id", claims.UserID).Debug("Validate token succeeded")
	return ctx.JSON(http.StatusOK, types.NewValidateTokenResponse(claims))
}

func (c *UserAuthController) Me(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uint64)
	if !ok {
		logrus.Warn("Me failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
	}

	user, err := c.authService.GetProfile(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("user_id", userID).Warn("Me failed: user not found")
			return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Me failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, types.NewUserResponse(user))
}

func (c *UserAuthController) ChangePassword(ctx echo.Context) error {
	req, err := types.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Change password validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uint64)
	if !ok {
		logrus.Warn("Change password failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
	}

	logrus.WithField("user_id", userID).Info("Change password request received")
	err = c.authService.ChangePassword(ctx.Request().Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("user_id", userID).Warn("Change password failed: user not found")
			return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "user not found"})
		}
		if errors.Is(err, service.ErrPasswordMismatch) {
			logrus.WithField("user_id", userID).Warn("Change password failed: old password mismatch")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "old password is incorrect"})
		}
		if errors.Is(err, service.ErrValidation) {
			logrus.WithField("user_id", userID).Warn("Change password failed: weak password")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Change password failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	c.cookies.clear(ctx)
	logrus.WithField("user_id", userID).Info("Password changed")
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "password changed successfully"})
}

func (c *UserAuthController) AdminPing(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "admin access granted"})
}
