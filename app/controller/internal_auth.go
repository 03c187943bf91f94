package controller

import (
	"net/http"

	"github.com/exoticlogicbuilder/auth-service/app/middleware"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// InternalAuthController serves other services. Routes are guarded by
// APIKeyMiddleware.
type InternalAuthController struct {
	authService *service.AuthService
}

func NewInternalAuthController(authService *service.AuthService) *InternalAuthController {
	return &InternalAuthController{authService: authService}
}

func (c *InternalAuthController) VerifyToken(ctx echo.Context) error {
	req, err := types.NewInternalVerifyTokenRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind internal verify token request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	caller, _ := ctx.Get(middleware.ContextKeyCallerService).(string)
	claims, err := c.authService.VerifyAccessToken(req.Token)
	if err != nil {
		logrus.WithError(err).WithField("caller_service", caller).Debug("Internal verify token rejected")
		return ctx.JSON(http.StatusUnauthorized, types.NewRejectedTokenResponse(err))
	}

	logrus.WithFields(logrus.Fields{
		"caller_service": caller,
		"user_id":        claims.UserID,
	}).Debug("Internal verify token succeeded")
	return ctx.JSON(http.StatusOK, types.NewValidateTokenResponse(claims))
}
