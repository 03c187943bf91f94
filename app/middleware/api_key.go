package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	HeaderAPIKey            = "X-API-Key"
	ContextKeyCallerService = "caller_service"
)

// APIKeyMiddleware guards routes reserved for other services.
type APIKeyMiddleware struct {
	authService service.InternalAuthService
}

func NewAPIKeyMiddleware(authService service.InternalAuthService) *APIKeyMiddleware {
	return &APIKeyMiddleware{authService: authService}
}

func (m *APIKeyMiddleware) RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Let CORS preflight pass.
		if c.Request().Method == http.MethodOptions {
			return next(c)
		}

		apiKey := strings.TrimSpace(c.Request().Header.Get(HeaderAPIKey))
		if apiKey == "" {
			logrus.Debug("Missing x-api-key header")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
		}

		result, err := m.authService.ValidateInternalAPIKey(c.Request().Context(), apiKey)
		if err != nil {
			if errors.Is(err, service.ErrInvalidInternalAPIKey) {
				logrus.Debug("Invalid x-api-key header")
				return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
			}
			logrus.WithError(err).Error("API key validation failed")
			return c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
		}

		logrus.WithFields(logrus.Fields{
			"caller_service": result.ServiceName,
			"path":           c.Path(),
		}).Debug("Internal caller authenticated")

		c.Set(ContextKeyCallerService, result.ServiceName)
		return next(c)
	}
}
