package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/exoticlogicbuilder/auth-service/app/token"
	"github.com/exoticlogicbuilder/auth-service/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserRoles = "user_roles"
	ContextKeyTokenID   = "token_id"
)

type accessTokenVerifier interface {
	VerifyAccessToken(tokenString string) (*token.Claims, error)
}

type AuthMiddleware struct {
	authService accessTokenVerifier
}

func NewAuthMiddleware(authService accessTokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			logrus.Debug("Missing or malformed authorization header")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "missing or invalid authorization header"})
		}

		claims, err := m.authService.VerifyAccessToken(tokenString)
		if err != nil {
			logrus.WithError(err).Debug("Access token rejected")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: TokenRejection(err)})
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserRoles, claims.Roles)
		c.Set(ContextKeyTokenID, claims.ID)

		return next(c)
	}
}

// RequireRole must run after RequireAuth. Roles come from the access token,
// so a role granted after issuance applies from the next rotation.
func (m *AuthMiddleware) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles, _ := c.Get(ContextKeyUserRoles).([]string)
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}

			logrus.WithFields(logrus.Fields{
				"user_id": c.Get(ContextKeyUserID),
				"role":    role,
			}).Warn("Forbidden: missing role")
			return c.JSON(http.StatusForbidden, types.ErrorResponse{Error: "forbidden"})
		}
	}
}

// TokenRejection is the client-facing message for a failed access token
// verification. Expiry is reported apart so clients know to refresh.
func TokenRejection(err error) string {
	if errors.Is(err, token.ErrExpired) {
		return "token has expired"
	}
	return "invalid token"
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
