package controller

import (
	"net/http"
	"time"

	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/labstack/echo/v4"
)

const refreshCookiePath = "/auth"

// refreshCookies keeps the refresh token in an httpOnly cookie so browser
// clients never have to store it in script-accessible storage.
type refreshCookies struct {
	name   string
	secure bool
}

func newRefreshCookies(cfg config.TokenConfig) refreshCookies {
	name := cfg.RefreshCookieName
	if name == "" {
		name = "refresh_token"
	}
	return refreshCookies{name: name, secure: cfg.RefreshCookieSecure}
}

func (r refreshCookies) set(ctx echo.Context, value string, expiresAt time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     r.name,
		Value:    value,
		Path:     refreshCookiePath,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r refreshCookies) clear(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     r.name,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// read returns the body value when present, the cookie otherwise.
func (r refreshCookies) read(ctx echo.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	cookie, err := ctx.Cookie(r.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
