package controller

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const healthPingTimeout = 2 * time.Second

type HealthController struct {
	db *sql.DB
}

func NewHealthController(db *sql.DB) *HealthController {
	return &HealthController{db: db}
}

func (c *HealthController) Healthz(ctx echo.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthPingTimeout)
	defer cancel()

	if err := c.db.PingContext(pingCtx); err != nil {
		logrus.WithError(err).Warn("Health check failed: database unreachable")
		return ctx.JSON(http.StatusServiceUnavailable, &types.HealthResponse{Status: "unavailable"})
	}
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}
