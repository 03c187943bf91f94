package cmd

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/controller"
	"github.com/exoticlogicbuilder/auth-service/app/database"
	authgrpc "github.com/exoticlogicbuilder/auth-service/app/grpc"
	"github.com/exoticlogicbuilder/auth-service/app/middleware"
	"github.com/exoticlogicbuilder/auth-service/app/notify"
	"github.com/exoticlogicbuilder/auth-service/app/repository"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start both HTTP (Echo) and gRPC servers for the authentication service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		results, err := database.Migrate(ctx, db, cfg.Database.Driver)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}
		logrus.WithField("applied", len(results)).Info("Database migrations applied")
	}

	dispatcher := notify.NewDispatcher(notify.LogNotifier{}, cfg.Tokens)
	authService := service.NewAuthService(db, cfg, service.WithDispatcher(dispatcher))
	internalAuthService := service.NewInternalAuthService(repository.NewInternalAPIKeyRepository(db))

	e := newHTTPServer(cfg, db, authService, internalAuthService)
	grpcServer, healthServer := authgrpc.NewServer(authgrpc.NewAuthServer(authService, cfg), internalAuthService)

	errCh := make(chan error, 2)
	go func() { errCh <- startGRPCServer(cfg, grpcServer) }()
	go func() { errCh <- startHTTPServer(cfg, e) }()

	select {
	case <-ctx.Done():
		logrus.Info("Shutdown signal received")
	case err := <-errCh:
		logrus.WithError(err).Error("Server stopped unexpectedly")
	}

	shutdown(e, grpcServer, healthServer)
}

func newHTTPServer(cfg *config.Config, db *sql.DB, authService *service.AuthService, internalAuthService service.InternalAuthService) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, middleware.HeaderAPIKey},
		AllowCredentials: false,
	}))
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.BodyLimit("1M"))

	controller.RegisterRoutes(e, controller.Routes{
		UserAuth:     controller.NewUserAuthController(authService, cfg),
		InternalAuth: controller.NewInternalAuthController(authService),
		Health:       controller.NewHealthController(db),
		Auth:         middleware.NewAuthMiddleware(authService),
		APIKey:       middleware.NewAPIKeyMiddleware(internalAuthService),
	})

	return e
}

func startHTTPServer(cfg *config.Config, e *echo.Echo) error {
	httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func startGRPCServer(cfg *config.Config, grpcServer *grpc.Server) error {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return err
	}

	logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
	return grpcServer.Serve(lis)
}

func shutdown(e *echo.Echo, grpcServer *grpc.Server, healthServer *health.Server) {
	healthServer.SetServingStatus(authgrpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown failed")
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
	}

	logrus.Info("Servers stopped")
}
