package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/exoticlogicbuilder/auth-service/config"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// configureLogging applies LOG_LEVEL and LOG_FORMAT. With LOG_FILE set, output
// is also written to a daily rotated file and the plain path links to the
// current one.
func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Log.Level, err)
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", cfg.Log.Format)
	}

	if cfg.Log.File == "" {
		logrus.SetOutput(os.Stdout)
		return nil
	}

	writer, err := rotatelogs.New(
		cfg.Log.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.Log.File),
		rotatelogs.WithMaxAge(cfg.Log.MaxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, writer))
	return nil
}
