// Package notify delivers verification and password reset links to users.
package notify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/sirupsen/logrus"
)

const (
	tokenPlaceholder = "{token}"
	sendTimeout      = 10 * time.Second
)

// Message is one outbound link. Link embeds the raw secret and must not be
// logged.
type Message struct {
	UserID    uint64
	Email     string
	Name      string
	Link      string
	ExpiresAt time.Time
}

type Notifier interface {
	SendVerification(ctx context.Context, msg Message) error
	SendPasswordReset(ctx context.Context, msg Message) error
}

// LogNotifier records that a message would have been sent. It is the default
// when no mail transport is configured.
type LogNotifier struct{}

func (LogNotifier) SendVerification(_ context.Context, msg Message) error {
	logrus.WithFields(logrus.Fields{
		"user_id":    msg.UserID,
		"email":      msg.Email,
		"expires_at": msg.ExpiresAt,
	}).Info("Verification email queued")
	return nil
}

func (LogNotifier) SendPasswordReset(_ context.Context, msg Message) error {
	logrus.WithFields(logrus.Fields{
		"user_id":    msg.UserID,
		"email":      msg.Email,
		"expires_at": msg.ExpiresAt,
	}).Info("Password reset email queued")
	return nil
}

type AsyncRunner func(task func())

type DispatcherOption func(*Dispatcher)

func WithAsyncRunner(runner AsyncRunner) DispatcherOption {
	return func(d *Dispatcher) {
		if runner != nil {
			d.asyncRunner = runner
		}
	}
}

// Dispatcher renders links from the configured templates and hands them to a
// Notifier off the request path. Delivery failures are logged, never returned.
type Dispatcher struct {
	notifier       Notifier
	verifyTemplate string
	resetTemplate  string
	asyncRunner    AsyncRunner
}

func NewDispatcher(notifier Notifier, cfg config.TokenConfig, opts ...DispatcherOption) *Dispatcher {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	d := &Dispatcher{
		notifier:       notifier,
		verifyTemplate: cfg.VerifyLinkTemplate,
		resetTemplate:  cfg.ResetLinkTemplate,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Verification(user *entity.User, raw string, expiresAt time.Time) {
	msg := newMessage(user, RenderLink(d.verifyTemplate, raw), expiresAt)
	d.asyncRunner(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.notifier.SendVerification(ctx, msg); err != nil {
			logrus.WithError(err).WithField("user_id", msg.UserID).Error("failed to send verification email")
		}
	})
}

func (d *Dispatcher) PasswordReset(user *entity.User, raw string, expiresAt time.Time) {
	msg := newMessage(user, RenderLink(d.resetTemplate, raw), expiresAt)
	d.asyncRunner(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.notifier.SendPasswordReset(ctx, msg); err != nil {
			logrus.WithError(err).WithField("user_id", msg.UserID).Error("failed to send password reset email")
		}
	})
}

// RenderLink substitutes the query-escaped secret for every {token} in
// template. A template without the placeholder gets it appended as a token
// query parameter.
func RenderLink(template, raw string) string {
	escaped := url.QueryEscape(raw)
	if strings.Contains(template, tokenPlaceholder) {
		return strings.ReplaceAll(template, tokenPlaceholder, escaped)
	}

	sep := "?"
	if strings.Contains(template, "?") {
		sep = "&"
	}
	return template + sep + "token=" + escaped
}

func newMessage(user *entity.User, link string, expiresAt time.Time) Message {
	return Message{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Link:      link,
		ExpiresAt: expiresAt,
	}
}
