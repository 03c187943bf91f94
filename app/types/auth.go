// Package types holds the request and response bodies shared by the HTTP and
// gRPC transports.
package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	var body RegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}

	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("email and password are required")
	}

	return nil
}

// RefreshTokenRequest carries a refresh token in the body. HTTP callers may
// send it as a cookie instead, so Validate is applied after the fallback.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func NewRefreshTokenRequestFromContext(ctx echo.Context) (*RefreshTokenRequest, error) {
	var body RefreshTokenRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RefreshTokenRequest) Validate() error {
	if strings.TrimSpace(r.RefreshToken) == "" {
		return errors.New("refresh_token is required")
	}

	return nil
}

// LogoutRequest has no Validate: logging out without a token is a no-op.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func NewLogoutRequestFromContext(ctx echo.Context) (*LogoutRequest, error) {
	var body LogoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

type VerifyEmailRequest struct {
	Token string `json:"token" query:"token"`
}

func NewVerifyEmailRequestFromContext(ctx echo.Context) (*VerifyEmailRequest, error) {
	var body VerifyEmailRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	if body.Token == "" {
		body.Token = ctx.QueryParam("token")
	}

	return &body, nil
}

func (r *VerifyEmailRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}

	return nil
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

func NewResendVerificationRequestFromContext(ctx echo.Context) (*ResendVerificationRequest, error) {
	var body ResendVerificationRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ResendVerificationRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}

	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func NewForgotPasswordRequestFromContext(ctx echo.Context) (*ForgotPasswordRequest, error) {
	var body ForgotPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ForgotPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}

	return nil
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" || r.NewPassword == "" {
		return errors.New("token and new_password are required")
	}

	return nil
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func NewChangePasswordRequestFromContext(ctx echo.Context) (*ChangePasswordRequest, error) {
	var body ChangePasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" || r.NewPassword == "" {
		return errors.New("old_password and new_password are required")
	}

	return nil
}

type ValidateTokenRequest struct {
	AccessToken string `json:"access_token"`
}

func NewValidateTokenRequestFromContext(ctx echo.Context) (*ValidateTokenRequest, error) {
	var body ValidateTokenRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ValidateTokenRequest) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return errors.New("access_token is required")
	}

	return nil
}

// InternalVerifyTokenRequest is sent by other services, authenticated by
// their API key, to check an access token presented to them.
type InternalVerifyTokenRequest struct {
	Token string `json:"token"`
}

func NewInternalVerifyTokenRequestFromContext(ctx echo.Context) (*InternalVerifyTokenRequest, error) {
	var body InternalVerifyTokenRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *InternalVerifyTokenRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}

	return nil
}

// Empty is the request of parameterless gRPC methods.
type Empty struct{}
