package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExpired        = errors.New("token has expired")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrAccountNotConfirmed = errors.New("account not confirmed")
	ErrUserNotFound        = errors.New("user not found")
	ErrPasswordMismatch    = errors.New("old password is incorrect")
)
