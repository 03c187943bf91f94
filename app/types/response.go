package types

import (
	"errors"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/dto"
	"github.com/exoticlogicbuilder/auth-service/app/entity"
	"github.com/exoticlogicbuilder/auth-service/app/token"
)

const TokenTypeBearer = "Bearer"

// Reasons reported by a rejected token validation.
const (
	TokenReasonExpired = "expired"
	TokenReasonInvalid = "invalid"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	ID            uint64    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"email_verified"`
	Roles         []string  `json:"roles"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewUserResponse(user *entity.User) *UserResponse {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
		Roles:         roles,
		CreatedAt:     user.CreatedAt,
	}
}

// RegisterResponse exposes the verification secret only when the server runs
// with EXPOSE_TOKEN_SECRETS, which is meant for local development and tests.
type RegisterResponse struct {
	User              *UserResponse `json:"user"`
	VerificationToken string        `json:"verification_token,omitempty"`
}

func NewRegisterResponse(res *dto.RegisterResult, exposeSecrets bool) *RegisterResponse {
	resp := &RegisterResponse{User: NewUserResponse(res.User)}
	if exposeSecrets {
		resp.VerificationToken = res.VerificationToken
	}
	return resp
}

type SessionResponse struct {
	TokenType             string    `json:"token_type"`
	AccessToken           string    `json:"access_token"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	UserID                uint64    `json:"user_id"`
	Roles                 []string  `json:"roles"`
}

func NewSessionResponse(session *dto.SessionResult) *SessionResponse {
	return &SessionResponse{
		TokenType:             TokenTypeBearer,
		AccessToken:           session.AccessToken,
		ExpiresAt:             session.AccessTokenExpiresAt,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.RefreshTokenExpiresAt,
		UserID:                session.UserID,
		Roles:                 session.Roles,
	}
}

// EmailTokenResponse answers resend and forgot requests identically for known
// and unknown addresses. Token is only set when secrets are exposed.
type EmailTokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

func NewEmailTokenResponse(message string, res *dto.EmailTokenResult, exposeSecrets bool) *EmailTokenResponse {
	resp := &EmailTokenResponse{Message: message}
	if exposeSecrets && res != nil {
		resp.Token = res.Token
	}
	return resp
}

type ValidateTokenResponse struct {
	Valid     bool       `json:"valid"`
	Reason    string     `json:"reason,omitempty"`
	UserID    uint64     `json:"user_id,omitempty"`
	Roles     []string   `json:"roles,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func NewValidateTokenResponse(claims *token.Claims) *ValidateTokenResponse {
	if claims == nil {
		return &ValidateTokenResponse{Valid: false}
	}
	resp := &ValidateTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Roles:  claims.Roles,
	}
	if claims.ExpiresAt != nil {
		expiresAt := claims.ExpiresAt.Time
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// NewRejectedTokenResponse reports why an access token failed verification,
// so clients can tell a token to refresh from one to discard.
func NewRejectedTokenResponse(err error) *ValidateTokenResponse {
	reason := TokenReasonInvalid
	if errors.Is(err, token.ErrExpired) {
		reason = TokenReasonExpired
	}
	return &ValidateTokenResponse{Valid: false, Reason: reason}
}

type LogoutAllResponse struct {
	RevokedSessions int64 `json:"revoked_sessions"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
