package dto

import (
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
)

type RegisterResult struct {
	User              *entity.User
	VerificationToken string
}

// SessionResult carries the raw credentials of a freshly issued session.
type SessionResult struct {
	UserID                uint64
	Roles                 []string
	AccessToken           string
	AccessTokenID         string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// EmailTokenResult holds a raw email token and its recipient. Both are zero
// when the address is unknown so callers cannot tell the cases apart.
type EmailTokenResult struct {
	User      *entity.User
	Token     string
	ExpiresAt time.Time
}

type InternalAccessResult struct {
	ServiceName string
}

type PurgeResult struct {
	RefreshTokens int64
	EmailTokens   int64
}
