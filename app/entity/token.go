package entity

import "time"

// TokenPurpose tags which workflow an opaque secret belongs to.
type TokenPurpose string

const (
	PurposeRefresh TokenPurpose = "refresh"
	PurposeVerify  TokenPurpose = "verify"
	PurposeReset   TokenPurpose = "reset"
)

func (p TokenPurpose) String() string {
	return string(p)
}

// IsEmail reports whether tokens of this purpose are stored as EmailToken rows.
func (p TokenPurpose) IsEmail() bool {
	return p == PurposeVerify || p == PurposeReset
}

func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeRefresh, PurposeVerify, PurposeReset:
		return true
	}
	return false
}

// RefreshToken is one link of a user's session chain. Rows are never updated
// except to flip Revoked from false to true, stamping RevokedAt.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	Revoked   bool
	RevokedAt time.Time // zero until revoked
	ExpiresAt time.Time
	CreatedAt time.Time
}

type EmailToken struct {
	ID        uint64
	UserID    uint64
	Purpose   TokenPurpose
	TokenHash string
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
