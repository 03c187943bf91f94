package service

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const maxEmailLength = 254

// CanonicalizeEmail normalizes an email address for uniqueness checks.
// For Gmail/Googlemail: strips dots from local part and removes +suffix.
// For all domains: lowercases the entire address.
func CanonicalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return email
	}

	local, domain := parts[0], parts[1]

	if domain == "gmail.com" || domain == "googlemail.com" {
		if idx := strings.Index(local, "+"); idx != -1 {
			local = local[:idx]
		}
		local = strings.ReplaceAll(local, ".", "")
	}

	return local + "@" + domain
}

// ValidateEmail wraps ErrValidation when email is empty or not shaped like
// local@domain.tld.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return nil
}
