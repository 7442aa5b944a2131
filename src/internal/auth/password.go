package auth

import (
	"strings"
	"unicode"

	apperrors "github.com/bookhive/bookhive/src/internal/errors"
)

const passwordSpecials = "!@#$%^&*(),.?\":{}|<>_-=+[]\\/;'`~"

// ValidatePassword enforces the account password policy: 8-72 characters
// with at least one uppercase letter, lowercase letter, digit and special
// character. The registration endpoint and the admin CLI share it.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return apperrors.BadRequest("Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return apperrors.BadRequest("Password must be at most 72 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return apperrors.BadRequest("Password must contain at least one uppercase letter")
	case !hasLower:
		return apperrors.BadRequest("Password must contain at least one lowercase letter")
	case !hasDigit:
		return apperrors.BadRequest("Password must contain at least one digit (0-9)")
	case !hasSpecial:
		return apperrors.BadRequest("Password must contain at least one special character (!@#$%^&*(),.?\":{}|<>_-=+[]\\/;'`~)")
	}
	return nil
}
