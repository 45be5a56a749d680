package utils

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 100
)

func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}

// IsStrongPassword requires a digit, an upper and a lower case letter
// within the allowed length range.
func IsStrongPassword(s string) bool {
	if len(s) < PasswordMinLength || len(s) > PasswordMaxLength {
		return false
	}
	var digit, upper, lower bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	return digit && upper && lower
}
