// Package email derives presentable first names from email addresses for
// members who skipped the name step during onboarding.
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail guesses a first name from the address local part, so
// "john.smith@example.com" becomes "John". Returns "" when nothing usable
// remains; callers apply their own fallback greeting.
func DeriveNameFromEmail(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return ""
	}

	return capitalize(parts[0])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
