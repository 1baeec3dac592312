package service

import (
	"strings"
	"unicode"
)

// NormalizeEmail lowercases and trims an email address before lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// usernameBase derives a username candidate from the local part of an email.
// Characters outside letters, digits and ".-_+" are dropped.
func usernameBase(email string) string {
	local := email
	if idx := strings.Index(email, "@"); idx != -1 {
		local = email[:idx]
	}

	var b strings.Builder
	for _, ch := range strings.ToLower(local) {
		switch {
		case unicode.IsLetter(ch), unicode.IsDigit(ch), strings.ContainsRune(".-_+", ch):
			b.WriteRune(ch)
		}
	}

	base := b.String()
	if base == "" {
		base = "user"
	}
	if runes := []rune(base); len(runes) > maxUsernameBaseLength {
		base = string(runes[:maxUsernameBaseLength])
	}
	return base
}
