// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"fmt"
	"strings"
	"unicode"
)

// commonPasswords is a short deny list of passwords seen in every breach.
var commonPasswords = map[string]struct{}{
	"password1234": {}, "123456789012": {}, "qwertyuiop12": {}, "iloveyou1234": {},
	"passwordpassword": {}, "letmein12345": {}, "administrator": {}, "welcome12345": {},
}

// PasswordValidator checks new passwords.
type PasswordValidator struct {
	MinLength int
}

// DefaultPasswordValidator requires twelve characters.
func DefaultPasswordValidator() *PasswordValidator {
	return &PasswordValidator{MinLength: 12}
}

// PasswordError lists why a password was rejected.
type PasswordError struct {
	Reasons []string
}

func (e *PasswordError) Error() string {
	if len(e.Reasons) == 0 {
		return "password does not meet requirements"
	}
	return e.Reasons[0]
}

// Validate returns a *PasswordError when password is unacceptable. Personal
// attributes such as the email or name must not be contained in it.
func (v *PasswordValidator) Validate(password string, attributes ...string) error {
	var reasons []string

	if len([]rune(password)) < v.MinLength {
		reasons = append(reasons, fmt.Sprintf("Password must be at least %d characters long.", v.MinLength))
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		reasons = append(reasons, "Password cannot be entirely numeric.")
	}

	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		reasons = append(reasons, "This password is too common.")
	}
	for _, attr := range attributes {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if local, _, ok := strings.Cut(attr, "@"); ok {
			attr = local
		}
		if len(attr) >= 4 && strings.Contains(lower, attr) {
			reasons = append(reasons, "Password is too similar to your personal information.")
			break
		}
	}

	if len(reasons) > 0 {
		return &PasswordError{Reasons: reasons}
	}
	return nil
}
