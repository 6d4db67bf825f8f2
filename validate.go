package accountflow

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minPasswordLength = 7

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,64}$`)

// ValidateAccountForm checks an account-creation field set. Checks run in a
// fixed order and stop at the first failure:
//
//  1. every field is non-blank, else ErrEmptyFields
//  2. the email is local-part@domain.tld, else ErrBadlyFormattedEmail
//  3. the password has at least 7 characters, an uppercase letter and a digit, else ErrWeakPassword
//  4. the confirmation equals the password, else ErrPasswordsNotEqual
//
// The returned error is always a *ValidationError.
func ValidateAccountForm(lastname, firstname, email, password, confirmPassword string) error {
	if isBlank(lastname) || isBlank(firstname) || isBlank(email) || isBlank(password) || isBlank(confirmPassword) {
		return ErrEmptyFields
	}
	if !IsValidEmail(email) {
		return ErrBadlyFormattedEmail
	}
	if !IsStrongPassword(password) {
		return ErrWeakPassword
	}
	if password != confirmPassword {
		return ErrPasswordsNotEqual
	}
	return nil
}

// ValidateLoginForm checks a sign-in field set: ErrEmptyFields first, then
// ErrBadlyFormattedEmail. Password strength is not checked at sign-in.
func ValidateLoginForm(email, password string) error {
	if isBlank(email) || isBlank(password) {
		return ErrEmptyFields
	}
	if !IsValidEmail(email) {
		return ErrBadlyFormattedEmail
	}
	return nil
}

// IsValidEmail reports whether email matches the accepted address shape.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsStrongPassword reports whether password satisfies the creation policy.
func IsStrongPassword(password string) bool {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return false
	}
	var upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return upper && digit
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validateAccount(f AccountForm) error {
	return ValidateAccountForm(f.Lastname, f.Firstname, f.Email, f.Password, f.ConfirmPassword)
}

func validateLogin(f LoginForm) error {
	return ValidateLoginForm(f.Email, f.Password)
}
