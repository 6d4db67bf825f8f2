package messages

import (
	"errors"

	"github.com/MrEthical07/accountflow"
)

const (
	EmptyFields         = "All fields must be filled."
	BadlyFormattedEmail = "Badly formatted email, please provide a correct one."
	WeakPassword        = "Your password is too weak. It must be:\n - At least 7 characters long\n - At least one uppercase letter\n - At least one number"
	PasswordsNotEqual   = "Passwords must be equal."

	InvalidCredentials = "Incorrect email or password."
	Network            = "Please verify your network."
	AuthDefault        = "An error occurred."

	DocumentNotFound   = "Document not found."
	InvalidUserData    = "The user data are invalid."
	PersistenceDefault = "Something went wrong."

	InFlight    = "Please wait for the current request to finish."
	RateLimited = "Too many attempts, please try again shortly."
	Unavailable = "The service is unavailable."
)

var validation = map[accountflow.ValidationKind]string{
	accountflow.ValidationEmptyFields:         EmptyFields,
	accountflow.ValidationBadlyFormattedEmail: BadlyFormattedEmail,
	accountflow.ValidationWeakPassword:        WeakPassword,
	accountflow.ValidationPasswordsNotEqual:   PasswordsNotEqual,
}

var auth = map[accountflow.AuthKind]string{
	accountflow.AuthInvalidCredentials: InvalidCredentials,
	accountflow.AuthNetwork:            Network,
	accountflow.AuthDefault:            AuthDefault,
}

var persistence = map[accountflow.PersistenceKind]string{
	accountflow.PersistenceDocumentNotFound: DocumentNotFound,
	accountflow.PersistenceInvalidUserData:  InvalidUserData,
	accountflow.PersistenceDefault:          PersistenceDefault,
}

// Text returns the user-facing message for err. A nil error yields "".
// Errors outside the accountflow taxonomy fall back to AuthDefault.
func Text(err error) string {
	if err == nil {
		return ""
	}

	var ve *accountflow.ValidationError
	if errors.As(err, &ve) {
		if s, ok := validation[ve.Kind]; ok {
			return s
		}
	}
	var ae *accountflow.AuthError
	if errors.As(err, &ae) {
		if s, ok := auth[ae.Kind]; ok {
			return s
		}
	}
	var pe *accountflow.PersistenceError
	if errors.As(err, &pe) {
		if s, ok := persistence[pe.Kind]; ok {
			return s
		}
	}

	switch {
	case errors.Is(err, accountflow.ErrSubmissionInFlight):
		return InFlight
	case errors.Is(err, accountflow.ErrSubmissionRateLimited):
		return RateLimited
	case errors.Is(err, accountflow.ErrEngineClosed), errors.Is(err, accountflow.ErrEngineNotReady):
		return Unavailable
	}
	return AuthDefault
}
