package accountflow

import (
	"errors"
	"fmt"
)

// ValidationKind enumerates the closed set of form validation failures.
type ValidationKind uint8

const (
	// ValidationEmptyFields reports a required field that is empty or whitespace-only.
	ValidationEmptyFields ValidationKind = iota + 1
	// ValidationBadlyFormattedEmail reports an email that does not match local-part@domain.tld.
	ValidationBadlyFormattedEmail
	// ValidationWeakPassword reports a password shorter than 7 characters or missing an uppercase letter or digit.
	ValidationWeakPassword
	// ValidationPasswordsNotEqual reports a confirmation that differs from the password.
	ValidationPasswordsNotEqual
)

// Code returns the stable machine-readable code for k.
func (k ValidationKind) Code() string {
	switch k {
	case ValidationEmptyFields:
		return "empty_fields"
	case ValidationBadlyFormattedEmail:
		return "badly_formatted_email"
	case ValidationWeakPassword:
		return "weak_password"
	case ValidationPasswordsNotEqual:
		return "passwords_not_equal"
	default:
		return "unknown"
	}
}

// AuthKind enumerates the closed set of AuthGateway failures.
type AuthKind uint8

const (
	// AuthInvalidCredentials covers rejected credentials, duplicate registration
	// and unknown accounts. Providers do not distinguish these cases.
	AuthInvalidCredentials AuthKind = iota + 1
	// AuthNetwork reports a connectivity failure reaching the identity backend.
	AuthNetwork
	// AuthDefault covers every other identity backend failure.
	AuthDefault
)

// Code returns the stable machine-readable code for k.
func (k AuthKind) Code() string {
	switch k {
	case AuthInvalidCredentials:
		return "invalid_credentials"
	case AuthNetwork:
		return "network_error"
	case AuthDefault:
		return "auth_default_error"
	default:
		return "unknown"
	}
}

// PersistenceKind enumerates the closed set of ProfileStore failures.
type PersistenceKind uint8

const (
	// PersistenceDocumentNotFound reports that no profile exists for the identity.
	PersistenceDocumentNotFound PersistenceKind = iota + 1
	// PersistenceInvalidUserData reports a payload rejected by, or undecodable from, the store schema.
	PersistenceInvalidUserData
	// PersistenceDefault covers every other profile store failure.
	PersistenceDefault
)

// Code returns the stable machine-readable code for k.
func (k PersistenceKind) Code() string {
	switch k {
	case PersistenceDocumentNotFound:
		return "document_not_found"
	case PersistenceInvalidUserData:
		return "invalid_user_data"
	case PersistenceDefault:
		return "persistence_default_error"
	default:
		return "unknown"
	}
}

// ValidationError is produced synchronously by the form validator and never
// crosses a provider boundary.
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Kind.Code()
}

// Is matches any *ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// AuthError is produced only by an AuthGateway. Err carries the provider
// cause, if any, and is never part of the comparison.
type AuthError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Kind.Code()
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind.Code(), e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any *AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// PersistenceError is produced only by a ProfileStore.
type PersistenceError struct {
	Kind PersistenceKind
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "persistence: " + e.Kind.Code()
	}
	return fmt.Sprintf("persistence: %s: %v", e.Kind.Code(), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches any *PersistenceError of the same kind.
func (e *PersistenceError) Is(target error) bool {
	t, ok := target.(*PersistenceError)
	return ok && t.Kind == e.Kind
}

var (
	// ErrEmptyFields is the validation sentinel for empty or whitespace-only fields.
	ErrEmptyFields = &ValidationError{Kind: ValidationEmptyFields}
	// ErrBadlyFormattedEmail is the validation sentinel for malformed emails.
	ErrBadlyFormattedEmail = &ValidationError{Kind: ValidationBadlyFormattedEmail}
	// ErrWeakPassword is the validation sentinel for passwords failing the strength policy.
	ErrWeakPassword = &ValidationError{Kind: ValidationWeakPassword}
	// ErrPasswordsNotEqual is the validation sentinel for a mismatched confirmation.
	ErrPasswordsNotEqual = &ValidationError{Kind: ValidationPasswordsNotEqual}

	// ErrInvalidCredentials matches any AuthError of kind AuthInvalidCredentials.
	ErrInvalidCredentials = &AuthError{Kind: AuthInvalidCredentials}
	// ErrNetwork matches any AuthError of kind AuthNetwork.
	ErrNetwork = &AuthError{Kind: AuthNetwork}
	// ErrAuthDefault matches any AuthError of kind AuthDefault.
	ErrAuthDefault = &AuthError{Kind: AuthDefault}

	// ErrDocumentNotFound matches any PersistenceError of kind PersistenceDocumentNotFound.
	ErrDocumentNotFound = &PersistenceError{Kind: PersistenceDocumentNotFound}
	// ErrInvalidUserData matches any PersistenceError of kind PersistenceInvalidUserData.
	ErrInvalidUserData = &PersistenceError{Kind: PersistenceInvalidUserData}
	// ErrPersistenceDefault matches any PersistenceError of kind PersistenceDefault.
	ErrPersistenceDefault = &PersistenceError{Kind: PersistenceDefault}
)

// Submission acceptance errors. They are returned by Submit/Run and are
// never delivered as outputs.
var (
	ErrSubmissionInFlight    = errors.New("a submission is already in flight")
	ErrSubmissionRateLimited = errors.New("submission rate limited")
	ErrEngineClosed          = errors.New("engine closed")
	ErrEngineNotReady        = errors.New("engine not initialized")
	ErrSignOutUnsupported    = errors.New("auth gateway does not support sign out")
	ErrInvalidIdentityID     = errors.New("identity id must not be empty")
)

// NewAuthError builds an AuthError of kind k wrapping cause.
func NewAuthError(k AuthKind, cause error) *AuthError {
	return &AuthError{Kind: k, Err: cause}
}

// NewPersistenceError builds a PersistenceError of kind k wrapping cause.
func NewPersistenceError(k PersistenceKind, cause error) *PersistenceError {
	return &PersistenceError{Kind: k, Err: cause}
}

// AsAuthError normalizes any error returned by an AuthGateway into the
// closed auth taxonomy. Errors outside it become AuthDefault.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) && ae.Kind >= AuthInvalidCredentials && ae.Kind <= AuthDefault {
		return ae
	}
	// Cancellation is not a network failure; keep ctx.Err() reachable via errors.Is.
	return &AuthError{Kind: AuthDefault, Err: err}
}

// AsPersistenceError normalizes any error returned by a ProfileStore into
// the closed persistence taxonomy. Errors outside it become PersistenceDefault.
func AsPersistenceError(err error) *PersistenceError {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) && pe.Kind >= PersistenceDocumentNotFound && pe.Kind <= PersistenceDefault {
		return pe
	}
	return &PersistenceError{Kind: PersistenceDefault, Err: err}
}

// ErrorCode returns the machine code of any taxonomy error, or "" when err
// belongs to none of the three sets.
func ErrorCode(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind.Code()
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind.Code()
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Kind.Code()
	}
	return ""
}
