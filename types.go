package accountflow

import (
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// IdentityID is the opaque handle an AuthGateway returns for an identity.
// It is the join key between identity and profile records.
type IdentityID string

// Valid reports whether id is usable as a join key.
func (id IdentityID) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

func (id IdentityID) String() string { return string(id) }

// Gender is the profile gender. Values are the exact, case-sensitive strings
// of the persistence schema.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Valid reports whether g is one of the schema values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// ParseGender maps a schema string to a Gender. Matching is case-sensitive.
func ParseGender(s string) (Gender, bool) {
	g := Gender(s)
	return g, g.Valid()
}

// User is the persisted profile. All fields except ProfilePicture are fixed
// once the value is created; use WithProfilePicture to derive an updated copy.
type User struct {
	Lastname       string
	Firstname      string
	Email          string
	Birthdate      *time.Time
	Gender         Gender
	ProfilePicture *string
}

// WithProfilePicture returns a copy of u referencing ref as its picture.
func (u User) WithProfilePicture(ref string) User {
	out := u
	out.ProfilePicture = &ref
	if u.Birthdate != nil {
		b := *u.Birthdate
		out.Birthdate = &b
	}
	return out
}

// Validate applies the profile schema: non-empty names and a known gender.
// Stores call it before writes and map a failure to invalidUserData.
func (u User) Validate() error {
	if strings.TrimSpace(u.Lastname) == "" || strings.TrimSpace(u.Firstname) == "" {
		return errUserNameMissing
	}
	if !u.Gender.Valid() {
		return errUserGenderInvalid
	}
	return nil
}

// Credentials are held only for the duration of one submission. They format
// and log without the password.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) String() string {
	return "Credentials{Email:" + MaskEmail(c.Email) + ", Password:[redacted]}"
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("email", MaskEmail(c.Email))
	return nil
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// AccountForm is the account-creation submission.
type AccountForm struct {
	Lastname        string
	Firstname       string
	Email           string
	Password        string
	ConfirmPassword string
	Birthdate       *time.Time
	// Gender defaults to GenderMale when empty.
	Gender         Gender
	ProfilePicture *string
}

func (f AccountForm) credentials() Credentials {
	return Credentials{Email: f.Email, Password: f.Password}
}

// user builds the profile from validated fields.
func (f AccountForm) user() User {
	g := f.Gender
	if g == "" {
		g = GenderMale
	}
	u := User{
		Lastname:  f.Lastname,
		Firstname: f.Firstname,
		Email:     f.Email,
		Gender:    g,
	}
	if f.Birthdate != nil {
		b := *f.Birthdate
		u.Birthdate = &b
	}
	if f.ProfilePicture != nil {
		p := *f.ProfilePicture
		u.ProfilePicture = &p
	}
	return u
}

// LoginForm is the sign-in submission.
type LoginForm struct {
	Email    string
	Password string
}

func (f LoginForm) credentials() Credentials {
	return Credentials{Email: f.Email, Password: f.Password}
}

// Result is the terminal value of one submission: either a value or an
// error from exactly one of the three taxonomies.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Succeeded wraps a successful value.
func Succeeded[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failed wraps a taxonomy error.
func Failed[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// OK reports whether the result succeeded.
func (r Result[T]) OK() bool { return r.ok }

// Value returns the success value and whether it is set.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Err returns the failure, or nil for a success.
func (r Result[T]) Err() error { return r.err }

// Flow identifies which pipeline produced an Output.
type Flow string

const (
	FlowCreateAccount Flow = "create_account"
	FlowSignIn        Flow = "sign_in"
	FlowFetchProfile  Flow = "fetch_profile"
)

// Output is the single terminal event emitted for an accepted submission.
type Output struct {
	SubmissionID string
	Flow         Flow
	Result       Result[User]

	// IdentityID is set once the identity step succeeded, including when a
	// later step failed.
	IdentityID IdentityID
	// Orphaned is true when an identity was created but its profile was not
	// persisted. The identity is not rolled back.
	Orphaned bool
	// SessionEstablished is true when the provider session exists, even if
	// the profile fetch that followed failed.
	SessionEstablished bool

	CompletedAt time.Time
}

// OrphanedIdentity describes an identity created without a persisted profile.
type OrphanedIdentity struct {
	IdentityID IdentityID
	User       User
	Cause      error
	DetectedAt time.Time
}
