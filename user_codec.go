package accountflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const birthdateLayout = "2006-01-02"

var (
	errUserNameMissing   = errors.New("lastname and firstname are required")
	errUserGenderInvalid = errors.New("gender must be one of Male, Female, Other")
)

// userRecord is the persistence schema of a profile.
type userRecord struct {
	Lastname       string  `json:"lastname"`
	Firstname      string  `json:"firstname"`
	Email          string  `json:"email"`
	Birthdate      *string `json:"birthdate,omitempty"`
	Gender         string  `json:"gender"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

// MarshalJSON encodes u with the persistence field names.
func (u User) MarshalJSON() ([]byte, error) {
	rec := userRecord{
		Lastname:       u.Lastname,
		Firstname:      u.Firstname,
		Email:          u.Email,
		Gender:         string(u.Gender),
		ProfilePicture: u.ProfilePicture,
	}
	if u.Birthdate != nil {
		s := u.Birthdate.UTC().Format(birthdateLayout)
		rec.Birthdate = &s
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes the persistence schema and applies Validate.
func (u *User) UnmarshalJSON(data []byte) error {
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	out := User{
		Lastname:       rec.Lastname,
		Firstname:      rec.Firstname,
		Email:          rec.Email,
		Gender:         Gender(rec.Gender),
		ProfilePicture: rec.ProfilePicture,
	}
	if rec.Birthdate != nil {
		t, err := ParseBirthdate(*rec.Birthdate)
		if err != nil {
			return err
		}
		out.Birthdate = &t
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*u = out
	return nil
}

// ParseBirthdate accepts an ISO-8601 calendar date or a full RFC 3339
// timestamp and returns the UTC calendar date.
func ParseBirthdate(s string) (time.Time, error) {
	if t, err := time.Parse(birthdateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid birthdate %q", s)
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// EncodeUser validates u and returns its persistence encoding. A schema
// violation is reported as invalidUserData.
func EncodeUser(u User) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, NewPersistenceError(PersistenceInvalidUserData, err)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, NewPersistenceError(PersistenceInvalidUserData, err)
	}
	return data, nil
}

// DecodeUser decodes a stored profile. Any decode or schema failure is
// reported as invalidUserData.
func DecodeUser(data []byte) (User, error) {
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, NewPersistenceError(PersistenceInvalidUserData, err)
	}
	return u, nil
}
