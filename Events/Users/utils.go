package users

import (
	"errors"
	"strings"
)

// Constants for validation
const (
	MaxNameLength    = 50
	MaxPictureLength = 2048
	MaxStatusLength  = 160
	MaxBioLength     = 300
	MaxSchoolLength  = 120

	DefaultSearchLimit = 20
	MaxSearchLimit     = 50

	StudentRole      = "student"
	ProfessionalRole = "professional"
	DefaultRole      = StudentRole
)

// ProfileUpdate carries the allow-listed profile fields. A nil pointer means
// the field was absent from the payload and must be left untouched.
type ProfileUpdate struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	ProfilePicture *string `json:"profilePicture"`
	Status         *string `json:"status"`
	Bio            *string `json:"bio"`
	University     *string `json:"university"`
	Major          *string `json:"major"`
}

func (p *ProfileUpdate) isEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.ProfilePicture == nil &&
		p.Status == nil && p.Bio == nil && p.University == nil && p.Major == nil
}

// SanitizeProfileUpdate trims every present field and validates the whole
// payload. Either all fields pass or the update is rejected.
func SanitizeProfileUpdate(p *ProfileUpdate) error {
	trim := func(value *string) {
		if value != nil {
			*value = strings.TrimSpace(*value)
		}
	}
	trim(p.FirstName)
	trim(p.LastName)
	trim(p.ProfilePicture)
	trim(p.Status)
	trim(p.Bio)
	trim(p.University)
	trim(p.Major)

	if p.FirstName != nil {
		if *p.FirstName == "" {
			return errors.New("First name cannot be empty")
		}
		if len(*p.FirstName) > MaxNameLength {
			return errors.New("First name is too long")
		}
	}
	if p.LastName != nil {
		if *p.LastName == "" {
			return errors.New("Last name cannot be empty")
		}
		if len(*p.LastName) > MaxNameLength {
			return errors.New("Last name is too long")
		}
	}
	if p.ProfilePicture != nil && len(*p.ProfilePicture) > MaxPictureLength {
		return errors.New("Profile picture URL is too long")
	}
	if p.Status != nil && len(*p.Status) > MaxStatusLength {
		return errors.New("Status is too long")
	}
	if p.Bio != nil && len(*p.Bio) > MaxBioLength {
		return errors.New("Bio is too long")
	}
	if p.University != nil && len(*p.University) > MaxSchoolLength {
		return errors.New("University is too long")
	}
	if p.Major != nil && len(*p.Major) > MaxSchoolLength {
		return errors.New("Major is too long")
	}
	return nil
}

// ValidateName checks a registration name. A blank name reads the same as
// an absent one.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("Missing required fields")
	}
	if len(name) > MaxNameLength {
		return errors.New("Name is too long")
	}
	return nil
}

// ValidateRole checks that a role is one of the allowed values.
func ValidateRole(role string) error {
	if role != StudentRole && role != ProfessionalRole {
		return errors.New("Invalid role")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
