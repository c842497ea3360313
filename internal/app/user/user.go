/*
Package user holds the identity shape the mentorship code needs from the alumni directory.

Profiles are owned by the external profile service; mentorship code refers to users by id
and only reads the fields below.
*/
package user

import "fmt"

// Role is the side a user is on in a mentorship.
type Role string

const (
	// RoleStudent users are mentees.
	RoleStudent Role = "student"

	// RoleAlumni users are mentors.
	RoleAlumni Role = "alumni"
)

// ParseRole validates s as a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleAlumni:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsMentor reports whether the role mentors others.
func (r Role) IsMentor() bool {
	return r == RoleAlumni
}

// User is a directory entry.
type User struct {
	ID          string   `json:"id"`
	Role        Role     `json:"role"`
	DisplayName string   `json:"displayName"`
	Department  string   `json:"department,omitempty"`
	Skillset    []string `json:"skillset,omitempty"`
}

// Validate checks the fields every mentorship operation relies on.
func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	return nil
}
