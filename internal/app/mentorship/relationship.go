/*
Package mentorship contains the mentor-mentee domain shared by the API server and the
client engine: relationships, thread messages and their content variants, reactions and
attachment rules, plus the server-side Service that enforces them against a Repository.
*/
package mentorship

import (
	"time"

	"mentorlink/internal/app/user"
)

// State is the lifecycle state of a Relationship. There is no pending state: a relationship
// is active from the moment the mentor commits a selection.
type State string

const (
	StateActive State = "active"
	StateEnded  State = "ended"
)

// Relationship pairs one mentor with one mentee.
type Relationship struct {
	ID        string     `json:"id"`
	MentorID  string     `json:"mentorId"`
	MenteeID  string     `json:"menteeId"`
	State     State      `json:"state"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	// Mentor and Mentee are filled in for listings; they are nil otherwise.
	Mentor *user.User `json:"mentor,omitempty"`
	Mentee *user.User `json:"mentee,omitempty"`
}

// IsActive reports whether the relationship is still running.
func (r Relationship) IsActive() bool {
	return r.State == StateActive
}

// Involves reports whether userID is either party.
func (r Relationship) Involves(userID string) bool {
	return userID != "" && (r.MentorID == userID || r.MenteeID == userID)
}

// Counterpart returns the other party's id, or "" when userID is not a party.
func (r Relationship) Counterpart(userID string) string {
	switch userID {
	case r.MentorID:
		return r.MenteeID
	case r.MenteeID:
		return r.MentorID
	}
	return ""
}

// Ended returns a copy of r transitioned to StateEnded at t.
func (r Relationship) Ended(t time.Time) Relationship {
	r.State = StateEnded
	r.EndedAt = &t
	return r
}
