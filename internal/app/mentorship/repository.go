package mentorship

import (
	"context"
	"errors"
	"time"

	"mentorlink/internal/app/user"
)

// Repository errors. Implementations return these (possibly wrapped) so the Service can map
// them to client-facing codes.
var (
	ErrNotFound    = errors.New("mentorship: not found")
	ErrMentorBusy  = errors.New("mentorship: mentor already has active mentees")
	ErrMenteeTaken = errors.New("mentorship: mentee already has an active mentor")
)

// StartParams describes one committed selection.
type StartParams struct {
	MentorID  string
	Capacity  int
	MenteeIDs []string
	At        time.Time
}

// Repository is the persistence contract of the mentorship backend.
type Repository interface {
	UpsertUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, id string) (user.User, error)

	// ListAvailableMentors returns alumni with no active relationship. Selection is one bulk
	// commit, so a mentor with any active mentee cannot take another until all have ended.
	ListAvailableMentors(ctx context.Context) ([]user.User, error)

	// ListAvailableStudents returns students without an active relationship.
	ListAvailableStudents(ctx context.Context) ([]user.User, error)

	// StartRelationships atomically records the mentor's capacity and creates one active
	// relationship per mentee. It fails with ErrMentorBusy, ErrMenteeTaken or ErrNotFound
	// (unknown or non-student mentee) and then creates nothing.
	StartRelationships(ctx context.Context, p StartParams) ([]Relationship, error)

	GetRelationship(ctx context.Context, id string) (Relationship, error)

	// ActiveForMentor lists the mentor's active relationships with Mentee filled in.
	ActiveForMentor(ctx context.Context, mentorID string) ([]Relationship, error)

	// ActiveForMentee returns the mentee's active relationship with Mentor filled in.
	ActiveForMentee(ctx context.Context, menteeID string) (Relationship, error)

	EndRelationship(ctx context.Context, id string, at time.Time) (Relationship, error)

	InsertMessage(ctx context.Context, m Message) error
	GetMessage(ctx context.Context, id string) (Message, error)
	GetMessageByFile(ctx context.Context, fileID string) (Message, error)

	// ListMessages returns the thread ordered by timestamp ascending.
	ListMessages(ctx context.Context, relationshipID string) ([]Message, error)

	DeleteMessage(ctx context.Context, id string) error

	// AddReaction appends r unless the same user already reacted with the same emoji.
	AddReaction(ctx context.Context, messageID string, r Reaction) (bool, error)

	// MarkRead flags every message in the thread not sent by readerID as read.
	MarkRead(ctx context.Context, relationshipID, readerID string) (int, error)
}
