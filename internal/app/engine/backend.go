package engine

import (
	"context"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
)

// Attachment is a file picked for sending.
type Attachment struct {
	Name string
	Data []byte
}

// SendRequest is one outgoing message. StudentID names the thread on the mentor side.
type SendRequest struct {
	StudentID  string
	Body       string
	Attachment *Attachment
}

// Backend is the mentorship API as seen by one authenticated user. Business failures are
// returned as *errs.CustomError; transport failures are returned as-is.
type Backend interface {
	AvailableMentors(ctx context.Context) ([]user.User, error)
	AvailableStudents(ctx context.Context) ([]user.User, error)
	Mentees(ctx context.Context) ([]mentorship.Relationship, error)

	// StudentMentor returns nil when the caller has no mentor.
	StudentMentor(ctx context.Context) (*mentorship.Relationship, error)

	Start(ctx context.Context, studentIDs []string, capacity int) ([]mentorship.Relationship, error)
	End(ctx context.Context, menteeID string) (mentorship.Relationship, error)

	Messages(ctx context.Context, studentID string) ([]mentorship.Message, error)
	Send(ctx context.Context, r SendRequest) (mentorship.Message, error)
	React(ctx context.Context, messageID, emoji string) (mentorship.Message, error)
	Delete(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, studentID string) error
}
