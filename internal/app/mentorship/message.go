package mentorship

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

// Variant names the shape of a message's content.
type Variant string

const (
	VariantText     Variant = "text"
	VariantFile     Variant = "file"
	VariantCombined Variant = "combined"
)

// FileRef points at a stored attachment.
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`

	// Key is the object-store key. It never leaves the server.
	Key string `json:"-"`
}

// Content is what a message carries: exactly one of TextContent, FileContent or
// CombinedContent.
type Content interface {
	Variant() Variant
}

// TextContent is a body without an attachment.
type TextContent struct {
	Body string
}

// FileContent is an attachment without a body.
type FileContent struct {
	File FileRef
}

// CombinedContent is a body with an attachment.
type CombinedContent struct {
	Body string
	File FileRef
}

func (TextContent) Variant() Variant     { return VariantText }
func (FileContent) Variant() Variant     { return VariantFile }
func (CombinedContent) Variant() Variant { return VariantCombined }

// NewContent picks the variant for body and file. A blank body counts as absent.
// It fails with ErrMessageEmpty when both are absent.
func NewContent(body string, file *FileRef) (Content, error) {
	hasBody := strings.TrimSpace(body) != ""

	switch {
	case hasBody && file != nil:
		return CombinedContent{Body: body, File: *file}, nil
	case hasBody:
		return TextContent{Body: body}, nil
	case file != nil:
		return FileContent{File: *file}, nil
	}
	return nil, errs.NewError(errs.ErrMessageEmpty)
}

// BodyOf returns the text of c, or "" for file-only content.
func BodyOf(c Content) string {
	switch v := c.(type) {
	case TextContent:
		return v.Body
	case CombinedContent:
		return v.Body
	}
	return ""
}

// FileOf returns the attachment of c, if it has one.
func FileOf(c Content) (FileRef, bool) {
	switch v := c.(type) {
	case FileContent:
		return v.File, true
	case CombinedContent:
		return v.File, true
	}
	return FileRef{}, false
}

// Reaction is one user's emoji on a message.
type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`
}

// Message is one entry of a relationship's thread.
type Message struct {
	ID             string
	RelationshipID string
	MentorID       string
	StudentID      string
	SenderID       string
	SenderRole     user.Role
	Content        Content
	Timestamp      time.Time
	Reactions      []Reaction

	// Read is set once the recipient has viewed the message.
	Read bool
}

type wireMessage struct {
	ID             string     `json:"id"`
	RelationshipID string     `json:"relationshipId"`
	MentorID       string     `json:"mentorId"`
	StudentID      string     `json:"studentId"`
	SenderID       string     `json:"senderId"`
	SenderRole     user.Role  `json:"senderRole"`
	Variant        Variant    `json:"variant"`
	Message        string     `json:"message,omitempty"`
	File           *FileRef   `json:"file,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	Reactions      []Reaction `json:"reactions"`
	Read           bool       `json:"read"`
}

// MarshalJSON flattens Content into optional message/file fields.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Content == nil {
		return nil, fmt.Errorf("message %s has no content", m.ID)
	}

	w := wireMessage{
		ID:             m.ID,
		RelationshipID: m.RelationshipID,
		MentorID:       m.MentorID,
		StudentID:      m.StudentID,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		Variant:        m.Content.Variant(),
		Message:        BodyOf(m.Content),
		Timestamp:      m.Timestamp,
		Reactions:      m.Reactions,
		Read:           m.Read,
	}
	if w.Reactions == nil {
		w.Reactions = []Reaction{}
	}
	if file, ok := FileOf(m.Content); ok {
		w.File = &file
	}

	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the Content variant from the flat wire form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	content, err := NewContent(w.Message, w.File)
	if err != nil {
		return fmt.Errorf("message %s: %w", w.ID, err)
	}

	*m = Message{
		ID:             w.ID,
		RelationshipID: w.RelationshipID,
		MentorID:       w.MentorID,
		StudentID:      w.StudentID,
		SenderID:       w.SenderID,
		SenderRole:     w.SenderRole,
		Content:        content,
		Timestamp:      w.Timestamp,
		Reactions:      w.Reactions,
		Read:           w.Read,
	}
	return nil
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	m.Reactions = slices.Clone(m.Reactions)
	return m
}

// HasReaction reports whether userID already reacted with emoji.
func (m Message) HasReaction(userID, emoji string) bool {
	return slices.Contains(m.Reactions, Reaction{Emoji: emoji, UserID: userID})
}

// SortByTimestamp orders msgs by ascending timestamp; equal timestamps keep their order.
func SortByTimestamp(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
