package mentorship

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/logx"
	"mentorlink/internal/pkg/metrics"
	"mentorlink/internal/pkg/randx"
)

// FileStore keeps attachment objects.
type FileStore interface {
	Upload(ctx context.Context, key string, body io.Reader, mimeType string, size int64) error
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Upload is an attachment received with a send request.
type Upload struct {
	Name string

	// Size is the size the client declared, or 0 when unknown.
	Size   int64
	Reader io.Reader
}

// SendInput is one send request. StudentID names the thread on the mentor side and is
// ignored for students.
type SendInput struct {
	StudentID string
	Body      string
	File      *Upload
}

// Service implements the mentorship rules behind the REST API.
type Service struct {
	repo   Repository
	files  FileStore
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a Service. files may be nil, in which case attachments are refused.
func NewService(repo Repository, files FileStore) *Service {
	return &Service{
		repo:   repo,
		files:  files,
		now:    time.Now,
		logger: logx.Component("mentorship"),
	}
}

// WithClock replaces the time source used for timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterUser records or refreshes a directory entry.
func (s *Service) RegisterUser(ctx context.Context, u user.User) error {
	if err := u.Validate(); err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err)
	}
	if err := s.repo.UpsertUser(ctx, u); err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	return nil
}

// EnsureCaller makes sure an authenticated caller has a directory entry. Tokens come from the
// identity service, so the first request of a user enrolls them. Role and display name follow
// the token; department and skillset are kept from the stored entry.
func (s *Service) EnsureCaller(ctx context.Context, caller user.User) error {
	if err := caller.Validate(); err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err)
	}

	stored, err := s.repo.GetUser(ctx, caller.ID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return errs.Wrap(errs.ErrUnknown, err)
	default:
		if stored.Role == caller.Role && (caller.DisplayName == "" || stored.DisplayName == caller.DisplayName) {
			return nil
		}
		caller.Department = stored.Department
		caller.Skillset = stored.Skillset
		if caller.DisplayName == "" {
			caller.DisplayName = stored.DisplayName
		}
	}

	if caller.DisplayName == "" {
		caller.DisplayName = caller.ID
	}
	if err := s.repo.UpsertUser(ctx, caller); err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	s.logger.Debug().Str("user_id", caller.ID).Str("role", string(caller.Role)).Msg("Caller enrolled in directory")
	return nil
}

// AvailableMentors lists alumni who can still take mentees.
func (s *Service) AvailableMentors(ctx context.Context, _ user.User) ([]user.User, error) {
	mentors, err := s.repo.ListAvailableMentors(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}
	return nonNil(mentors), nil
}

// AvailableStudents lists students without a mentor. Only mentors may ask.
func (s *Service) AvailableStudents(ctx context.Context, caller user.User) ([]user.User, error) {
	if !caller.Role.IsMentor() {
		return nil, errs.NewError(errs.ErrForbiddenRole)
	}
	students, err := s.repo.ListAvailableStudents(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}
	return nonNil(students), nil
}

// Mentees lists the caller's active relationships.
func (s *Service) Mentees(ctx context.Context, caller user.User) ([]Relationship, error) {
	if !caller.Role.IsMentor() {
		return nil, errs.NewError(errs.ErrForbiddenRole)
	}
	rels, err := s.repo.ActiveForMentor(ctx, caller.ID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}
	return nonNil(rels), nil
}

// StudentMentor returns the caller's active relationship, or nil when unassigned.
func (s *Service) StudentMentor(ctx context.Context, caller user.User) (*Relationship, error) {
	if caller.Role != user.RoleStudent {
		return nil, errs.NewError(errs.ErrForbiddenRole)
	}
	rel, err := s.repo.ActiveForMentee(ctx, caller.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}
	return &rel, nil
}

// Start commits a mentor's selection. A capacity of 0 means "exactly the selected students".
func (s *Service) Start(ctx context.Context, caller user.User, studentIDs []string, capacity int) ([]Relationship, error) {
	if !caller.Role.IsMentor() {
		return nil, errs.NewError(errs.ErrForbiddenRole)
	}

	ids := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errs.NewError(errs.ErrSelectionEmpty)
	}
	if capacity == 0 {
		capacity = len(ids)
	}
	if capacity < 1 || capacity < len(ids) {
		return nil, errs.NewError(errs.ErrInvalidCapacity)
	}

	rels, err := s.repo.StartRelationships(ctx, StartParams{
		MentorID:  caller.ID,
		Capacity:  capacity,
		MenteeIDs: ids,
		At:        s.now().UTC(),
	})
	switch {
	case errors.Is(err, ErrMentorBusy):
		return nil, errs.Wrap(errs.ErrMentorAlreadyAssigned, err)
	case errors.Is(err, ErrMenteeTaken):
		return nil, errs.Wrap(errs.ErrMenteeUnavailable, err)
	case errors.Is(err, ErrNotFound):
		return nil, errs.Wrap(errs.ErrCandidateUnknown, err)
	case err != nil:
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}

	metrics.RelationshipsStarted.Add(float64(len(rels)))
	s.logger.Info().Str("mentor_id", caller.ID).Int("mentees", len(rels)).Int("capacity", capacity).Msg("Mentorship started")
	return rels, nil
}

// End ends the caller's active relationship with menteeID.
func (s *Service) End(ctx context.Context, caller user.User, menteeID string) (Relationship, error) {
	if !caller.Role.IsMentor() {
		return Relationship{}, errs.NewError(errs.ErrNotMentorParty)
	}
	if menteeID == "" {
		return Relationship{}, errs.NewError(errs.ErrInvalidParams)
	}

	rel, err := s.repo.ActiveForMentee(ctx, menteeID)
	if err != nil {
		return Relationship{}, s.relationshipErr(err)
	}
	if rel.MentorID != caller.ID {
		return Relationship{}, errs.NewError(errs.ErrNotMentorParty)
	}

	ended, err := s.repo.EndRelationship(ctx, rel.ID, s.now().UTC())
	if err != nil {
		return Relationship{}, s.relationshipErr(err)
	}

	metrics.RelationshipsEnded.Inc()
	s.logger.Info().Str("relationship_id", rel.ID).Str("mentor_id", caller.ID).Msg("Mentorship ended")
	return ended, nil
}

// Messages returns the authoritative thread of the caller's relationship, oldest first.
func (s *Service) Messages(ctx context.Context, caller user.User, studentID string) ([]Message, error) {
	rel, err := s.threadFor(ctx, caller, studentID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, rel.ID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}

	metrics.ThreadFetches.WithLabelValues(string(caller.Role)).Inc()
	return nonNil(msgs), nil
}

// Send stores a message in the caller's thread, uploading its attachment first.
func (s *Service) Send(ctx context.Context, caller user.User, in SendInput) (Message, error) {
	rel, err := s.threadFor(ctx, caller, in.StudentID)
	if err != nil {
		return Message{}, err
	}

	body := strings.ToValidUTF8(in.Body, "\uFFFD")
	if len(body) > MaxBodyBytes {
		return Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}
	if strings.TrimSpace(body) == "" && in.File == nil {
		return Message{}, errs.NewError(errs.ErrMessageEmpty)
	}

	var file *FileRef
	if in.File != nil {
		file, err = s.storeAttachment(ctx, rel.ID, in.File)
		if err != nil {
			return Message{}, err
		}
	}

	content, err := NewContent(body, file)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:             randx.MessageID(),
		RelationshipID: rel.ID,
		MentorID:       rel.MentorID,
		StudentID:      rel.MenteeID,
		SenderID:       caller.ID,
		SenderRole:     caller.Role,
		Content:        content,
		Timestamp:      s.now().UTC(),
		Reactions:      []Reaction{},
	}

	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		if file != nil {
			s.deleteObject(file.Key)
		}
		return Message{}, errs.Wrap(errs.ErrUnknown, err)
	}

	metrics.MessagesSent.WithLabelValues(string(content.Variant())).Inc()
	return msg, nil
}

// React adds emoji from the caller to a message. Repeating the same reaction is a no-op.
func (s *Service) React(ctx context.Context, caller user.User, messageID, emoji string) (Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > MaxEmojiBytes {
		return Message{}, errs.NewError(errs.ErrInvalidReaction)
	}

	msg, err := s.participantMessage(ctx, caller, messageID)
	if err != nil {
		return Message{}, err
	}

	rel, err := s.repo.GetRelationship(ctx, msg.RelationshipID)
	if err != nil {
		return Message{}, s.relationshipErr(err)
	}
	if !rel.IsActive() {
		return Message{}, errs.NewError(errs.ErrRelationshipNotFound)
	}

	added, err := s.repo.AddReaction(ctx, messageID, Reaction{Emoji: emoji, UserID: caller.ID})
	if err != nil {
		return Message{}, s.messageErr(err)
	}
	if added {
		metrics.ReactionsAdded.Inc()
	}

	return s.participantMessage(ctx, caller, messageID)
}

// Delete removes one of the caller's own messages. Its attachment is removed best-effort.
func (s *Service) Delete(ctx context.Context, caller user.User, messageID string) error {
	msg, err := s.participantMessage(ctx, caller, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != caller.ID {
		return errs.NewError(errs.ErrNotMessageSender)
	}

	if err := s.repo.DeleteMessage(ctx, messageID); err != nil {
		return s.messageErr(err)
	}
	metrics.MessagesDeleted.Inc()

	if file, ok := FileOf(msg.Content); ok {
		s.deleteObject(file.Key)
	}
	return nil
}

// MarkRead flags the counterpart's messages in the caller's thread as read.
func (s *Service) MarkRead(ctx context.Context, caller user.User, studentID string) (int, error) {
	rel, err := s.threadFor(ctx, caller, studentID)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.MarkRead(ctx, rel.ID, caller.ID)
	if err != nil {
		return 0, errs.Wrap(errs.ErrUnknown, err)
	}
	return n, nil
}

// FileURL returns a short-lived download link for an attachment the caller can see.
func (s *Service) FileURL(ctx context.Context, caller user.User, fileID string) (string, FileRef, error) {
	if s.files == nil {
		return "", FileRef{}, errs.NewError(errs.ErrFileNotFound)
	}

	msg, err := s.repo.GetMessageByFile(ctx, fileID)
	if errors.Is(err, ErrNotFound) {
		return "", FileRef{}, errs.NewError(errs.ErrFileNotFound)
	}
	if err != nil {
		return "", FileRef{}, errs.Wrap(errs.ErrUnknown, err)
	}
	if caller.ID != msg.MentorID && caller.ID != msg.StudentID {
		return "", FileRef{}, errs.NewError(errs.ErrNotRelationshipParty)
	}

	file, _ := FileOf(msg.Content)
	url, err := s.files.PresignDownload(ctx, file.Key, DownloadURLDuration)
	if err != nil {
		return "", FileRef{}, errs.Wrap(errs.ErrFileStorageFailed, err)
	}
	return url, file, nil
}

// threadFor resolves the active relationship a thread operation targets.
func (s *Service) threadFor(ctx context.Context, caller user.User, studentID string) (Relationship, error) {
	switch caller.Role {
	case user.RoleStudent:
		rel, err := s.repo.ActiveForMentee(ctx, caller.ID)
		if err != nil {
			return Relationship{}, s.relationshipErr(err)
		}
		return rel, nil

	case user.RoleAlumni:
		if studentID == "" {
			return Relationship{}, errs.NewError(errs.ErrInvalidParams)
		}
		rel, err := s.repo.ActiveForMentee(ctx, studentID)
		if err != nil {
			return Relationship{}, s.relationshipErr(err)
		}
		if rel.MentorID != caller.ID {
			return Relationship{}, errs.NewError(errs.ErrNotRelationshipParty)
		}
		return rel, nil
	}
	return Relationship{}, errs.NewError(errs.ErrForbiddenRole)
}

func (s *Service) participantMessage(ctx context.Context, caller user.User, messageID string) (Message, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return Message{}, s.messageErr(err)
	}
	if caller.ID != msg.MentorID && caller.ID != msg.StudentID {
		return Message{}, errs.NewError(errs.ErrNotRelationshipParty)
	}
	return msg, nil
}

func (s *Service) storeAttachment(ctx context.Context, relationshipID string, up *Upload) (*FileRef, error) {
	if s.files == nil {
		return nil, errs.NewError(errs.ErrFileStorageFailed)
	}
	if up.Size > MaxAttachmentSize {
		return nil, errs.NewError(errs.ErrFileSizeTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(up.Reader, MaxAttachmentSize+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrFormParseFailed, err)
	}
	if cerr := ValidateFileSize(int64(len(data))); cerr != nil {
		return nil, cerr
	}

	name := filepath.Base(strings.TrimSpace(up.Name))
	mimeType := SniffMIME(data)
	if cerr := ValidateFileType(name, mimeType); cerr != nil {
		return nil, cerr
	}

	fileID := randx.FileID()
	ref := &FileRef{
		ID:       fileID,
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Key:      relationshipID + "/" + fileID + strings.ToLower(filepath.Ext(name)),
	}

	if err := s.files.Upload(ctx, ref.Key, bytes.NewReader(data), ref.MimeType, ref.Size); err != nil {
		return nil, errs.Wrap(errs.ErrFileStorageFailed, err)
	}
	return ref, nil
}

func (s *Service) deleteObject(key string) {
	if s.files == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Attachment cleanup failed")
	}
}

func (s *Service) relationshipErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return errs.Wrap(errs.ErrRelationshipNotFound, err)
	}
	return errs.Wrap(errs.ErrUnknown, err)
}

func (s *Service) messageErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return errs.Wrap(errs.ErrMessageNotFound, err)
	}
	return errs.Wrap(errs.ErrUnknown, err)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
