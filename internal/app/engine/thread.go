package engine

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/randx"
)

// ThreadState is the synchronisation state of the open thread.
type ThreadState int

const (
	// ThreadIdle means no thread is open.
	ThreadIdle ThreadState = iota
	// ThreadSyncing means a fetch is in flight.
	ThreadSyncing
	// ThreadSynced means the last fetch succeeded.
	ThreadSynced
	// ThreadError means the last fetch failed. The previous snapshot is still shown.
	ThreadError
)

func (s ThreadState) String() string {
	switch s {
	case ThreadIdle:
		return "idle"
	case ThreadSyncing:
		return "syncing"
	case ThreadSynced:
		return "synced"
	case ThreadError:
		return "error"
	}
	return "unknown"
}

// Entry is one line of the thread snapshot.
type Entry struct {
	mentorship.Message

	// Pending marks an optimistic entry the server has not returned yet.
	Pending bool

	// Failed marks an optimistic entry whose write was rejected. It stays visible until the
	// next poll replaces the thread.
	Failed bool
}

type optimistic struct {
	msg    mentorship.Message
	failed bool

	// settled is the write generation at which the send finished, 0 while in flight.
	settled uint64

	// confirmedID is the server id once the send succeeded.
	confirmedID string
}

// Thread keeps the open conversation in sync with the server.
//
// Each successful poll replaces the thread with the server's list sorted by timestamp.
// Optimistic sends are appended after it and survive a poll only if the poll may have
// missed them, that is when their write had not finished before the poll started and the
// returned list does not contain them. Results of a poll started for a thread that has
// since been closed or replaced are discarded.
type Thread struct {
	backend  Backend
	self     user.User
	notifier *Notifier
	opts     options
	logger   zerolog.Logger

	mu        sync.Mutex
	open      bool
	rel       mentorship.Relationship
	epoch     uint64
	state     ThreadState
	lastErr   error
	confirmed []mentorship.Message
	pending   []*optimistic
	gen       uint64
	cancel    context.CancelFunc

	changes chan struct{}
}

// NewThread creates an idle thread for self. A nil notifier means always enabled.
func NewThread(backend Backend, self user.User, notifier *Notifier, opts ...Option) *Thread {
	if notifier == nil {
		notifier = NewNotifier()
	}
	o := buildOptions(opts)
	return &Thread{
		backend:  backend,
		self:     self,
		notifier: notifier,
		opts:     o,
		logger:   o.logger.With().Str("user_id", self.ID).Logger(),
		state:    ThreadIdle,
		changes:  make(chan struct{}, 1),
	}
}

// Open selects rel and starts syncing it: one fetch right away, then one per poll
// interval while notifications are enabled. A previously open thread is closed first.
// The polling goroutine lives until Close or until ctx is cancelled.
func (t *Thread) Open(ctx context.Context, rel mentorship.Relationship) error {
	if !rel.Involves(t.self.ID) {
		return errs.NewError(errs.ErrNotRelationshipParty)
	}
	if !rel.IsActive() {
		return errs.NewError(errs.ErrRelationshipNotFound)
	}

	t.Close()

	t.mu.Lock()
	t.epoch++
	epoch := t.epoch
	t.open = true
	t.rel = rel
	t.state = ThreadSyncing
	t.lastErr = nil
	t.confirmed = nil
	t.pending = nil

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.logger.Debug().Str("relationship_id", rel.ID).Msg("Thread opened")
	t.signal()

	go t.run(loopCtx, epoch)
	return nil
}

// Close deselects the thread, cancels its timer and returns to Idle. A fetch still in
// flight completes but its result is dropped.
func (t *Thread) Close() {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.open = false
	t.epoch++
	t.state = ThreadIdle
	t.lastErr = nil
	t.confirmed = nil
	t.pending = nil
	t.cancel = nil
	t.rel = mentorship.Relationship{}
	t.mu.Unlock()

	cancel()
	t.signal()
}

func (t *Thread) run(ctx context.Context, epoch uint64) {
	ticker := t.opts.clock.NewTicker(t.opts.interval)
	defer ticker.Stop()

	_ = t.poll(ctx, epoch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !t.notifier.Enabled() {
				continue
			}
			_ = t.poll(ctx, epoch)
		}
	}
}

// Refresh fetches the thread now, regardless of the notification switch.
func (t *Thread) Refresh(ctx context.Context) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return errs.NewError(errs.ErrNoThreadOpen)
	}
	epoch := t.epoch
	t.mu.Unlock()

	return t.poll(ctx, epoch)
}

func (t *Thread) poll(ctx context.Context, epoch uint64) error {
	t.mu.Lock()
	if !t.open || t.epoch != epoch {
		t.mu.Unlock()
		return nil
	}
	t.state = ThreadSyncing
	startGen := t.gen
	studentID := t.studentIDLocked()
	relID := t.rel.ID
	t.mu.Unlock()
	t.signal()

	msgs, err := t.backend.Messages(ctx, studentID)

	t.mu.Lock()
	if !t.open || t.epoch != epoch {
		t.mu.Unlock()
		t.logger.Debug().Str("relationship_id", relID).Msg("Discarding stale thread fetch")
		return nil
	}

	if err != nil {
		t.state = ThreadError
		t.lastErr = errs.ForPoll(err)
		t.mu.Unlock()

		t.logger.Warn().Err(err).Str("relationship_id", relID).Msg("Thread fetch failed")
		t.signal()
		return t.lastErr
	}

	mentorship.SortByTimestamp(msgs)
	t.confirmed = msgs
	t.pending = slices.DeleteFunc(t.pending, func(p *optimistic) bool {
		if p.confirmedID != "" && slices.ContainsFunc(msgs, func(m mentorship.Message) bool { return m.ID == p.confirmedID }) {
			return true
		}
		return p.settled != 0 && p.settled <= startGen
	})
	t.state = ThreadSynced
	t.lastErr = nil
	t.mu.Unlock()

	t.signal()
	return nil
}

// Send shows the message immediately under a provisional id and then writes it. A body,
// an attachment or both are required. Input problems are reported before any I/O. A failed
// write returns ErrDeliveryFailed and leaves the entry visible, marked as failed.
func (t *Thread) Send(ctx context.Context, body string, att *Attachment) (mentorship.Message, error) {
	var file *mentorship.FileRef
	if att != nil {
		ref, cerr := validateAttachment(att)
		if cerr != nil {
			return mentorship.Message{}, cerr
		}
		file = ref
	}
	if len(body) > mentorship.MaxBodyBytes {
		return mentorship.Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}
	content, err := mentorship.NewContent(body, file)
	if err != nil {
		return mentorship.Message{}, err
	}

	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return mentorship.Message{}, errs.NewError(errs.ErrNoThreadOpen)
	}
	now := t.opts.clock.Now()
	entry := &optimistic{msg: mentorship.Message{
		ID:             randx.LocalMessageID(now),
		RelationshipID: t.rel.ID,
		MentorID:       t.rel.MentorID,
		StudentID:      t.rel.MenteeID,
		SenderID:       t.self.ID,
		SenderRole:     t.self.Role,
		Content:        content,
		Timestamp:      now,
	}}
	t.pending = append(t.pending, entry)
	epoch := t.epoch
	studentID := t.studentIDLocked()
	t.mu.Unlock()
	t.signal()

	sent, err := t.backend.Send(ctx, SendRequest{StudentID: studentID, Body: mentorship.BodyOf(content), Attachment: att})

	t.mu.Lock()
	if t.epoch == epoch {
		t.gen++
		entry.settled = t.gen
		if err != nil {
			entry.failed = true
		} else {
			entry.confirmedID = sent.ID
		}
	}
	t.mu.Unlock()
	t.signal()

	if err != nil {
		t.logger.Warn().Err(err).Str("local_id", entry.msg.ID).Msg("Message delivery failed")
		return entry.msg, errs.ForWrite(err)
	}
	return sent, nil
}

func validateAttachment(att *Attachment) (*mentorship.FileRef, *errs.CustomError) {
	if cerr := mentorship.ValidateFileSize(int64(len(att.Data))); cerr != nil {
		return nil, cerr
	}
	mimeType := mentorship.SniffMIME(att.Data)
	if cerr := mentorship.ValidateFileType(att.Name, mimeType); cerr != nil {
		return nil, cerr
	}
	return &mentorship.FileRef{Name: att.Name, MimeType: mimeType, Size: int64(len(att.Data))}, nil
}

// React adds emoji from self to messageID locally and on the server. Repeats are not
// filtered here; the server ignores duplicates.
func (t *Thread) React(ctx context.Context, messageID, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > mentorship.MaxEmojiBytes {
		return errs.NewError(errs.ErrInvalidReaction)
	}

	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return errs.NewError(errs.ErrNoThreadOpen)
	}
	if randx.IsLocalID(messageID) {
		t.mu.Unlock()
		return errs.NewError(errs.ErrMessageNotDelivered)
	}
	i := t.indexLocked(messageID)
	if i < 0 {
		t.mu.Unlock()
		return errs.NewError(errs.ErrMessageNotFound)
	}
	t.confirmed[i].Reactions = append(slices.Clone(t.confirmed[i].Reactions), mentorship.Reaction{Emoji: emoji, UserID: t.self.ID})
	epoch := t.epoch
	t.mu.Unlock()
	t.signal()

	updated, err := t.backend.React(ctx, messageID, emoji)
	if err != nil {
		return errs.ForWrite(err)
	}

	t.mu.Lock()
	if t.epoch == epoch {
		if i := t.indexLocked(messageID); i >= 0 {
			t.confirmed[i].Reactions = updated.Reactions
		}
	}
	t.mu.Unlock()
	t.signal()
	return nil
}

// Delete removes one of self's messages. A non-sender gets ErrNotMessageSender and nothing
// changes. Confirmed messages are hidden at once and the server is asked to delete them;
// the next poll is the confirmation. A failed optimistic entry is simply dropped.
func (t *Thread) Delete(ctx context.Context, messageID string) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return errs.NewError(errs.ErrNoThreadOpen)
	}

	if j := slices.IndexFunc(t.pending, func(p *optimistic) bool { return p.msg.ID == messageID }); j >= 0 {
		defer t.mu.Unlock()
		p := t.pending[j]
		if !p.failed {
			return errs.NewError(errs.ErrMessageNotDelivered)
		}
		t.pending = slices.Delete(t.pending, j, j+1)
		t.signal()
		return nil
	}

	i := t.indexLocked(messageID)
	if i < 0 {
		t.mu.Unlock()
		return errs.NewError(errs.ErrMessageNotFound)
	}
	if t.confirmed[i].SenderID != t.self.ID {
		t.mu.Unlock()
		return errs.NewError(errs.ErrNotMessageSender)
	}
	t.confirmed = slices.Delete(slices.Clone(t.confirmed), i, i+1)
	t.mu.Unlock()
	t.signal()

	if err := t.backend.Delete(ctx, messageID); err != nil {
		return errs.ForWrite(err)
	}
	return nil
}

// MarkRead flags every counterpart message in the snapshot as read and tells the server.
// The local flags stay set even if the server call fails.
func (t *Thread) MarkRead(ctx context.Context) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return errs.NewError(errs.ErrNoThreadOpen)
	}
	msgs := slices.Clone(t.confirmed)
	for i := range msgs {
		if msgs[i].SenderRole != t.self.Role {
			msgs[i].Read = true
		}
	}
	t.confirmed = msgs
	studentID := t.studentIDLocked()
	t.mu.Unlock()
	t.signal()

	if err := t.backend.MarkRead(ctx, studentID); err != nil {
		return errs.ForWrite(err)
	}
	return nil
}

// Snapshot returns the confirmed messages, oldest first, followed by optimistic entries in
// the order they were sent.
func (t *Thread) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.confirmed)+len(t.pending))
	for _, m := range t.confirmed {
		out = append(out, Entry{Message: m.Clone()})
	}
	for _, p := range t.pending {
		out = append(out, Entry{Message: p.msg.Clone(), Pending: true, Failed: p.failed})
	}
	return out
}

// Messages is Snapshot without the entry flags.
func (t *Thread) Messages() []mentorship.Message {
	entries := t.Snapshot()
	out := make([]mentorship.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func (t *Thread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the last poll error while the thread is in ThreadError.
func (t *Thread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Relationship returns the open relationship.
func (t *Thread) Relationship() (mentorship.Relationship, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rel, t.open
}

// UnreadCount counts the counterpart's unread messages in the snapshot.
func (t *Thread) UnreadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return UnreadCount(t.confirmed, t.self.Role)
}

// Badge returns the unread count and whether it should be displayed.
func (t *Thread) Badge() (int, bool) {
	n := t.UnreadCount()
	return n, n > 0 && t.notifier.Enabled()
}

// Changes is signalled after every state or snapshot change. Signals coalesce.
func (t *Thread) Changes() <-chan struct{} {
	return t.changes
}

func (t *Thread) studentIDLocked() string {
	if t.self.Role.IsMentor() {
		return t.rel.MenteeID
	}
	return ""
}

func (t *Thread) indexLocked(messageID string) int {
	return slices.IndexFunc(t.confirmed, func(m mentorship.Message) bool { return m.ID == messageID })
}

func (t *Thread) signal() {
	select {
	case t.changes <- struct{}{}:
	default:
	}
}
