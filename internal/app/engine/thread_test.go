package engine

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/randx"
)

type threadFixture struct {
	w       *world
	rel     mentorship.Relationship
	backend *fakeBackend
	clock   *fakeClock
	thread  *Thread
}

// openThread pairs maya with stuA on the server and opens their thread as self.
func openThread(t *testing.T, self user.User) *threadFixture {
	t.Helper()
	w := newWorld(t, everyone()...)
	rels, err := w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID}, 1)
	require.NoError(t, err)

	f := &threadFixture{w: w, rel: rels[0], backend: w.as(self), clock: newFakeClock()}
	f.thread = NewThread(f.backend, self, NewNotifier(), testOptions(f.clock)...)
	t.Cleanup(f.thread.Close)

	require.NoError(t, f.thread.Open(t.Context(), f.rel))
	waitState(t, f.thread, ThreadSynced)
	return f
}

func (f *threadFixture) serverSend(t *testing.T, from user.User, body string) mentorship.Message {
	t.Helper()
	msg, err := f.w.svc.Send(t.Context(), from, mentorship.SendInput{StudentID: stuA.ID, Body: body})
	require.NoError(t, err)
	return msg
}

func TestThreadOpenFetchesSortedThread(t *testing.T) {
	w := newWorld(t, everyone()...)
	rels, err := w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID}, 1)
	require.NoError(t, err)
	for _, body := range []string{"first", "second", "third"} {
		_, err := w.svc.Send(t.Context(), mentorMaya, mentorship.SendInput{StudentID: stuA.ID, Body: body})
		require.NoError(t, err)
	}

	th := NewThread(w.as(stuA), stuA, nil, testOptions(newFakeClock())...)
	t.Cleanup(th.Close)
	assert.Equal(t, ThreadIdle, th.State())

	require.NoError(t, th.Open(t.Context(), rels[0]))
	waitState(t, th, ThreadSynced)

	assert.Equal(t, []string{"first", "second", "third"}, bodies(th.Messages()))
	got, ok := th.Relationship()
	require.True(t, ok)
	assert.Equal(t, rels[0].ID, got.ID)
	assert.NoError(t, th.Err())
}

func TestThreadOpenRejects(t *testing.T) {
	f := openThread(t, stuA)

	other := NewThread(f.w.as(stuB), stuB, nil, testOptions(newFakeClock())...)
	err := other.Open(t.Context(), f.rel)
	assert.True(t, errs.HasCode(err, errs.ErrNotRelationshipParty))

	err = other.Open(t.Context(), f.rel.Ended(time.Now()))
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))

	err = f.thread.Open(t.Context(), f.rel.Ended(time.Now()))
	assert.True(t, errs.HasCode(err, errs.ErrRelationshipNotFound))
	assert.Equal(t, ThreadIdle, other.State())
}

func TestThreadOptimisticSendThenPoll(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread

	entered, release := f.backend.holdNext("Send")
	defer release()

	type result struct {
		msg mentorship.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := th.Send(t.Context(), "hello", nil)
		done <- result{msg, err}
	}()
	<-entered

	snap := th.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Pending)
	assert.False(t, snap[0].Failed)
	assert.True(t, randx.IsLocalID(snap[0].ID))
	assert.Equal(t, "hello", mentorship.BodyOf(snap[0].Content))
	localID := snap[0].ID

	assert.True(t, errs.HasCode(th.Delete(t.Context(), localID), errs.ErrMessageNotDelivered))
	assert.True(t, errs.HasCode(th.React(t.Context(), localID, "👍"), errs.ErrMessageNotDelivered))

	// A poll racing the write must not lose the entry.
	require.NoError(t, th.Refresh(t.Context()))
	snap = th.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Pending)

	release()
	res := <-done
	require.NoError(t, res.err)
	assert.False(t, randx.IsLocalID(res.msg.ID))

	require.NoError(t, th.Refresh(t.Context()))
	snap = th.Snapshot()
	require.Len(t, snap, 1)
	assert.False(t, snap[0].Pending)
	assert.Equal(t, res.msg.ID, snap[0].ID)
	assert.Equal(t, "hello", mentorship.BodyOf(snap[0].Content))
}

func TestThreadEmptySendIsRejectedLocally(t *testing.T) {
	f := openThread(t, stuA)

	for _, body := range []string{"", "   \n\t"} {
		_, err := f.thread.Send(t.Context(), body, nil)
		require.Error(t, err)
		assert.True(t, errs.HasCode(err, errs.ErrMessageEmpty))
		assert.True(t, errs.IsKind(err, errs.KindValidation))
	}

	_, err := f.thread.Send(t.Context(), string(bytes.Repeat([]byte("x"), mentorship.MaxBodyBytes+1)), nil)
	assert.True(t, errs.HasCode(err, errs.ErrMessageContentTooLong))

	assert.Zero(t, f.backend.count("Send"))
	assert.Empty(t, f.thread.Snapshot())
}

func TestThreadAttachments(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread

	big := &Attachment{Name: "big.txt", Data: bytes.Repeat([]byte("a"), mentorship.MaxAttachmentSize+1)}
	_, err := th.Send(t.Context(), "see attached", big)
	assert.True(t, errs.HasCode(err, errs.ErrFileSizeTooLarge))

	exe := &Attachment{Name: "tool.exe", Data: []byte("MZ\x90\x00")}
	_, err = th.Send(t.Context(), "", exe)
	assert.True(t, errs.HasCode(err, errs.ErrFileTypeNotAllowed))
	assert.Zero(t, f.backend.count("Send"))

	notes := &Attachment{Name: "notes.txt", Data: []byte("week one notes\n")}
	sent, err := th.Send(t.Context(), "", notes)
	require.NoError(t, err)
	assert.Equal(t, mentorship.VariantFile, sent.Content.Variant())

	require.NoError(t, th.Refresh(t.Context()))
	msgs := th.Messages()
	require.Len(t, msgs, 1)
	file, ok := mentorship.FileOf(msgs[0].Content)
	require.True(t, ok)
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, int64(len(notes.Data)), file.Size)
}

func TestThreadSendFailure(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread

	f.backend.failWith("Send", errOffline)
	local, err := th.Send(t.Context(), "anyone there?", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindDelivery))
	assert.ErrorIs(t, err, errOffline)
	assert.True(t, randx.IsLocalID(local.ID))

	snap := th.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Failed)

	// The next poll replaces the thread wholesale.
	f.backend.failWith("Send", nil)
	require.NoError(t, th.Refresh(t.Context()))
	assert.Empty(t, th.Snapshot())

	_, _ = th.Send(t.Context(), "again", nil)
	require.NoError(t, th.Refresh(t.Context()))
	assert.Equal(t, []string{"again"}, bodies(th.Messages()))

	f.backend.failWith("Send", errOffline)
	local, err = th.Send(t.Context(), "lost", nil)
	require.Error(t, err)
	require.NoError(t, th.Delete(t.Context(), local.ID))
	assert.Equal(t, []string{"again"}, bodies(th.Messages()))
}

func TestThreadSendAfterServerEnded(t *testing.T) {
	f := openThread(t, stuA)
	_, err := f.w.svc.End(t.Context(), mentorMaya, stuA.ID)
	require.NoError(t, err)

	_, err = f.thread.Send(t.Context(), "hello?", nil)
	assert.True(t, errs.HasCode(err, errs.ErrRelationshipNotFound))
}

func TestThreadMarkRead(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread
	for _, body := range []string{"one", "two", "three"} {
		f.serverSend(t, mentorMaya, body)
	}
	f.serverSend(t, stuA, "mine")

	require.NoError(t, th.Refresh(t.Context()))
	assert.Equal(t, 3, th.UnreadCount())
	n, shown := th.Badge()
	assert.Equal(t, 3, n)
	assert.True(t, shown)

	require.NoError(t, th.MarkRead(t.Context()))
	assert.Zero(t, th.UnreadCount())

	require.NoError(t, th.Refresh(t.Context()))
	assert.Zero(t, th.UnreadCount(), "read flags survive the next poll")
	_, shown = th.Badge()
	assert.False(t, shown)

	require.NoError(t, th.MarkRead(t.Context()))
	assert.Zero(t, th.UnreadCount())
	assert.Equal(t, 2, f.backend.count("MarkRead"))

	// The mentor still sees the student's message as unread.
	mentorView, err := f.w.svc.Messages(t.Context(), mentorMaya, stuA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, UnreadCount(mentorView, user.RoleAlumni))
}

func TestThreadBadgeHiddenWhileMuted(t *testing.T) {
	w := newWorld(t, everyone()...)
	rels, err := w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID}, 1)
	require.NoError(t, err)
	_, err = w.svc.Send(t.Context(), mentorMaya, mentorship.SendInput{StudentID: stuA.ID, Body: "hi"})
	require.NoError(t, err)

	n := NewNotifier()
	th := NewThread(w.as(stuA), stuA, n, testOptions(newFakeClock())...)
	t.Cleanup(th.Close)
	require.NoError(t, th.Open(t.Context(), rels[0]))
	waitState(t, th, ThreadSynced)

	n.SetEnabled(false)
	count, shown := th.Badge()
	assert.Equal(t, 1, count)
	assert.False(t, shown)

	n.SetEnabled(true)
	_, shown = th.Badge()
	assert.True(t, shown)
}

func TestThreadPollsOnInterval(t *testing.T) {
	f := openThread(t, stuA)
	require.Equal(t, 1, f.backend.count("Messages"))

	f.serverSend(t, mentorMaya, "ping")
	f.clock.Tick(t, 30*time.Second)

	require.Eventually(t, func() bool { return len(f.thread.Messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.backend.count("Messages"))
}

func TestThreadNoPollingWhileNotificationsDisabled(t *testing.T) {
	w := newWorld(t, everyone()...)
	rels, err := w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID}, 1)
	require.NoError(t, err)

	b := w.as(stuA)
	clock := newFakeClock()
	n := NewNotifier()
	th := NewThread(b, stuA, n, testOptions(clock)...)
	t.Cleanup(th.Close)

	n.SetEnabled(false)
	require.NoError(t, th.Open(t.Context(), rels[0]))
	waitState(t, th, ThreadSynced)
	require.Equal(t, 1, b.count("Messages"), "opening always fetches")

	// Each tick is only delivered once the loop is back waiting, so the first two are
	// fully handled when the third returns.
	for range 3 {
		clock.Tick(t, 30*time.Second)
	}
	assert.Equal(t, 1, b.count("Messages"))

	n.SetEnabled(true)
	clock.Tick(t, 30*time.Second)
	require.Eventually(t, func() bool { return b.count("Messages") >= 2 }, 2*time.Second, 5*time.Millisecond)

	// A manual refresh works regardless of the switch.
	n.SetEnabled(false)
	before := b.count("Messages")
	require.NoError(t, th.Refresh(t.Context()))
	assert.GreaterOrEqual(t, b.count("Messages"), before+1)
}

func TestThreadDiscardsStaleFetch(t *testing.T) {
	w := newWorld(t, everyone()...)
	rels, err := w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID, stuB.ID}, 2)
	require.NoError(t, err)
	relFor := map[string]mentorship.Relationship{}
	for _, rel := range rels {
		relFor[rel.MenteeID] = rel
		_, err := w.svc.Send(t.Context(), mentorMaya, mentorship.SendInput{StudentID: rel.MenteeID, Body: "for " + rel.MenteeID})
		require.NoError(t, err)
	}

	b := w.as(mentorMaya)
	th := NewThread(b, mentorMaya, nil, testOptions(newFakeClock())...)
	t.Cleanup(th.Close)

	entered, release := b.holdNext("Messages")
	defer release()

	require.NoError(t, th.Open(t.Context(), relFor[stuA.ID]))
	<-entered

	require.NoError(t, th.Open(t.Context(), relFor[stuB.ID]))
	waitState(t, th, ThreadSynced)
	assert.Equal(t, []string{"for stu-b"}, bodies(th.Messages()))

	release()
	assert.Never(t, func() bool {
		msgs := th.Messages()
		return len(msgs) != 1 || msgs[0].StudentID != stuB.ID
	}, 200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 2, b.count("Messages"))
}

func TestThreadPollErrorKeepsSnapshot(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread
	f.serverSend(t, mentorMaya, "kept")
	require.NoError(t, th.Refresh(t.Context()))

	f.backend.failWith("Messages", errOffline)
	err := th.Refresh(t.Context())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindPoll))
	assert.Equal(t, ThreadError, th.State())
	assert.True(t, errs.HasCode(th.Err(), errs.ErrPollFailed))
	assert.Equal(t, []string{"kept"}, bodies(th.Messages()))

	f.backend.failWith("Messages", nil)
	require.NoError(t, th.Refresh(t.Context()))
	assert.Equal(t, ThreadSynced, th.State())
	assert.NoError(t, th.Err())
}

func TestThreadReact(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread
	msg := f.serverSend(t, mentorMaya, "welcome")
	require.NoError(t, th.Refresh(t.Context()))

	require.NoError(t, th.React(t.Context(), msg.ID, "👍"))
	require.NoError(t, th.React(t.Context(), msg.ID, "👍"))
	assert.Equal(t, 2, f.backend.count("React"))

	require.NoError(t, th.Refresh(t.Context()))
	msgs := th.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []mentorship.Reaction{{Emoji: "👍", UserID: stuA.ID}}, msgs[0].Reactions)

	assert.True(t, errs.HasCode(th.React(t.Context(), msg.ID, "  "), errs.ErrInvalidReaction))
	assert.True(t, errs.HasCode(th.React(t.Context(), "missing", "👍"), errs.ErrMessageNotFound))
}

func TestThreadDelete(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread
	theirs := f.serverSend(t, mentorMaya, "from maya")
	mine := f.serverSend(t, stuA, "oops")
	require.NoError(t, th.Refresh(t.Context()))

	err := th.Delete(t.Context(), theirs.ID)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
	assert.True(t, errs.HasCode(err, errs.ErrNotMessageSender))
	assert.Zero(t, f.backend.count("Delete"))
	assert.Len(t, th.Messages(), 2)

	require.NoError(t, th.Delete(t.Context(), mine.ID))
	assert.Equal(t, []string{"from maya"}, bodies(th.Messages()))

	require.NoError(t, th.Refresh(t.Context()))
	assert.Equal(t, []string{"from maya"}, bodies(th.Messages()))

	assert.True(t, errs.HasCode(th.Delete(t.Context(), mine.ID), errs.ErrMessageNotFound))
}

func TestThreadClose(t *testing.T) {
	f := openThread(t, stuA)
	th := f.thread
	f.serverSend(t, mentorMaya, "hi")
	require.NoError(t, th.Refresh(t.Context()))

	th.Close()
	assert.Equal(t, ThreadIdle, th.State())
	assert.Empty(t, th.Snapshot())
	_, open := th.Relationship()
	assert.False(t, open)

	assert.True(t, errs.HasCode(th.Refresh(t.Context()), errs.ErrNoThreadOpen))
	_, err := th.Send(t.Context(), "hello", nil)
	assert.True(t, errs.HasCode(err, errs.ErrNoThreadOpen))
	assert.True(t, errs.HasCode(th.MarkRead(t.Context()), errs.ErrNoThreadOpen))

	require.Eventually(t, func() bool { return len(f.clock.active()) == 0 }, 2*time.Second, 5*time.Millisecond,
		"closing stops the poll timer")

	select {
	case <-th.Changes():
	default:
		t.Fatal("expected a change signal")
	}
}
