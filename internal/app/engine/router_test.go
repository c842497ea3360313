package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

func newRouter(t *testing.T, w *world, self user.User) (*Router, *Session, *fakeBackend) {
	t.Helper()
	b := w.as(self)
	s, err := NewSession(self, b, testOptions(newFakeClock())...)
	require.NoError(t, err)
	require.NoError(t, s.Init(t.Context()))
	t.Cleanup(s.Teardown)
	return NewRouter(s), s, b
}

func TestNewSessionRequiresIdentity(t *testing.T) {
	_, err := NewSession(user.User{ID: "x", Role: "staff"}, nil)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
	_, err = NewSession(user.User{Role: user.RoleStudent}, nil)
	assert.True(t, errs.HasCode(err, errs.ErrUnauthorized))
}

func TestRouterMentorFlow(t *testing.T) {
	w := newWorld(t, everyone()...)
	r, s, b := newRouter(t, w, mentorMaya)

	view, err := r.Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ViewMentorSelect, view.Kind)

	sel, err := r.BeginSelection(t.Context(), 2)
	require.NoError(t, err)
	assert.Same(t, sel, s.Selector())
	assert.Len(t, sel.Candidates(), 3)

	_, err = sel.Toggle(stuA.ID)
	require.NoError(t, err)
	_, err = sel.Toggle(stuB.ID)
	require.NoError(t, err)

	rels, err := r.CommitSelection(t.Context())
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Nil(t, s.Selector())
	assert.Len(t, s.Store().Current(mentorMaya.ID, user.RoleAlumni), 2)

	view, err = r.Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ViewMentorMentees, view.Kind)
	assert.Len(t, view.Mentees, 2)

	_, err = r.BeginSelection(t.Context(), 1)
	assert.True(t, errs.HasCode(err, errs.ErrMentorAlreadyAssigned))

	th, err := r.OpenThread(t.Context(), stuA.ID)
	require.NoError(t, err)
	waitState(t, th, ThreadSynced)

	_, err = r.OpenThread(t.Context(), stuC.ID)
	assert.True(t, errs.HasCode(err, errs.ErrNotRelationshipParty))

	open, _ := th.Relationship()
	ended, err := r.EndRelationship(t.Context(), open.ID)
	require.NoError(t, err)
	assert.False(t, ended.IsActive())
	assert.Equal(t, ThreadIdle, th.State(), "ending the open relationship closes its thread")
	assert.Equal(t, 1, b.count("End"))

	_, err = r.EndRelationship(t.Context(), open.ID)
	assert.True(t, errs.HasCode(err, errs.ErrRelationshipNotFound))
	assert.Equal(t, 1, b.count("End"))

	view, err = r.Resolve(t.Context())
	require.NoError(t, err)
	require.Len(t, view.Mentees, 1)
	assert.Equal(t, stuB.ID, view.Mentees[0].MenteeID)

	// The ended mentee is available again on the server, not in any local pool.
	pool, err := w.svc.AvailableStudents(t.Context(), mentorMaya)
	require.NoError(t, err)
	assert.Len(t, pool, 2)
}

func TestRouterAbandonedSelection(t *testing.T) {
	w := newWorld(t, everyone()...)
	r, s, b := newRouter(t, w, mentorMaya)

	sel, err := r.BeginSelection(t.Context(), 1)
	require.NoError(t, err)
	_, err = sel.Toggle(stuA.ID)
	require.NoError(t, err)

	r.AbandonSelection()
	assert.Nil(t, s.Selector())

	_, err = r.CommitSelection(t.Context())
	assert.True(t, errs.HasCode(err, errs.ErrSelectionEmpty))
	assert.Zero(t, b.count("Start"))
}

func TestRouterSelectionWithoutCandidates(t *testing.T) {
	w := newWorld(t, everyone()...)
	r, _, b := newRouter(t, w, mentorMaya)

	b.failWith("AvailableStudents", errOffline)
	sel, err := r.BeginSelection(t.Context(), 2)
	require.Error(t, err)
	require.NotNil(t, sel)
	assert.True(t, errs.IsKind(err, errs.KindPoll))

	_, err = r.CommitSelection(t.Context())
	assert.True(t, errs.HasCode(err, errs.ErrCandidatePoolUnavailable))
	assert.Zero(t, b.count("Start"))
}

func TestRouterStudentViews(t *testing.T) {
	w := newWorld(t, everyone()...)
	r, s, b := newRouter(t, w, stuA)

	view, err := r.Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ViewStudentUnassigned, view.Kind)
	assert.Nil(t, view.Relationship)
	assert.Len(t, view.AvailableMentors, 2)

	_, err = r.BeginSelection(t.Context(), 1)
	assert.True(t, errs.HasCode(err, errs.ErrForbiddenRole))
	_, err = r.OpenThread(t.Context(), mentorMaya.ID)
	assert.True(t, errs.HasCode(err, errs.ErrNotRelationshipParty))

	_, err = w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID}, 1)
	require.NoError(t, err)

	view, err = r.Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ViewStudentAssigned, view.Kind)
	require.NotNil(t, view.Relationship)
	assert.Equal(t, mentorMaya.ID, view.Relationship.MentorID)
	require.Len(t, view.AvailableMentors, 1, "maya is full")
	assert.Equal(t, mentorNoor.ID, view.AvailableMentors[0].ID)

	_, err = r.OpenThread(t.Context(), mentorNoor.ID)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
	th, err := r.OpenThread(t.Context(), mentorMaya.ID)
	require.NoError(t, err)
	waitState(t, th, ThreadSynced)

	_, err = r.EndRelationship(t.Context(), view.Relationship.ID)
	assert.True(t, errs.HasCode(err, errs.ErrNotMentorParty))
	assert.Zero(t, b.count("End"))

	b.failWith("AvailableMentors", errOffline)
	view, err = r.Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ViewStudentAssigned, view.Kind)
	assert.True(t, errs.IsKind(view.ListingErr, errs.KindPoll))

	assert.Same(t, th, s.Thread())
}

func TestSessionTeardown(t *testing.T) {
	w := newWorld(t, everyone()...)
	_, err := w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID}, 1)
	require.NoError(t, err)
	r, s, _ := newRouter(t, w, stuA)

	th, err := r.OpenThread(t.Context(), mentorMaya.ID)
	require.NoError(t, err)
	waitState(t, th, ThreadSynced)
	s.Notifier().SetEnabled(false)

	s.Teardown()
	assert.False(t, s.Active())
	assert.Equal(t, ThreadIdle, th.State())
	assert.Empty(t, s.Store().Current(stuA.ID, user.RoleStudent))
	assert.True(t, s.Notifier().Enabled())

	_, err = r.Resolve(t.Context())
	assert.True(t, errs.HasCode(err, errs.ErrSessionInactive))
	_, err = r.OpenThread(t.Context(), mentorMaya.ID)
	assert.True(t, errs.HasCode(err, errs.ErrSessionInactive))

	require.NoError(t, s.Init(t.Context()))
	view, err := r.Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ViewStudentAssigned, view.Kind)
}

func TestSessionInitFailureLeavesSessionInactive(t *testing.T) {
	w := newWorld(t, everyone()...)
	_, err := w.svc.Start(t.Context(), mentorMaya, []string{stuA.ID}, 1)
	require.NoError(t, err)

	b := w.as(stuA)
	s, err := NewSession(stuA, b, testOptions(newFakeClock())...)
	require.NoError(t, err)
	t.Cleanup(s.Teardown)

	b.failWith("StudentMentor", errOffline)
	err = s.Init(t.Context())
	assert.True(t, errs.HasCode(err, errs.ErrPollFailed))
	assert.False(t, s.Active())
	assert.Empty(t, s.Store().Current(stuA.ID, user.RoleStudent))

	_, err = NewRouter(s).Resolve(t.Context())
	assert.True(t, errs.HasCode(err, errs.ErrSessionInactive))

	b.failWith("StudentMentor", nil)
	require.NoError(t, s.Init(t.Context()))
	assert.True(t, s.Active())
	assert.Len(t, s.Store().Current(stuA.ID, user.RoleStudent), 1)
}
