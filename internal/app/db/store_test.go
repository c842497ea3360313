package db_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"mentorlink/internal/app/db"
	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

var (
	mentor  = user.User{ID: "db-mentor-1", Role: user.RoleAlumni, DisplayName: "Maya", Department: "CS", Skillset: []string{"go", "sql"}}
	mentor2 = user.User{ID: "db-mentor-2", Role: user.RoleAlumni, DisplayName: "Noor", Skillset: []string{}}
	alice   = user.User{ID: "db-stu-a", Role: user.RoleStudent, DisplayName: "Alice", Skillset: []string{}}
	bob     = user.User{ID: "db-stu-b", Role: user.RoleStudent, DisplayName: "Bob", Skillset: []string{}}
	carol   = user.User{ID: "db-stu-c", Role: user.RoleStudent, DisplayName: "Carol", Skillset: []string{}}
)

// newStoreService runs the mentorship rules on a migrated, emptied Postgres database.
// It skips unless DATABASE_URL points at a disposable database.
func newStoreService(t *testing.T) *mentorship.Service {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	truncate(t, pool)

	svc := mentorship.NewService(db.NewStore(pool), nil)

	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	})

	for _, u := range []user.User{mentor, mentor2, alice, bob, carol} {
		require.NoError(t, svc.RegisterUser(ctx, u))
	}
	return svc
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`TRUNCATE reactions, messages, relationships, mentor_capacity, users CASCADE`)
	require.NoError(t, err)
}

func TestStore_StartIsAtomicAndFiltersPools(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	students, err := svc.AvailableStudents(ctx, mentor)
	require.NoError(t, err)
	require.Equal(t, []user.User{alice, bob, carol}, students)

	// An unknown id rolls back the whole selection.
	_, err = svc.Start(ctx, mentor, []string{alice.ID, "nobody"}, 2)
	require.True(t, errs.HasCode(err, errs.ErrCandidateUnknown))
	mentees, err := svc.Mentees(ctx, mentor)
	require.NoError(t, err)
	require.Empty(t, mentees)

	_, err = svc.Start(ctx, mentor, []string{alice.ID, mentor2.ID}, 2)
	require.True(t, errs.HasCode(err, errs.ErrCandidateUnknown))

	rels, err := svc.Start(ctx, mentor, []string{alice.ID, bob.ID}, 3)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	for _, rel := range rels {
		require.Equal(t, mentorship.StateActive, rel.State)
		require.NotNil(t, rel.Mentee)
	}

	_, err = svc.Start(ctx, mentor, []string{carol.ID}, 3)
	require.True(t, errs.HasCode(err, errs.ErrMentorAlreadyAssigned))

	_, err = svc.Start(ctx, mentor2, []string{carol.ID, alice.ID}, 2)
	require.True(t, errs.HasCode(err, errs.ErrMenteeUnavailable))
	mentees, err = svc.Mentees(ctx, mentor2)
	require.NoError(t, err)
	require.Empty(t, mentees)

	students, err = svc.AvailableStudents(ctx, mentor2)
	require.NoError(t, err)
	require.Equal(t, []user.User{carol}, students)

	mentors, err := svc.AvailableMentors(ctx, carol)
	require.NoError(t, err)
	require.Equal(t, []user.User{mentor2}, mentors)

	mine, err := svc.StudentMentor(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, mine)
	require.Equal(t, mentor.ID, mine.MentorID)
	require.NotNil(t, mine.Mentor)
	require.Equal(t, []string{"go", "sql"}, mine.Mentor.Skillset)

	mentees, err = svc.Mentees(ctx, mentor)
	require.NoError(t, err)
	require.Len(t, mentees, 2)
}

func TestStore_EndFreesBothSides(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, mentor, []string{alice.ID}, 1)
	require.NoError(t, err)

	_, err = svc.End(ctx, mentor2, alice.ID)
	require.True(t, errs.HasCode(err, errs.ErrNotMentorParty))

	ended, err := svc.End(ctx, mentor, alice.ID)
	require.NoError(t, err)
	require.Equal(t, mentorship.StateEnded, ended.State)

	_, err = svc.End(ctx, mentor, alice.ID)
	require.True(t, errs.HasCode(err, errs.ErrRelationshipNotFound))

	none, err := svc.StudentMentor(ctx, alice)
	require.NoError(t, err)
	require.Nil(t, none)

	mentors, err := svc.AvailableMentors(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mentors, 2)

	_, err = svc.Start(ctx, mentor2, []string{alice.ID}, 1)
	require.NoError(t, err)
}

func TestStore_ThreadOperations(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, mentor, []string{alice.ID}, 1)
	require.NoError(t, err)

	first, err := svc.Send(ctx, alice, mentorship.SendInput{Body: "x<y and y>z"})
	require.NoError(t, err)
	second, err := svc.Send(ctx, mentor, mentorship.SendInput{StudentID: alice.ID, Body: "welcome"})
	require.NoError(t, err)

	msgs, err := svc.Messages(ctx, mentor, alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, first.ID, msgs[0].ID)
	require.Equal(t, "x<y and y>z", mentorship.BodyOf(msgs[0].Content))
	require.True(t, msgs[0].Timestamp.Before(msgs[1].Timestamp))

	_, err = svc.React(ctx, alice, second.ID, "👍")
	require.NoError(t, err)
	reacted, err := svc.React(ctx, alice, second.ID, "👍")
	require.NoError(t, err)
	require.Equal(t, []mentorship.Reaction{{Emoji: "👍", UserID: alice.ID}}, reacted.Reactions)

	_, err = svc.React(ctx, mentor, "missing", "👍")
	require.True(t, errs.HasCode(err, errs.ErrMessageNotFound))

	n, err := svc.MarkRead(ctx, alice, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = svc.MarkRead(ctx, alice, "")
	require.NoError(t, err)
	require.Zero(t, n)

	msgs, err = svc.Messages(ctx, alice, "")
	require.NoError(t, err)
	require.False(t, msgs[0].Read)
	require.True(t, msgs[1].Read)

	err = svc.Delete(ctx, mentor, first.ID)
	require.True(t, errs.HasCode(err, errs.ErrNotMessageSender))
	require.NoError(t, svc.Delete(ctx, alice, first.ID))

	msgs, err = svc.Messages(ctx, mentor, alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, second.ID, msgs[0].ID)

	_, err = svc.Messages(ctx, mentor2, alice.ID)
	require.True(t, errs.HasCode(err, errs.ErrNotRelationshipParty))
}

func TestStore_EnsureCallerKeepsProfileFields(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureCaller(ctx, user.User{ID: mentor.ID, Role: user.RoleAlumni, DisplayName: "Maya R."}))
	require.NoError(t, svc.EnsureCaller(ctx, user.User{ID: "db-stu-new", Role: user.RoleStudent}))

	mentors, err := svc.AvailableMentors(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mentors, 2)
	require.Equal(t, "Maya R.", mentors[0].DisplayName)
	require.Equal(t, "CS", mentors[0].Department)
	require.Equal(t, []string{"go", "sql"}, mentors[0].Skillset)

	students, err := svc.AvailableStudents(ctx, mentor)
	require.NoError(t, err)
	require.Len(t, students, 4)
}
