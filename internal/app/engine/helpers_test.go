package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
)

var errOffline = errors.New("connection refused")

// memFiles is an in-memory mentorship.FileStore.
type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *memFiles) Upload(_ context.Context, key string, body io.Reader, _ string, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *memFiles) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "mem://" + key, nil
}

func (f *memFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

// world is one in-process server shared by several test users.
type world struct {
	svc *mentorship.Service
}

func newWorld(t *testing.T, users ...user.User) *world {
	t.Helper()

	svc := mentorship.NewService(mentorship.NewMemoryRepository(), &memFiles{objects: make(map[string][]byte)})
	var mu sync.Mutex
	ts := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ts = ts.Add(time.Second)
		return ts
	})

	for _, u := range users {
		require.NoError(t, svc.RegisterUser(context.Background(), u))
	}
	return &world{svc: svc}
}

// as returns a Backend acting for caller.
func (w *world) as(caller user.User) *fakeBackend {
	return &fakeBackend{
		svc:    w.svc,
		caller: caller,
		calls:  make(map[string]int),
		fail:   make(map[string]error),
		hold:   make(map[string]*hold),
	}
}

type hold struct {
	entered chan struct{}
	release chan struct{}
}

// fakeBackend is a Backend calling the Service in process. It counts calls, can fail an
// operation and can park the next call of an operation until released.
type fakeBackend struct {
	svc    *mentorship.Service
	caller user.User

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	hold  map[string]*hold
}

var _ Backend = (*fakeBackend)(nil)

func (b *fakeBackend) enter(_ context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	err := b.fail[op]
	h := b.hold[op]
	delete(b.hold, op)
	b.mu.Unlock()

	if h != nil {
		close(h.entered)
		<-h.release
	}
	return err
}

func (b *fakeBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *fakeBackend) failWith(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, op)
		return
	}
	b.fail[op] = err
}

// holdNext parks the next call of op, ignoring cancellation. It returns a channel closed
// once the call arrived and a function releasing it.
func (b *fakeBackend) holdNext(op string) (<-chan struct{}, func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	b.hold[op] = h
	b.mu.Unlock()

	var once sync.Once
	return h.entered, func() { once.Do(func() { close(h.release) }) }
}

func (b *fakeBackend) AvailableMentors(ctx context.Context) ([]user.User, error) {
	if err := b.enter(ctx, "AvailableMentors"); err != nil {
		return nil, err
	}
	return b.svc.AvailableMentors(ctx, b.caller)
}

func (b *fakeBackend) AvailableStudents(ctx context.Context) ([]user.User, error) {
	if err := b.enter(ctx, "AvailableStudents"); err != nil {
		return nil, err
	}
	return b.svc.AvailableStudents(ctx, b.caller)
}

func (b *fakeBackend) Mentees(ctx context.Context) ([]mentorship.Relationship, error) {
	if err := b.enter(ctx, "Mentees"); err != nil {
		return nil, err
	}
	return b.svc.Mentees(ctx, b.caller)
}

func (b *fakeBackend) StudentMentor(ctx context.Context) (*mentorship.Relationship, error) {
	if err := b.enter(ctx, "StudentMentor"); err != nil {
		return nil, err
	}
	return b.svc.StudentMentor(ctx, b.caller)
}

func (b *fakeBackend) Start(ctx context.Context, ids []string, capacity int) ([]mentorship.Relationship, error) {
	if err := b.enter(ctx, "Start"); err != nil {
		return nil, err
	}
	return b.svc.Start(ctx, b.caller, ids, capacity)
}

func (b *fakeBackend) End(ctx context.Context, menteeID string) (mentorship.Relationship, error) {
	if err := b.enter(ctx, "End"); err != nil {
		return mentorship.Relationship{}, err
	}
	return b.svc.End(ctx, b.caller, menteeID)
}

func (b *fakeBackend) Messages(ctx context.Context, studentID string) ([]mentorship.Message, error) {
	if err := b.enter(ctx, "Messages"); err != nil {
		return nil, err
	}
	return b.svc.Messages(ctx, b.caller, studentID)
}

func (b *fakeBackend) Send(ctx context.Context, r SendRequest) (mentorship.Message, error) {
	if err := b.enter(ctx, "Send"); err != nil {
		return mentorship.Message{}, err
	}
	in := mentorship.SendInput{StudentID: r.StudentID, Body: r.Body}
	if r.Attachment != nil {
		in.File = &mentorship.Upload{
			Name:   r.Attachment.Name,
			Size:   int64(len(r.Attachment.Data)),
			Reader: bytes.NewReader(r.Attachment.Data),
		}
	}
	return b.svc.Send(ctx, b.caller, in)
}

func (b *fakeBackend) React(ctx context.Context, messageID, emoji string) (mentorship.Message, error) {
	if err := b.enter(ctx, "React"); err != nil {
		return mentorship.Message{}, err
	}
	return b.svc.React(ctx, b.caller, messageID, emoji)
}

func (b *fakeBackend) Delete(ctx context.Context, messageID string) error {
	if err := b.enter(ctx, "Delete"); err != nil {
		return err
	}
	return b.svc.Delete(ctx, b.caller, messageID)
}

func (b *fakeBackend) MarkRead(ctx context.Context, studentID string) error {
	if err := b.enter(ctx, "MarkRead"); err != nil {
		return err
	}
	_, err := b.svc.MarkRead(ctx, b.caller, studentID)
	return err
}

// fakeClock hands out tickers that only fire on Tick.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) active() []*fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*fakeTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// Tick advances time and delivers one tick to every running ticker, waiting until each
// one was received.
func (c *fakeClock) Tick(t *testing.T, d time.Duration) {
	t.Helper()

	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	for _, tk := range c.active() {
		select {
		case tk.ch <- now:
		case <-time.After(2 * time.Second):
			t.Fatal("tick was not consumed")
		}
	}
}

type fakeTicker struct {
	clock   *fakeClock
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

func testOptions(clock *fakeClock) []Option {
	return []Option{WithClock(clock), WithPollInterval(30 * time.Second), WithLogger(zerolog.Nop())}
}

func waitState(t *testing.T, th *Thread, want ThreadState) {
	t.Helper()
	require.Eventually(t, func() bool { return th.State() == want }, 2*time.Second, 5*time.Millisecond,
		"thread never reached %s (now %s)", want, th.State())
}

func bodies(msgs []mentorship.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = mentorship.BodyOf(m.Content)
	}
	return out
}

var (
	mentorMaya = user.User{ID: "maya", Role: user.RoleAlumni, DisplayName: "Maya"}
	mentorNoor = user.User{ID: "noor", Role: user.RoleAlumni, DisplayName: "Noor"}
	stuA       = user.User{ID: "stu-a", Role: user.RoleStudent, DisplayName: "A"}
	stuB       = user.User{ID: "stu-b", Role: user.RoleStudent, DisplayName: "B"}
	stuC       = user.User{ID: "stu-c", Role: user.RoleStudent, DisplayName: "C"}
)

func everyone() []user.User {
	return []user.User{mentorMaya, mentorNoor, stuA, stuB, stuC}
}
