package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

// Session is one signed-in user's engine state. It is created with the user's identity and
// an authenticated Backend, started with Init after login and torn down on logout.
type Session struct {
	self     user.User
	backend  Backend
	opts     options
	logger   zerolog.Logger
	store    *RelationshipStore
	notifier *Notifier
	thread   *Thread

	mu       sync.Mutex
	active   bool
	selector *Selector
}

// NewSession builds an inactive session for self.
func NewSession(self user.User, backend Backend, opts ...Option) (*Session, error) {
	if err := self.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrUnauthorized, err)
	}
	o := buildOptions(opts)
	notifier := NewNotifier()
	return &Session{
		self:     self,
		backend:  backend,
		opts:     o,
		logger:   o.logger.With().Str("user_id", self.ID).Str("role", string(self.Role)).Logger(),
		store:    NewRelationshipStore(),
		notifier: notifier,
		thread:   NewThread(backend, self, notifier, opts...),
	}, nil
}

// Init loads the caller's relationships and activates the session. The session stays
// inactive when the first load fails, so Init can be retried.
func (s *Session) Init(ctx context.Context) error {
	if err := s.loadRelationships(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	s.logger.Info().Msg("Session started")
	return nil
}

// Teardown closes the open thread and forgets all session state.
func (s *Session) Teardown() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.selector = nil
	s.mu.Unlock()

	s.thread.Close()
	s.store.Clear()
	s.notifier.SetEnabled(true)

	if wasActive {
		s.logger.Info().Msg("Session ended")
	}
}

// RefreshRelationships reloads the caller's active relationships from the server.
func (s *Session) RefreshRelationships(ctx context.Context) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	return s.loadRelationships(ctx)
}

func (s *Session) loadRelationships(ctx context.Context) error {
	var rels []mentorship.Relationship
	switch s.self.Role {
	case user.RoleStudent:
		rel, err := s.backend.StudentMentor(ctx)
		if err != nil {
			return errs.ForPoll(err)
		}
		if rel != nil {
			rels = append(rels, *rel)
		}
	case user.RoleAlumni:
		mentees, err := s.backend.Mentees(ctx)
		if err != nil {
			return errs.ForPoll(err)
		}
		rels = mentees
	}

	if err := s.store.Replace(rels); err != nil {
		return errs.Wrap(errs.ErrPollFailed, err)
	}
	return nil
}

func (s *Session) Self() user.User           { return s.self }
func (s *Session) Backend() Backend          { return s.backend }
func (s *Session) Store() *RelationshipStore { return s.store }
func (s *Session) Notifier() *Notifier       { return s.notifier }
func (s *Session) Thread() *Thread           { return s.thread }
func (s *Session) clock() Clock              { return s.opts.clock }
func (s *Session) log() *zerolog.Logger      { return &s.logger }
func (s *Session) current() []mentorship.Relationship {
	return s.store.Current(s.self.ID, s.self.Role)
}

// Active reports whether Init ran and Teardown has not.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) requireActive() error {
	if !s.Active() {
		return errs.NewError(errs.ErrSessionInactive)
	}
	return nil
}

// Selector returns the selection in progress, if any.
func (s *Session) Selector() *Selector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector
}

func (s *Session) setSelector(sel *Selector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selector = sel
}
