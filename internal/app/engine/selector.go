package engine

import (
	"context"
	"slices"
	"sync"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

// Selector holds a mentor's choice of mentees before it is committed. At most maxCapacity
// mentees are chosen at any time. It fails closed: without a successfully loaded candidate
// pool nothing can be chosen or committed.
type Selector struct {
	mu          sync.Mutex
	backend     Backend
	mentorID    string
	maxCapacity int

	pool    []user.User
	loaded  bool
	poolErr error
	chosen  []string
}

// NewSelector starts an empty selection for mentorID with room for maxCapacity mentees.
func NewSelector(backend Backend, mentorID string, maxCapacity int) (*Selector, error) {
	if maxCapacity < 1 {
		return nil, errs.NewError(errs.ErrInvalidCapacity)
	}
	return &Selector{
		backend:     backend,
		mentorID:    mentorID,
		maxCapacity: maxCapacity,
	}, nil
}

// LoadCandidates fetches the students who have no mentor. On failure the previous pool and
// any chosen mentees are dropped.
func (s *Selector) LoadCandidates(ctx context.Context) ([]user.User, error) {
	pool, err := s.backend.AvailableStudents(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.pool, s.loaded, s.chosen = nil, false, nil
		s.poolErr = errs.ForPoll(err)
		return nil, s.poolErr
	}

	s.pool, s.loaded, s.poolErr = pool, true, nil
	s.chosen = slices.DeleteFunc(s.chosen, func(id string) bool { return !s.inPoolLocked(id) })
	return slices.Clone(pool), nil
}

// Candidates returns the loaded pool.
func (s *Selector) Candidates() []user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pool)
}

// PoolErr returns the error of the last failed candidate fetch.
func (s *Selector) PoolErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poolErr
}

func (s *Selector) Capacity() int { return s.maxCapacity }

// Chosen returns the chosen mentee ids in the order they were picked.
func (s *Selector) Chosen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chosen)
}

// IsChosen reports whether menteeID is currently chosen.
func (s *Selector) IsChosen(menteeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.chosen, menteeID)
}

// Toggle removes menteeID if chosen, otherwise adds it. It reports whether menteeID is
// chosen afterwards. Adding beyond capacity leaves the selection unchanged and returns
// ErrCapacityExceeded, which is informational.
func (s *Selector) Toggle(menteeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.chosen, menteeID); i >= 0 {
		s.chosen = slices.Delete(s.chosen, i, i+1)
		return false, nil
	}

	if !s.loaded {
		return false, errs.NewError(errs.ErrCandidatePoolUnavailable)
	}
	if !s.inPoolLocked(menteeID) {
		return false, errs.NewError(errs.ErrCandidateUnknown)
	}
	if len(s.chosen) >= s.maxCapacity {
		return false, errs.NewError(errs.ErrCapacityExceeded, s.maxCapacity)
	}

	s.chosen = append(s.chosen, menteeID)
	return true, nil
}

// Commit sends the whole selection in one request and clears it once the server confirmed.
// The server's relationships are returned, one per chosen mentee.
func (s *Selector) Commit(ctx context.Context) ([]mentorship.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, errs.NewError(errs.ErrCandidatePoolUnavailable)
	}
	if len(s.chosen) == 0 {
		return nil, errs.NewError(errs.ErrSelectionEmpty)
	}

	rels, err := s.backend.Start(ctx, slices.Clone(s.chosen), s.maxCapacity)
	if err != nil {
		return nil, errs.ForWrite(err)
	}

	s.chosen = nil
	return rels, nil
}

func (s *Selector) inPoolLocked(id string) bool {
	return slices.ContainsFunc(s.pool, func(u user.User) bool { return u.ID == id })
}
