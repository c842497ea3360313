package engine

import (
	"fmt"
	"sync"
	"time"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

// RelationshipStore is the session's read-through cache of active relationships. It does
// no I/O. A mentee appears in at most one active relationship and a mentor never holds more
// than their recorded capacity.
type RelationshipStore struct {
	mu       sync.RWMutex
	byID     map[string]mentorship.Relationship
	order    []string
	capacity map[string]int
}

// NewRelationshipStore returns an empty store.
func NewRelationshipStore() *RelationshipStore {
	return &RelationshipStore{
		byID:     make(map[string]mentorship.Relationship),
		capacity: make(map[string]int),
	}
}

// Replace swaps the cached set for a fresh server snapshot. Ended entries are ignored.
// Capacities are not checked here since the server already enforced them.
func (s *RelationshipStore) Replace(rels []mentorship.Relationship) error {
	next := NewRelationshipStore()
	for _, rel := range rels {
		if !rel.IsActive() {
			continue
		}
		if err := next.addLocked(rel); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID, s.order = next.byID, next.order
	return nil
}

// SetCapacity records how many mentees mentorID committed to.
func (s *RelationshipStore) SetCapacity(mentorID string, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity[mentorID] = capacity
}

// Add inserts newly started relationships. Either all of them are added or none.
func (s *RelationshipStore) Add(rels ...mentorship.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]mentorship.Relationship, len(s.byID)+len(rels))
	for id, rel := range s.byID {
		byID[id] = rel
	}
	trial := &RelationshipStore{byID: byID, order: append([]string(nil), s.order...), capacity: s.capacity}
	for _, rel := range rels {
		if err := trial.addLocked(rel); err != nil {
			return err
		}
	}

	s.byID, s.order = trial.byID, trial.order
	return nil
}

func (s *RelationshipStore) addLocked(rel mentorship.Relationship) error {
	if !rel.IsActive() {
		return fmt.Errorf("relationship %s is not active", rel.ID)
	}
	if _, exists := s.byID[rel.ID]; exists {
		return nil
	}

	mentorCount := 0
	for _, cur := range s.byID {
		if !cur.IsActive() {
			continue
		}
		if cur.MenteeID == rel.MenteeID {
			return errs.Wrap(errs.ErrMenteeUnavailable, fmt.Errorf("mentee %s already has relationship %s", rel.MenteeID, cur.ID))
		}
		if cur.MentorID == rel.MentorID {
			mentorCount++
		}
	}
	if limit, ok := s.capacity[rel.MentorID]; ok && mentorCount >= limit {
		return errs.NewError(errs.ErrCapacityExceeded, limit)
	}

	s.byID[rel.ID] = rel
	s.order = append(s.order, rel.ID)
	return nil
}

// Current returns the caller's active relationships: at most one for a student, any number
// for a mentor. No relationship is an ordinary, non-error answer.
func (s *RelationshipStore) Current(userID string, role user.Role) []mentorship.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []mentorship.Relationship
	for _, id := range s.order {
		rel := s.byID[id]
		if !rel.IsActive() {
			continue
		}
		switch {
		case role == user.RoleStudent && rel.MenteeID == userID:
			return []mentorship.Relationship{rel}
		case role == user.RoleAlumni && rel.MentorID == userID:
			out = append(out, rel)
		}
	}
	return out
}

// Get returns the relationship with id, active or ended.
func (s *RelationshipStore) Get(id string) (mentorship.Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.byID[id]
	return rel, ok
}

// WithCounterpart returns selfID's active relationship with counterpartID.
func (s *RelationshipStore) WithCounterpart(selfID, counterpartID string) (mentorship.Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		rel := s.byID[id]
		if rel.IsActive() && rel.Involves(selfID) && rel.Counterpart(selfID) == counterpartID {
			return rel, true
		}
	}
	return mentorship.Relationship{}, false
}

// CheckEnd reports whether actorID may end relationshipID without changing anything.
func (s *RelationshipStore) CheckEnd(relationshipID, actorID string) (mentorship.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkEndLocked(relationshipID, actorID)
}

func (s *RelationshipStore) checkEndLocked(relationshipID, actorID string) (mentorship.Relationship, error) {
	rel, ok := s.byID[relationshipID]
	if !ok || !rel.IsActive() {
		return mentorship.Relationship{}, errs.NewError(errs.ErrRelationshipNotFound)
	}
	if rel.MentorID != actorID {
		return mentorship.Relationship{}, errs.NewError(errs.ErrNotMentorParty)
	}
	return rel, nil
}

// End marks relationshipID ended at t and drops it from the active set. The mentee is not
// returned to any local pool; the next candidate fetch decides that.
func (s *RelationshipStore) End(relationshipID, actorID string, t time.Time) (mentorship.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, err := s.checkEndLocked(relationshipID, actorID)
	if err != nil {
		return mentorship.Relationship{}, err
	}
	rel = rel.Ended(t)
	s.byID[relationshipID] = rel
	return rel, nil
}

// Clear forgets everything, including recorded capacities.
func (s *RelationshipStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]mentorship.Relationship)
	s.order = nil
	s.capacity = make(map[string]int)
}
