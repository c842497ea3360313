package mentorship

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/randx"
)

// MemoryRepository is a Repository kept in process memory. It backs tests and
// single-process development servers.
type MemoryRepository struct {
	mu            sync.RWMutex
	users         map[string]user.User
	capacity      map[string]int
	relationships map[string]Relationship
	messages      map[string]Message
	order         []string
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[string]user.User),
		capacity:      make(map[string]int),
		relationships: make(map[string]Relationship),
		messages:      make(map[string]Message),
	}
}

func (m *MemoryRepository) UpsertUser(_ context.Context, u user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Skillset = slices.Clone(u.Skillset)
	m.users[u.ID] = u
	return nil
}

func (m *MemoryRepository) GetUser(_ context.Context, id string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *MemoryRepository) ListAvailableMentors(_ context.Context) ([]user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []user.User
	for _, u := range m.users {
		if u.Role != user.RoleAlumni {
			continue
		}
		if m.activeCountLocked(u.ID) > 0 {
			continue
		}
		out = append(out, u)
	}
	sortUsers(out)
	return out, nil
}

func (m *MemoryRepository) ListAvailableStudents(_ context.Context) ([]user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []user.User
	for _, u := range m.users {
		if u.Role != user.RoleStudent {
			continue
		}
		if _, ok := m.activeForMenteeLocked(u.ID); ok {
			continue
		}
		out = append(out, u)
	}
	sortUsers(out)
	return out, nil
}

func (m *MemoryRepository) StartRelationships(_ context.Context, p StartParams) ([]Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeCountLocked(p.MentorID) > 0 {
		return nil, ErrMentorBusy
	}

	for _, id := range p.MenteeIDs {
		u, ok := m.users[id]
		if !ok || u.Role != user.RoleStudent {
			return nil, fmt.Errorf("student %s: %w", id, ErrNotFound)
		}
		if _, taken := m.activeForMenteeLocked(id); taken {
			return nil, fmt.Errorf("student %s: %w", id, ErrMenteeTaken)
		}
	}

	m.capacity[p.MentorID] = p.Capacity

	created := make([]Relationship, 0, len(p.MenteeIDs))
	for _, id := range p.MenteeIDs {
		rel := Relationship{
			ID:        randx.RelationshipID(),
			MentorID:  p.MentorID,
			MenteeID:  id,
			State:     StateActive,
			StartedAt: p.At,
		}
		m.relationships[rel.ID] = rel
		created = append(created, m.withProfilesLocked(rel))
	}
	return created, nil
}

func (m *MemoryRepository) GetRelationship(_ context.Context, id string) (Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rel, ok := m.relationships[id]
	if !ok {
		return Relationship{}, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	return m.withProfilesLocked(rel), nil
}

func (m *MemoryRepository) ActiveForMentor(_ context.Context, mentorID string) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Relationship
	for _, rel := range m.relationships {
		if rel.MentorID == mentorID && rel.IsActive() {
			out = append(out, m.withProfilesLocked(rel))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].MenteeID < out[j].MenteeID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (m *MemoryRepository) ActiveForMentee(_ context.Context, menteeID string) (Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rel, ok := m.activeForMenteeLocked(menteeID)
	if !ok {
		return Relationship{}, fmt.Errorf("active relationship for %s: %w", menteeID, ErrNotFound)
	}
	return m.withProfilesLocked(rel), nil
}

func (m *MemoryRepository) EndRelationship(_ context.Context, id string, at time.Time) (Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rel, ok := m.relationships[id]
	if !ok || !rel.IsActive() {
		return Relationship{}, fmt.Errorf("active relationship %s: %w", id, ErrNotFound)
	}
	rel = rel.Ended(at)
	m.relationships[id] = rel
	return m.withProfilesLocked(rel), nil
}

func (m *MemoryRepository) InsertMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.messages[msg.ID]; exists {
		return fmt.Errorf("message %s already exists", msg.ID)
	}
	m.messages[msg.ID] = msg.Clone()
	m.order = append(m.order, msg.ID)
	return nil
}

func (m *MemoryRepository) GetMessage(_ context.Context, id string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return msg.Clone(), nil
}

func (m *MemoryRepository) GetMessageByFile(_ context.Context, fileID string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		msg, ok := m.messages[id]
		if !ok {
			continue
		}
		if file, has := FileOf(msg.Content); has && file.ID == fileID {
			return msg.Clone(), nil
		}
	}
	return Message{}, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
}

func (m *MemoryRepository) ListMessages(_ context.Context, relationshipID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Message{}
	for _, id := range m.order {
		msg, ok := m.messages[id]
		if ok && msg.RelationshipID == relationshipID {
			out = append(out, msg.Clone())
		}
	}
	SortByTimestamp(out)
	return out, nil
}

func (m *MemoryRepository) DeleteMessage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[id]; !ok {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	delete(m.messages, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return nil
}

func (m *MemoryRepository) AddReaction(_ context.Context, messageID string, r Reaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return false, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if msg.HasReaction(r.UserID, r.Emoji) {
		return false, nil
	}
	msg.Reactions = append(msg.Reactions, r)
	m.messages[messageID] = msg
	return true, nil
}

func (m *MemoryRepository) MarkRead(_ context.Context, relationshipID, readerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	marked := 0
	for id, msg := range m.messages {
		if msg.RelationshipID != relationshipID || msg.SenderID == readerID || msg.Read {
			continue
		}
		msg.Read = true
		m.messages[id] = msg
		marked++
	}
	return marked, nil
}

func (m *MemoryRepository) activeCountLocked(mentorID string) int {
	count := 0
	for _, rel := range m.relationships {
		if rel.MentorID == mentorID && rel.IsActive() {
			count++
		}
	}
	return count
}

func (m *MemoryRepository) activeForMenteeLocked(menteeID string) (Relationship, bool) {
	for _, rel := range m.relationships {
		if rel.MenteeID == menteeID && rel.IsActive() {
			return rel, true
		}
	}
	return Relationship{}, false
}

func (m *MemoryRepository) withProfilesLocked(rel Relationship) Relationship {
	if u, ok := m.users[rel.MentorID]; ok {
		rel.Mentor = &u
	}
	if u, ok := m.users[rel.MenteeID]; ok {
		rel.Mentee = &u
	}
	return rel
}

func sortUsers(users []user.User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName == users[j].DisplayName {
			return users[i].ID < users[j].ID
		}
		return users[i].DisplayName < users[j].DisplayName
	})
}
