package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/randx"
)

// Store is the PostgreSQL mentorship.Repository.
type Store struct {
	pool *pgxpool.Pool
}

var _ mentorship.Repository = (*Store)(nil)

// NewStore wraps a migrated pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `u.id, u.role, u.display_name, u.department, u.skillset`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var role string
	if err := row.Scan(&u.ID, &role, &u.DisplayName, &u.Department, &u.Skillset); err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

func (s *Store) UpsertUser(ctx context.Context, u user.User) error {
	skills := u.Skillset
	if skills == nil {
		skills = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, role, display_name, department, skillset)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
		    display_name = EXCLUDED.display_name,
		    department = EXCLUDED.department,
		    skillset = EXCLUDED.skillset,
		    updated_at = NOW()`,
		u.ID, string(u.Role), u.DisplayName, u.Department, skills)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	if IsNoRows(err) {
		return user.User{}, fmt.Errorf("user %s: %w", id, mentorship.ErrNotFound)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (s *Store) ListAvailableMentors(ctx context.Context) ([]user.User, error) {
	return s.listUsers(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.role = 'alumni'
		  AND NOT EXISTS (
		      SELECT 1 FROM relationships r
		      WHERE r.mentor_id = u.id AND r.state = 'active')
		ORDER BY u.display_name, u.id`)
}

func (s *Store) ListAvailableStudents(ctx context.Context) ([]user.User, error) {
	return s.listUsers(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.role = 'student'
		  AND NOT EXISTS (
		      SELECT 1 FROM relationships r
		      WHERE r.mentee_id = u.id AND r.state = 'active')
		ORDER BY u.display_name, u.id`)
}

func (s *Store) listUsers(ctx context.Context, query string) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func (s *Store) StartRelationships(ctx context.Context, p mentorship.StartParams) ([]mentorship.Relationship, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin start: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serializes concurrent commits by the same mentor.
	var mentorRole string
	err = tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, p.MentorID).Scan(&mentorRole)
	if IsNoRows(err) || (err == nil && mentorRole != string(user.RoleAlumni)) {
		return nil, fmt.Errorf("mentor %s: %w", p.MentorID, mentorship.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock mentor %s: %w", p.MentorID, err)
	}

	var active int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM relationships WHERE mentor_id = $1 AND state = 'active'`,
		p.MentorID).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("count active: %w", err)
	}
	if active > 0 {
		return nil, mentorship.ErrMentorBusy
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO mentor_capacity (mentor_id, capacity) VALUES ($1, $2)
		ON CONFLICT (mentor_id) DO UPDATE SET capacity = EXCLUDED.capacity, updated_at = NOW()`,
		p.MentorID, p.Capacity)
	if err != nil {
		return nil, fmt.Errorf("record capacity: %w", err)
	}

	var rels []mentorship.Relationship
	for _, menteeID := range p.MenteeIDs {
		var role string
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, menteeID).Scan(&role)
		if IsNoRows(err) || (err == nil && role != string(user.RoleStudent)) {
			return nil, fmt.Errorf("student %s: %w", menteeID, mentorship.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("check student %s: %w", menteeID, err)
		}

		id := randx.RelationshipID()
		_, err = tx.Exec(ctx, `
			INSERT INTO relationships (id, mentor_id, mentee_id, state, started_at)
			VALUES ($1::uuid, $2, $3, 'active', $4)`,
			id, p.MentorID, menteeID, p.At)
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("student %s: %w", menteeID, mentorship.ErrMenteeTaken)
		}
		if err != nil {
			return nil, fmt.Errorf("insert relationship: %w", err)
		}

		rels = append(rels, mentorship.Relationship{
			ID:        id,
			MentorID:  p.MentorID,
			MenteeID:  menteeID,
			State:     mentorship.StateActive,
			StartedAt: p.At,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit start: %w", err)
	}

	for i := range rels {
		if mentee, err := s.GetUser(ctx, rels[i].MenteeID); err == nil {
			rels[i].Mentee = &mentee
		}
	}
	return rels, nil
}

const relationshipColumns = `r.id::text, r.mentor_id, r.mentee_id, r.state, r.started_at, r.ended_at`

func scanRelationship(row pgx.Row, extra ...any) (mentorship.Relationship, error) {
	var rel mentorship.Relationship
	var state string
	dest := append([]any{&rel.ID, &rel.MentorID, &rel.MenteeID, &state, &rel.StartedAt, &rel.EndedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return mentorship.Relationship{}, err
	}
	rel.State = mentorship.State(state)
	return rel, nil
}

func (s *Store) GetRelationship(ctx context.Context, id string) (mentorship.Relationship, error) {
	rel, err := scanRelationship(s.pool.QueryRow(ctx,
		`SELECT `+relationshipColumns+` FROM relationships r WHERE r.id::text = $1`, id))
	if IsNoRows(err) {
		return mentorship.Relationship{}, fmt.Errorf("relationship %s: %w", id, mentorship.ErrNotFound)
	}
	if err != nil {
		return mentorship.Relationship{}, fmt.Errorf("get relationship %s: %w", id, err)
	}
	return rel, nil
}

func (s *Store) ActiveForMentor(ctx context.Context, mentorID string) ([]mentorship.Relationship, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+relationshipColumns+`, `+userColumns+`
		FROM relationships r
		JOIN users u ON u.id = r.mentee_id
		WHERE r.mentor_id = $1 AND r.state = 'active'
		ORDER BY r.started_at, r.mentee_id`, mentorID)
	if err != nil {
		return nil, fmt.Errorf("list mentees: %w", err)
	}

	rels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (mentorship.Relationship, error) {
		var mentee user.User
		var role string
		rel, err := scanRelationship(row, &mentee.ID, &role, &mentee.DisplayName, &mentee.Department, &mentee.Skillset)
		mentee.Role = user.Role(role)
		rel.Mentee = &mentee
		return rel, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan mentees: %w", err)
	}
	return rels, nil
}

func (s *Store) ActiveForMentee(ctx context.Context, menteeID string) (mentorship.Relationship, error) {
	var mentor user.User
	var role string
	rel, err := scanRelationship(s.pool.QueryRow(ctx, `
		SELECT `+relationshipColumns+`, `+userColumns+`
		FROM relationships r
		JOIN users u ON u.id = r.mentor_id
		WHERE r.mentee_id = $1 AND r.state = 'active'`, menteeID),
		&mentor.ID, &role, &mentor.DisplayName, &mentor.Department, &mentor.Skillset)
	if IsNoRows(err) {
		return mentorship.Relationship{}, fmt.Errorf("active relationship for %s: %w", menteeID, mentorship.ErrNotFound)
	}
	if err != nil {
		return mentorship.Relationship{}, fmt.Errorf("get active relationship for %s: %w", menteeID, err)
	}
	mentor.Role = user.Role(role)
	rel.Mentor = &mentor
	return rel, nil
}

func (s *Store) EndRelationship(ctx context.Context, id string, at time.Time) (mentorship.Relationship, error) {
	rel, err := scanRelationship(s.pool.QueryRow(ctx, `
		UPDATE relationships r SET state = 'ended', ended_at = $2
		WHERE r.id::text = $1 AND r.state = 'active'
		RETURNING `+relationshipColumns, id, at))
	if IsNoRows(err) {
		return mentorship.Relationship{}, fmt.Errorf("active relationship %s: %w", id, mentorship.ErrNotFound)
	}
	if err != nil {
		return mentorship.Relationship{}, fmt.Errorf("end relationship %s: %w", id, err)
	}
	return rel, nil
}

func (s *Store) InsertMessage(ctx context.Context, m mentorship.Message) error {
	var fileID, fileName, fileMIME, fileKey *string
	var fileSize *int64
	if file, ok := mentorship.FileOf(m.Content); ok {
		fileID, fileName, fileMIME, fileKey = &file.ID, &file.Name, &file.MimeType, &file.Key
		fileSize = &file.Size
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, relationship_id, mentor_id, student_id, sender_id, sender_role,
		                      body, file_id, file_name, file_mime_type, file_size, file_key,
		                      is_read, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8::uuid, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.RelationshipID, m.MentorID, m.StudentID, m.SenderID, string(m.SenderRole),
		mentorship.BodyOf(m.Content), fileID, fileName, fileMIME, fileSize, fileKey,
		m.Read, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	return nil
}

const messageColumns = `m.id::text, m.relationship_id::text, m.mentor_id, m.student_id, m.sender_id,
	m.sender_role, m.body, m.file_id::text, m.file_name, m.file_mime_type, m.file_size, m.file_key,
	m.is_read, m.created_at`

func scanMessage(row pgx.Row) (mentorship.Message, error) {
	var m mentorship.Message
	var role, body string
	var fileID, fileName, fileMIME, fileKey *string
	var fileSize *int64

	err := row.Scan(&m.ID, &m.RelationshipID, &m.MentorID, &m.StudentID, &m.SenderID,
		&role, &body, &fileID, &fileName, &fileMIME, &fileSize, &fileKey,
		&m.Read, &m.Timestamp)
	if err != nil {
		return mentorship.Message{}, err
	}
	m.SenderRole = user.Role(role)

	var file *mentorship.FileRef
	if fileID != nil {
		file = &mentorship.FileRef{ID: *fileID}
		if fileName != nil {
			file.Name = *fileName
		}
		if fileMIME != nil {
			file.MimeType = *fileMIME
		}
		if fileSize != nil {
			file.Size = *fileSize
		}
		if fileKey != nil {
			file.Key = *fileKey
		}
	}

	m.Content, err = mentorship.NewContent(body, file)
	if err != nil {
		return mentorship.Message{}, fmt.Errorf("message %s: %w", m.ID, err)
	}
	m.Reactions = []mentorship.Reaction{}
	return m, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (mentorship.Message, error) {
	return s.getMessage(ctx, `m.id::text = $1`, id)
}

func (s *Store) GetMessageByFile(ctx context.Context, fileID string) (mentorship.Message, error) {
	return s.getMessage(ctx, `m.file_id::text = $1`, fileID)
}

func (s *Store) getMessage(ctx context.Context, where string, arg string) (mentorship.Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages m WHERE `+where, arg))
	if IsNoRows(err) {
		return mentorship.Message{}, fmt.Errorf("message %s: %w", arg, mentorship.ErrNotFound)
	}
	if err != nil {
		return mentorship.Message{}, fmt.Errorf("get message %s: %w", arg, err)
	}

	reactions, err := s.reactions(ctx, []string{m.ID})
	if err != nil {
		return mentorship.Message{}, err
	}
	if rs, ok := reactions[m.ID]; ok {
		m.Reactions = rs
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, relationshipID string) ([]mentorship.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.relationship_id::text = $1
		ORDER BY m.created_at, m.id`, relationshipID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (mentorship.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	reactions, err := s.reactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if rs, ok := reactions[msgs[i].ID]; ok {
			msgs[i].Reactions = rs
		}
	}
	return msgs, nil
}

func (s *Store) reactions(ctx context.Context, messageIDs []string) (map[string][]mentorship.Reaction, error) {
	out := make(map[string][]mentorship.Reaction)
	if len(messageIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT message_id::text, user_id, emoji
		FROM reactions
		WHERE message_id = ANY($1::uuid[])
		ORDER BY created_at, user_id`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var r mentorship.Reaction
		if err := rows.Scan(&messageID, &r.UserID, &r.Emoji); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		out[messageID] = append(out[messageID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", id, mentorship.ErrNotFound)
	}
	return nil
}

func (s *Store) AddReaction(ctx context.Context, messageID string, r mentorship.Reaction) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (message_id, user_id, emoji)
		VALUES ($1::uuid, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		messageID, r.UserID, r.Emoji)
	if IsForeignKeyViolation(err) {
		return false, fmt.Errorf("message %s: %w", messageID, mentorship.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("add reaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkRead(ctx context.Context, relationshipID, readerID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE relationship_id::text = $1 AND sender_id <> $2 AND NOT is_read`,
		relationshipID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
