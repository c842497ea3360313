package engine

import (
	"context"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

// ViewKind names what a user is shown.
type ViewKind int

const (
	// ViewStudentUnassigned is a student without a mentor: the mentor listing only.
	ViewStudentUnassigned ViewKind = iota + 1
	// ViewStudentAssigned is a student with a mentor and their thread.
	ViewStudentAssigned
	// ViewMentorSelect is a mentor without mentees, who may choose some.
	ViewMentorSelect
	// ViewMentorMentees is a mentor with mentees and one thread per mentee.
	ViewMentorMentees
)

func (k ViewKind) String() string {
	switch k {
	case ViewStudentUnassigned:
		return "student_unassigned"
	case ViewStudentAssigned:
		return "student_assigned"
	case ViewMentorSelect:
		return "mentor_select"
	case ViewMentorMentees:
		return "mentor_mentees"
	}
	return "unknown"
}

// View is the role-scoped data behind one screen.
type View struct {
	Kind ViewKind

	// Relationship is the student's mentor relationship.
	Relationship *mentorship.Relationship

	// Mentees are the mentor's active relationships.
	Mentees []mentorship.Relationship

	// AvailableMentors is the student-side listing. It is informational only.
	AvailableMentors []user.User

	// ListingErr is set when AvailableMentors could not be fetched.
	ListingErr error
}

// Router decides which parts of the engine a session may use.
type Router struct {
	session *Session
}

func NewRouter(s *Session) *Router {
	return &Router{session: s}
}

// Resolve refreshes the caller's relationships and returns the view for their role.
func (r *Router) Resolve(ctx context.Context) (View, error) {
	s := r.session
	if err := s.RefreshRelationships(ctx); err != nil {
		return View{}, err
	}
	current := s.current()

	if s.self.Role == user.RoleStudent {
		view := View{Kind: ViewStudentUnassigned}
		if len(current) > 0 {
			rel := current[0]
			view.Kind = ViewStudentAssigned
			view.Relationship = &rel
		}
		mentors, err := s.backend.AvailableMentors(ctx)
		if err != nil {
			view.ListingErr = errs.ForPoll(err)
		}
		view.AvailableMentors = mentors
		return view, nil
	}

	if len(current) == 0 {
		return View{Kind: ViewMentorSelect}, nil
	}
	r.AbandonSelection()
	return View{Kind: ViewMentorMentees, Mentees: current}, nil
}

// BeginSelection starts a selection of up to capacity mentees and loads the candidates.
// Only a mentor with no active mentees may select. The selector is returned even when the
// candidate fetch failed; it then refuses to commit.
func (r *Router) BeginSelection(ctx context.Context, capacity int) (*Selector, error) {
	s := r.session
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	if !s.self.Role.IsMentor() {
		return nil, errs.NewError(errs.ErrForbiddenRole)
	}
	if len(s.current()) > 0 {
		return nil, errs.NewError(errs.ErrMentorAlreadyAssigned)
	}

	sel, err := NewSelector(s.backend, s.self.ID, capacity)
	if err != nil {
		return nil, err
	}
	s.setSelector(sel)

	if _, err := sel.LoadCandidates(ctx); err != nil {
		s.log().Warn().Err(err).Msg("Candidate pool unavailable")
		return sel, err
	}
	return sel, nil
}

// CommitSelection commits the selection in progress and records the new relationships.
func (r *Router) CommitSelection(ctx context.Context) ([]mentorship.Relationship, error) {
	s := r.session
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	sel := s.Selector()
	if sel == nil {
		return nil, errs.NewError(errs.ErrSelectionEmpty)
	}

	rels, err := sel.Commit(ctx)
	if err != nil {
		return nil, err
	}

	s.store.SetCapacity(s.self.ID, sel.Capacity())
	if err := s.store.Add(rels...); err != nil {
		// The server accepted the selection; resync rather than trust the local cache.
		s.log().Warn().Err(err).Msg("Local relationship cache rejected new relationships")
		if rerr := s.RefreshRelationships(ctx); rerr != nil {
			return rels, rerr
		}
	}
	s.setSelector(nil)

	s.log().Info().Int("mentees", len(rels)).Msg("Selection committed")
	return rels, nil
}

// AbandonSelection discards the selection in progress.
func (r *Router) AbandonSelection() {
	r.session.setSelector(nil)
}

// OpenThread opens the conversation with counterpartID: the student's own mentor, or one of
// the mentor's mentees.
func (r *Router) OpenThread(ctx context.Context, counterpartID string) (*Thread, error) {
	s := r.session
	if err := s.requireActive(); err != nil {
		return nil, err
	}

	rel, ok := s.store.WithCounterpart(s.self.ID, counterpartID)
	if !ok {
		return nil, errs.NewError(errs.ErrNotRelationshipParty)
	}
	if err := s.thread.Open(ctx, rel); err != nil {
		return nil, err
	}
	return s.thread, nil
}

// CloseThread leaves the open conversation.
func (r *Router) CloseThread() {
	r.session.thread.Close()
}

// EndRelationship ends one of the mentor's relationships. The permission check runs on the
// local cache before anything is sent.
func (r *Router) EndRelationship(ctx context.Context, relationshipID string) (mentorship.Relationship, error) {
	s := r.session
	if err := s.requireActive(); err != nil {
		return mentorship.Relationship{}, err
	}

	rel, err := s.store.CheckEnd(relationshipID, s.self.ID)
	if err != nil {
		return mentorship.Relationship{}, err
	}

	if _, err := s.backend.End(ctx, rel.MenteeID); err != nil {
		return mentorship.Relationship{}, errs.ForWrite(err)
	}

	ended, err := s.store.End(relationshipID, s.self.ID, s.clock().Now())
	if err != nil {
		return mentorship.Relationship{}, err
	}

	if open, ok := s.thread.Relationship(); ok && open.ID == relationshipID {
		s.thread.Close()
	}
	return ended, nil
}
