package handler

import (
	"net/http"

	"mentorlink/internal/pkg/req"
	"mentorlink/internal/pkg/resp"
)

// StartInput is the body of POST /api/mentorship/start. Capacity defaults to the number
// of students.
type StartInput struct {
	StudentIDs []string `json:"studentIds"`
	Capacity   int      `json:"capacity,omitempty"`
}

// EndInput is the body of POST /api/mentorship/end.
type EndInput struct {
	MenteeID string `json:"menteeId"`
}

// HandleAvailableMentors lists alumni who can still take mentees.
func HandleAvailableMentors(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		mentors, err := deps.Service.AvailableMentors(r.Context(), caller)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, mentors)
	}
}

// HandleAvailableStudents lists students without a mentor.
func HandleAvailableStudents(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		students, err := deps.Service.AvailableStudents(r.Context(), caller)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, students)
	}
}

// HandleMentees lists the calling mentor's active relationships.
func HandleMentees(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		rels, err := deps.Service.Mentees(r.Context(), caller)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, rels)
	}
}

// HandleStudentMentor returns the calling student's relationship; data is omitted when the
// student has no mentor.
func HandleStudentMentor(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		rel, err := deps.Service.StudentMentor(r.Context(), caller)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		if rel == nil {
			resp.RespondSuccess(w, r, nil)
			return
		}
		resp.RespondSuccess(w, r, rel)
	}
}

// HandleStart commits a mentor's selection.
func HandleStart(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input StartInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		rels, err := deps.Service.Start(r.Context(), caller, input.StudentIDs, input.Capacity)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, rels)
	}
}

// HandleEnd ends one of the calling mentor's relationships.
func HandleEnd(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input EndInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		rel, err := deps.Service.End(r.Context(), caller, input.MenteeID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, rel)
	}
}
