package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/req"
	"mentorlink/internal/pkg/resp"
)

// SendInput is the JSON form of POST /api/mentorship/messages. Attachments need the
// multipart form with the same field names plus "file".
type SendInput struct {
	Message   string `json:"message"`
	StudentID string `json:"studentId,omitempty"`
}

// ReactInput is the body of POST /api/mentorship/messages/{id}/reactions.
type ReactInput struct {
	Emoji string `json:"emoji"`
}

// HandleListMessages returns the caller's thread, oldest first. Mentors name the student
// with ?studentId=.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msgs, err := deps.Service.Messages(r.Context(), caller, r.URL.Query().Get("studentId"))
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, msgs)
	}
}

// HandleSendMessage stores a message sent as JSON or as a multipart form with a file.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var in mentorship.SendInput

		if req.IsMultipart(r) {
			if customErr := req.SetupMultipart(w, r); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			defer r.MultipartForm.RemoveAll()

			in.Body = r.FormValue("message")
			in.StudentID = r.FormValue("studentId")

			file, header, err := r.FormFile("file")
			switch {
			case errors.Is(err, http.ErrMissingFile):
			case err != nil:
				resp.RespondError(w, r, errs.Wrap(errs.ErrFormParseFailed, err))
				return
			default:
				defer file.Close()
				in.File = &mentorship.Upload{Name: header.Filename, Size: header.Size, Reader: file}
			}
		} else {
			var input SendInput
			if customErr := req.BindJSON(w, r, &input); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			in.Body, in.StudentID = input.Message, input.StudentID
		}

		msg, err := deps.Service.Send(r.Context(), caller, in)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, msg)
	}
}

// HandleReact adds the caller's emoji to a message.
func HandleReact(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input ReactInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, err := deps.Service.React(r.Context(), caller, chi.URLParam(r, "id"), input.Emoji)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, msg)
	}
}

// HandleDeleteMessage deletes one of the caller's own messages.
func HandleDeleteMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Service.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMarkRead flags the counterpart's messages in the caller's thread as read.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		n, err := deps.Service.MarkRead(r.Context(), caller, r.URL.Query().Get("studentId"))
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, map[string]int{"marked": n})
	}
}
