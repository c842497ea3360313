package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mentorlink/internal/pkg/resp"
)

// HandleDownloadFile redirects a participant to a short-lived link for the attachment.
func HandleDownloadFile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := callerFrom(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		url, _, err := deps.Service.FileURL(r.Context(), caller, chi.URLParam(r, "id"))
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, url, http.StatusFound)
	}
}
