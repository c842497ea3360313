/*
Package resp provides helper functions for constructing and sending standardized HTTP JSON responses.

Every response shares one envelope: a business code, a message and optional data. The
mentorship client decodes the same envelope and rebuilds errors from its code.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/logx"
)

// JSONResponse defines the standardized JSON response structure returned by the application to clients.
type JSONResponse struct {
	// Code is the business status code (0 for success, see errs package otherwise).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the Content-Type and writes payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends a successful HTTP response (HTTP 200 OK).
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	res := JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	}
	RespondJSON(w, r, http.StatusOK, res)
}

// RespondError sends an HTTP response carrying the custom error's code and message.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if customErr.Cause != nil {
		logx.Error(customErr.Cause, "Request failed", "code", customErr.Code, "path", r.URL.Path)
	}

	res := JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	}
	RespondJSON(w, r, customErr.Status, res)
}

// RespondErr is RespondError for plain errors: CustomErrors are written as-is, anything
// else becomes ErrUnknown with err recorded as its cause.
func RespondErr(w http.ResponseWriter, r *http.Request, err error) {
	if customErr, ok := errs.As(err); ok {
		RespondError(w, r, customErr)
		return
	}
	RespondError(w, r, errs.Wrap(errs.ErrUnknown, err))
}
