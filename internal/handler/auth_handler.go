package handler

import (
	"net/http"
	"strings"

	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/auth/jwt"
	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/logx"
	"mentorlink/internal/pkg/req"
	"mentorlink/internal/pkg/resp"
)

// callerFrom turns the request's bearer identity into the user the service acts for.
func callerFrom(r *http.Request) (user.User, *errs.CustomError) {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	role, err := user.ParseRole(payload.Role)
	if err != nil {
		return user.User{}, errs.NewError(errs.ErrForbiddenRole)
	}

	return user.User{ID: payload.ID, Role: role, DisplayName: payload.DisplayName}, nil
}

// EnrollCaller records the bearer identity in the directory before the mentorship handlers run,
// so users known only to the identity service appear in listings and can be selected.
// It must run after jwt.RequireIdentity.
func EnrollCaller(deps *AppDeps) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, customErr := callerFrom(r)
			if customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}

			if err := deps.Service.EnsureCaller(r.Context(), caller); err != nil {
				logx.Error(err, "Failed to enroll caller", "user_id", caller.ID)
				resp.RespondErr(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandleIssueDevToken registers the posted user in the directory and signs a token for it.
// It is mounted only in development; production tokens come from the identity service.
func HandleIssueDevToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input user.User
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.ID = strings.TrimSpace(input.ID)
		input.DisplayName = strings.TrimSpace(input.DisplayName)
		if input.DisplayName == "" {
			input.DisplayName = input.ID
		}

		if err := deps.Service.RegisterUser(r.Context(), input); err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		token, err := jwt.GenerateToken(&jwt.Payload{
			ID:          input.ID,
			Role:        string(input.Role),
			DisplayName: input.DisplayName,
		}, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			resp.RespondError(w, r, errs.Wrap(errs.ErrUnknown, err))
			return
		}

		logx.Info("Issued development token", "user_id", input.ID, "role", input.Role)

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  input,
		})
	}
}
