package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goContacts "github.com/MrEthical07/goContacts"
)

// errorResponse maps an engine error to a status code and client message.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, goContacts.ErrAccountExists):
		return http.StatusConflict, "Account already exists"
	case errors.Is(err, goContacts.ErrUnknownEmail):
		return http.StatusUnauthorized, "Invalid email"
	case errors.Is(err, goContacts.ErrWrongPassword):
		return http.StatusUnauthorized, "Invalid password"
	case errors.Is(err, goContacts.ErrEmailNotConfirmed):
		return http.StatusUnauthorized, "Email not confirmed"
	case errors.Is(err, goContacts.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, goContacts.ErrRefreshInvalid):
		return http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, goContacts.ErrUnauthenticated):
		return http.StatusUnauthorized, goContacts.ErrUnauthenticated.Error()
	case errors.Is(err, goContacts.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, goContacts.ErrEmailTokenInvalid):
		return http.StatusBadRequest, "Verification error"
	case errors.Is(err, goContacts.ErrEmailTokenUnprocessable):
		return http.StatusUnprocessableEntity, "Invalid token for email verification"
	case errors.Is(err, goContacts.ErrContactNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, goContacts.ErrInvalidInput):
		return http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), goContacts.ErrInvalidInput.Error()+": ")
	case errors.Is(err, goContacts.ErrAvatarUploadFailed):
		return http.StatusBadGateway, "avatar upload failed"
	case errors.Is(err, goContacts.ErrUserStoreUnavailable), errors.Is(err, goContacts.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorResponse(err)
	if status >= http.StatusInternalServerError {
		a.log.Error(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeDetail(w, status, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
