package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/middleware"
	"github.com/MrEthical07/goContacts/session"
	"github.com/gorilla/mux"
)

const maxJSONBody = 1 << 20

// userResponse is the public view of an account.
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

func newUserResponse(p *session.Principal) userResponse {
	return userResponse{ID: p.ID, Username: p.Username, Email: p.Email, Avatar: p.Avatar}
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req goContacts.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	p, err := a.svc.Signup(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   newUserResponse(p),
		"detail": "User successfully created. Check your email for confirmation.",
	})
}

// loginRequest accepts the OAuth2 password form field names; username
// carries the email.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "invalid form body")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	default:
		if err := decodeJSON(w, r, &req); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	if req.Username == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	pair, err := a.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		a.writeError(w, r, goContacts.ErrRefreshInvalid)
		return
	}
	pair, err := a.svc.Refresh(r.Context(), token)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *api) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	err := a.svc.ConfirmEmail(r.Context(), mux.Vars(r)["token"])
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Email confirmed"})
	case errors.Is(err, goContacts.ErrEmailAlreadyConfirmed):
		writeJSON(w, http.StatusOK, map[string]string{"message": "Your email is already confirmed"})
	default:
		a.writeError(w, r, err)
	}
}

func (a *api) handleRequestEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := a.svc.RequestEmailConfirmation(r.Context(), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Check your email for confirmation."})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := a.svc.Logout(r.Context(), p); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
