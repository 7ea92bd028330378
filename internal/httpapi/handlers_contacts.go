package httpapi

import (
	"net/http"
	"strconv"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/middleware"
	"github.com/gorilla/mux"
)

func (a *api) handleListContacts(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	contacts, err := a.svc.ListContacts(r.Context(), p, limit, offset)
	a.writeContacts(w, r, contacts, err)
}

func (a *api) handleGetContact(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := a.svc.GetContact(r.Context(), p, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var in goContacts.ContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c, err := a.svc.CreateContact(r.Context(), p, in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *api) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in goContacts.ContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c, err := a.svc.UpdateContact(r.Context(), p, id, in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := a.svc.RemoveContact(r.Context(), p, id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleSearchName(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	contacts, err := a.svc.ContactsByName(r.Context(), p, mux.Vars(r)["name"])
	a.writeContacts(w, r, contacts, err)
}

func (a *api) handleSearchSurname(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	contacts, err := a.svc.ContactsBySurname(r.Context(), p, mux.Vars(r)["surname"])
	a.writeContacts(w, r, contacts, err)
}

func (a *api) handleSearchEmail(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	c, err := a.svc.ContactByEmail(r.Context(), p, mux.Vars(r)["email"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleBirthdays(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	days, ok := queryInt(w, r, "days")
	if !ok {
		return
	}
	contacts, err := a.svc.UpcomingBirthdays(r.Context(), p, days)
	a.writeContacts(w, r, contacts, err)
}

// writeContacts answers 404 for an empty result.
func (a *api) writeContacts(w http.ResponseWriter, r *http.Request, contacts []goContacts.Contact, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(contacts) == 0 {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "id must be an integer")
		return 0, false
	}
	return id, true
}
