package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/goContacts/middleware"
)

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserResponse(p))
}

func (a *api) handleAvatar(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())

	// Room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, a.maxAvatarBytes+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if header.Size > a.maxAvatarBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	updated, err := a.svc.UpdateAvatar(r.Context(), p, file, header.Size, contentType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}
