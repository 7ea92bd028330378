// Package httpapi exposes the engine over HTTP.
//
// Routes live under /api: auth (signup, login, refresh, email
// confirmation, logout), users (me, avatar) and contact (CRUD, search,
// birthdays). Every error answers {"detail": "..."}; the mapping from
// engine errors to status codes lives in errors.go and nowhere else.
package httpapi
