package httpapi

import (
	"context"
	"io"
	"net/http"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/logging"
	"github.com/MrEthical07/goContacts/middleware"
	"github.com/MrEthical07/goContacts/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the engine surface the handlers call. *goContacts.Engine
// satisfies it.
type Service interface {
	Signup(ctx context.Context, req goContacts.SignupRequest) (*session.Principal, error)
	Login(ctx context.Context, email, pass string) (goContacts.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (goContacts.TokenPair, error)
	Logout(ctx context.Context, p *session.Principal) error
	RequestEmailConfirmation(ctx context.Context, email string) error
	ConfirmEmail(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, accessToken string) (*session.Principal, error)
	UpdateAvatar(ctx context.Context, p *session.Principal, body io.Reader, size int64, contentType string) (*session.Principal, error)

	ListContacts(ctx context.Context, p *session.Principal, limit, offset int) ([]goContacts.Contact, error)
	GetContact(ctx context.Context, p *session.Principal, id int64) (*goContacts.Contact, error)
	ContactsByName(ctx context.Context, p *session.Principal, name string) ([]goContacts.Contact, error)
	ContactsBySurname(ctx context.Context, p *session.Principal, surname string) ([]goContacts.Contact, error)
	ContactByEmail(ctx context.Context, p *session.Principal, email string) (*goContacts.Contact, error)
	UpcomingBirthdays(ctx context.Context, p *session.Principal, days int) ([]goContacts.Contact, error)
	CreateContact(ctx context.Context, p *session.Principal, in goContacts.ContactInput) (*goContacts.Contact, error)
	UpdateContact(ctx context.Context, p *session.Principal, id int64, in goContacts.ContactInput) (*goContacts.Contact, error)
	RemoveContact(ctx context.Context, p *session.Principal, id int64) (*goContacts.Contact, error)

	Health(ctx context.Context) error
}

// Options tunes the router. Zero values disable the optional parts.
type Options struct {
	Log logging.Logger

	// ContactLimiter budgets every /api/contact request per user.
	ContactLimiter middleware.Limiter

	// AuthRPS and AuthBurst throttle signup, login and refresh per IP.
	AuthRPS   float64
	AuthBurst int

	CORSOrigins    []string
	MaxAvatarBytes int64

	// Gatherer is served on /metrics.
	Gatherer prometheus.Gatherer
}

const defaultMaxAvatarBytes = 5 << 20

type api struct {
	svc Service
	log logging.Logger

	maxAvatarBytes int64
}

// NewRouter wires every route and middleware around svc.
func NewRouter(svc Service, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logging.NewNop()
	}
	a := &api{svc: svc, log: log, maxAvatarBytes: opts.MaxAvatarBytes}
	if a.maxAvatarBytes <= 0 {
		a.maxAvatarBytes = defaultMaxAvatarBytes
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.HandleFunc("/api/healthchecker", a.handleHealth).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	requireUser := middleware.RequireUser(svc)
	throttle := middleware.IPThrottle(opts.AuthRPS, opts.AuthBurst)

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.Handle("/signup", throttle(http.HandlerFunc(a.handleSignup))).Methods(http.MethodPost)
	auth.Handle("/login", throttle(http.HandlerFunc(a.handleLogin))).Methods(http.MethodPost)
	auth.Handle("/refresh_token", throttle(http.HandlerFunc(a.handleRefresh))).Methods(http.MethodGet)
	auth.HandleFunc("/confirmed_email/{token}", a.handleConfirmEmail).Methods(http.MethodGet)
	auth.HandleFunc("/request_email", a.handleRequestEmail).Methods(http.MethodPost)
	auth.Handle("/logout", requireUser(http.HandlerFunc(a.handleLogout))).Methods(http.MethodPost)

	users := r.PathPrefix("/api/users").Subrouter()
	users.Use(requireUser)
	users.HandleFunc("/me", a.handleMe).Methods(http.MethodGet)
	users.HandleFunc("/avatar", a.handleAvatar).Methods(http.MethodPatch)

	contacts := r.PathPrefix("/api/contact").Subrouter()
	contacts.Use(requireUser)
	contacts.Use(middleware.RateLimit(opts.ContactLimiter, middleware.PrincipalKey))
	contacts.HandleFunc("", a.handleListContacts).Methods(http.MethodGet)
	contacts.HandleFunc("/", a.handleListContacts).Methods(http.MethodGet)
	contacts.HandleFunc("", a.handleCreateContact).Methods(http.MethodPost)
	contacts.HandleFunc("/", a.handleCreateContact).Methods(http.MethodPost)
	contacts.HandleFunc("/birthdays", a.handleBirthdays).Methods(http.MethodGet)
	contacts.HandleFunc("/search/name/{name}", a.handleSearchName).Methods(http.MethodGet)
	contacts.HandleFunc("/search/surname/{surname}", a.handleSearchSurname).Methods(http.MethodGet)
	contacts.HandleFunc("/search/email/{email}", a.handleSearchEmail).Methods(http.MethodGet)
	contacts.HandleFunc("/{id:[0-9]+}", a.handleGetContact).Methods(http.MethodGet)
	contacts.HandleFunc("/{id:[0-9]+}", a.handleUpdateContact).Methods(http.MethodPut)
	contacts.HandleFunc("/{id:[0-9]+}", a.handleDeleteContact).Methods(http.MethodDelete)

	// Outside the router so unmatched requests and CORS preflights pass
	// through them too.
	return chain(r,
		requestID,
		recoverer(log),
		accessLog(log),
		processTime,
		cors(opts.CORSOrigins),
		clientIP,
	)
}

// chain applies mws so the first one is outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Health(r.Context()); err != nil {
		a.log.Error(r.Context(), "health check failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error connecting to the database")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}
