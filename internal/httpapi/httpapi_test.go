package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/stores/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendConfirmation(ctx context.Context, msg goContacts.ConfirmationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[msg.Email] = msg.Token
	return nil
}

func (m *captureMailer) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

type memAvatars struct {
	mu   sync.Mutex
	body map[string][]byte
	fail bool
}

func (a *memAvatars) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return "", errors.New("bucket unavailable")
	}
	a.body[key] = b
	return "https://cdn.test/" + key, nil
}

type apiHarness struct {
	srv     *httptest.Server
	engine  *goContacts.Engine
	mailer  *captureMailer
	avatars *memAvatars
	redis   *miniredis.Miniredis
}

func newAPIHarness(t *testing.T, mutate func(*goContacts.Config, *Options)) *apiHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goContacts.DefaultConfig()
	cfg.JWT.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Audit.Enabled = false

	registry := prometheus.NewRegistry()
	opts := Options{
		CORSOrigins:    []string{"https://app.example.com"},
		AuthRPS:        1000,
		AuthBurst:      1000,
		MaxAvatarBytes: 1024,
		Gatherer:       registry,
	}
	if mutate != nil {
		mutate(&cfg, &opts)
	}

	h := &apiHarness{
		mailer:  &captureMailer{tokens: map[string]string{}},
		avatars: &memAvatars{body: map[string][]byte{}},
		redis:   mr,
	}
	engine, err := goContacts.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(memory.NewUsers()).
		WithContactStore(memory.NewContacts()).
		WithAvatarStore(h.avatars).
		WithMailer(h.mailer).
		WithClock(func() time.Time { return testNow }).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	h.engine = engine

	opts.ContactLimiter = engine.ContactLimiter()
	h.srv = httptest.NewServer(NewRouter(engine, opts))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func detail(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[map[string]string](t, resp)["detail"]
}

// login signs up, confirms and logs in, returning the token pair.
func (h *apiHarness) login(t *testing.T, username, email string) goContacts.TokenPair {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username, "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/auth/confirmed_email/"+h.mailer.token(email), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[goContacts.TokenPair](t, resp)
}

func TestHealthchecker(t *testing.T) {
	h := newAPIHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/api/healthchecker", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["message"])
	assert.NotEmpty(t, resp.Header.Get(headerProcessTime))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	h.redis.Close()
	resp = h.do(t, http.MethodGet, "/api/healthchecker", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSignupFlow(t *testing.T) {
	h := newAPIHarness(t, nil)
	body := map[string]string{"username": "alice", "email": "alice@example.com", "password": "secret123"}

	resp := h.do(t, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	user := created["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotContains(t, user, "password")

	resp = h.do(t, http.MethodPost, "/api/auth/signup", "", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Account already exists", detail(t, resp))

	resp = h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"username": "x", "email": "bad", "password": "secret123"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Email not confirmed", detail(t, resp))
}

func TestConfirmEmail(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "secret123",
	})
	token := h.mailer.token("bob@example.com")
	require.NotEmpty(t, token)

	resp := h.do(t, http.MethodGet, "/api/auth/confirmed_email/"+token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Email confirmed", decode[map[string]string](t, resp)["message"])

	resp = h.do(t, http.MethodGet, "/api/auth/confirmed_email/"+token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Your email is already confirmed", decode[map[string]string](t, resp)["message"])

	resp = h.do(t, http.MethodGet, "/api/auth/confirmed_email/not-a-token", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	ghost, err := h.engine.Tokens().IssueEmail("ghost@example.com", 0)
	require.NoError(t, err)
	resp = h.do(t, http.MethodGet, "/api/auth/confirmed_email/"+ghost, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Verification error", detail(t, resp))
}

func TestRequestEmailDoesNotRevealAccounts(t *testing.T) {
	h := newAPIHarness(t, nil)

	resp := h.do(t, http.MethodPost, "/api/auth/request_email", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, h.mailer.token("nobody@example.com"))
}

func TestLoginFormAndFailures(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.login(t, "carol", "carol@example.com")

	form := url.Values{"username": {"carol@example.com"}, "password": {"secret123"}}
	resp, err := http.PostForm(h.srv.URL+"/api/auth/login", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[goContacts.TokenPair](t, resp)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)

	resp = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "carol@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid password", detail(t, resp))

	resp = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email", detail(t, resp))
}

func TestMeRequiresBearer(t *testing.T) {
	h := newAPIHarness(t, nil)
	pair := h.login(t, "erin", "erin@example.com")

	resp := h.do(t, http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[map[string]any](t, resp)
	assert.Equal(t, "erin", me["username"])

	resp = h.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	resp = h.do(t, http.MethodGet, "/api/users/me", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshAndLogout(t *testing.T) {
	h := newAPIHarness(t, nil)
	pair := h.login(t, "frank", "frank@example.com")

	resp := h.do(t, http.MethodGet, "/api/auth/refresh_token", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/auth/refresh_token", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fresh := decode[goContacts.TokenPair](t, resp)

	resp = h.do(t, http.MethodPost, "/api/auth/logout", fresh.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/auth/refresh_token", fresh.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid refresh token", detail(t, resp))
}

func TestContactsCRUD(t *testing.T) {
	h := newAPIHarness(t, nil)
	pair := h.login(t, "gina", "gina@example.com")
	tok := pair.AccessToken

	resp := h.do(t, http.MethodGet, "/api/contact", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	in := map[string]string{
		"name": "Ann", "surname": "Lee", "email": "ann@example.com",
		"phone": "+380501234567", "birthday": "1990-06-12", "description": "friend",
	}
	resp = h.do(t, http.MethodPost, "/api/contact", tok, in)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[goContacts.Contact](t, resp)
	assert.Equal(t, "Ann", created.Name)
	assert.Equal(t, "1990-06-12", created.Birthday.String())

	resp = h.do(t, http.MethodGet, "/api/contact/"+itoa(created.ID), tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/contact?limit=10&offset=0", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]goContacts.Contact](t, resp), 1)

	resp = h.do(t, http.MethodGet, "/api/contact/search/name/Ann", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/api/contact/search/surname/Nobody", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/api/contact/search/email/ann@example.com", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/contact/birthdays?days=7", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]goContacts.Contact](t, resp), 1)

	in["phone"] = "555"
	resp = h.do(t, http.MethodPut, "/api/contact/"+itoa(created.ID), tok, in)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "555", decode[goContacts.Contact](t, resp).Phone)

	resp = h.do(t, http.MethodDelete, "/api/contact/"+itoa(created.ID), tok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/api/contact/"+itoa(created.ID), tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", detail(t, resp))
}

func TestContactsValidation(t *testing.T) {
	h := newAPIHarness(t, nil)
	tok := h.login(t, "hank", "hank@example.com").AccessToken

	resp := h.do(t, http.MethodPost, "/api/contact", tok, map[string]string{
		"name": "", "surname": "Lee", "email": "ann@example.com", "phone": "1", "birthday": "1990-06-12",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/contact", tok, map[string]string{
		"name": "Ann", "surname": "Lee", "email": "ann@example.com", "phone": "1", "birthday": "not-a-date",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/contact?limit=abc", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/contact?limit=501", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestContactsOwnerScoped(t *testing.T) {
	h := newAPIHarness(t, nil)
	ivy := h.login(t, "ivy", "ivy@example.com").AccessToken
	jon := h.login(t, "jon", "jon@example.com").AccessToken

	resp := h.do(t, http.MethodPost, "/api/contact", ivy, map[string]string{
		"name": "Ann", "surname": "Lee", "email": "ann@example.com", "phone": "1", "birthday": "1990-06-12",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[goContacts.Contact](t, resp).ID

	resp = h.do(t, http.MethodGet, "/api/contact/"+itoa(id), jon, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = h.do(t, http.MethodDelete, "/api/contact/"+itoa(id), jon, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestContactsRateLimited(t *testing.T) {
	h := newAPIHarness(t, func(cfg *goContacts.Config, _ *Options) {
		cfg.RateLimit.ContactRequests = 2
	})
	tok := h.login(t, "kim", "kim@example.com").AccessToken

	for i := 0; i < 2; i++ {
		resp := h.do(t, http.MethodGet, "/api/contact", tok, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	resp := h.do(t, http.MethodGet, "/api/contact", tok, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	h.redis.FastForward(61 * time.Second)
	resp = h.do(t, http.MethodGet, "/api/contact", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRoutesThrottledPerIP(t *testing.T) {
	h := newAPIHarness(t, func(_ *goContacts.Config, o *Options) {
		o.AuthRPS = 0.001
		o.AuthBurst = 2
	})

	body := map[string]string{"username": "x@example.com", "password": "secret123"}
	h.do(t, http.MethodPost, "/api/auth/login", "", body)
	h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"username": "x", "email": "x@example.com", "password": "secret123"})
	resp := h.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func uploadAvatar(t *testing.T, h *apiHarness, token string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPatch, h.srv.URL+"/api/users/avatar", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAvatarUpload(t *testing.T) {
	h := newAPIHarness(t, nil)
	tok := h.login(t, "lena", "lena@example.com").AccessToken

	resp := uploadAvatar(t, h, tok, []byte("png-bytes"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[map[string]any](t, resp)
	assert.True(t, strings.HasPrefix(me["avatar"].(string), "https://cdn.test/avatars/lena"))

	resp = h.do(t, http.MethodGet, "/api/users/me", tok, nil)
	assert.Equal(t, me["avatar"], decode[map[string]any](t, resp)["avatar"])

	resp = uploadAvatar(t, h, tok, bytes.Repeat([]byte("x"), 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	h.avatars.mu.Lock()
	h.avatars.fail = true
	h.avatars.mu.Unlock()
	resp = uploadAvatar(t, h, tok, []byte("png"))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	h := newAPIHarness(t, nil)

	req, err := http.NewRequest(http.MethodOptions, h.srv.URL+"/api/contact", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newAPIHarness(t, nil)
	resp := h.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDPropagated(t *testing.T) {
	h := newAPIHarness(t, nil)
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/healthchecker", nil)
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "0b8e4f2a-6c1d-4e55-9a7b-3f0c2d1e8a90")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "0b8e4f2a-6c1d-4e55-9a7b-3f0c2d1e8a90", resp.Header.Get(headerRequestID))
}

func TestRecovererAnswers500(t *testing.T) {
	h := recoverer(nopLog())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{goContacts.ErrAccountExists, http.StatusConflict},
		{goContacts.ErrUnknownEmail, http.StatusUnauthorized},
		{goContacts.ErrEmailNotConfirmed, http.StatusUnauthorized},
		{goContacts.ErrRefreshInvalid, http.StatusUnauthorized},
		{goContacts.ErrRateLimited, http.StatusTooManyRequests},
		{goContacts.ErrEmailTokenInvalid, http.StatusBadRequest},
		{goContacts.ErrEmailTokenUnprocessable, http.StatusUnprocessableEntity},
		{goContacts.ErrContactNotFound, http.StatusNotFound},
		{goContacts.ErrUserStoreUnavailable, http.StatusServiceUnavailable},
		{goContacts.ErrAvatarUploadFailed, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		got, _ := errorResponse(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
