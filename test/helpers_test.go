//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"
	"time"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/stores/memory"
	"github.com/MrEthical07/goContacts/session"
	"github.com/redis/go-redis/v9"
)

type capturedMailer struct {
	mu   sync.Mutex
	sent []goContacts.ConfirmationMessage
}

func (m *capturedMailer) SendConfirmation(_ context.Context, msg goContacts.ConfirmationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *capturedMailer) tokenFor(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Email == email {
			return m.sent[i].Token
		}
	}
	t.Fatalf("no confirmation mail for %s", email)
	return ""
}

func integrationConfig() goContacts.Config {
	cfg := goContacts.DefaultConfig()
	cfg.JWT.SecretKey = "integration-secret-integration-secret"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Audit.Enabled = false
	return cfg
}

// newIntegrationEngine wires an engine over in-memory stores and rdb.
func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient, mutate func(*goContacts.Config)) (*goContacts.Engine, *capturedMailer) {
	t.Helper()
	cfg := integrationConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	mailer := &capturedMailer{}
	engine, err := goContacts.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(memory.NewUsers()).
		WithContactStore(memory.NewContacts()).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mailer
}

// confirmedLogin signs up, confirms and logs in one account.
func confirmedLogin(t *testing.T, engine *goContacts.Engine, mailer *capturedMailer, email string) (goContacts.TokenPair, *session.Principal) {
	t.Helper()
	ctx := context.Background()
	if _, err := engine.Signup(ctx, goContacts.SignupRequest{Username: "it", Email: email, Password: "integration-pass"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if err := engine.ConfirmEmail(ctx, mailer.tokenFor(t, email)); err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}
	pair, err := engine.Login(ctx, email, "integration-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	p, err := engine.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	return pair, p
}

func sampleContact(name string) goContacts.ContactInput {
	return goContacts.ContactInput{
		Name:     name,
		Surname:  "Integration",
		Email:    name + "@contacts.test",
		Phone:    "+380501234567",
		Birthday: goContacts.DateOf(time.Now().AddDate(-30, 0, 2)),
	}
}
