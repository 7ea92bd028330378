package main

import (
	"context"
	"database/sql"
	"fmt"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/avatar"
	"github.com/MrEthical07/goContacts/internal/confloader"
	"github.com/MrEthical07/goContacts/internal/logging"
	"github.com/MrEthical07/goContacts/internal/mail"
	"github.com/MrEthical07/goContacts/internal/stores"
	"github.com/MrEthical07/goContacts/internal/stores/contacts"
	"github.com/MrEthical07/goContacts/internal/stores/memory"
	"github.com/MrEthical07/goContacts/internal/stores/users"
	"github.com/redis/go-redis/v9"
)

// deps holds the engine's collaborators and how to release them.
type deps struct {
	users    goContacts.UserStore
	contacts goContacts.ContactStore
	avatars  goContacts.AvatarStore
	mailer   goContacts.Mailer
	redis    redis.UniversalClient

	closers []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg confloader.Config, log logging.Logger) (*deps, error) {
	d := &deps{}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn(ctx, "using in-memory stores, data is lost on restart")
		d.users = memory.NewUsers()
		d.contacts = memory.NewContacts()
	default:
		db, err := openDatabase(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		d.users = users.NewPostgresRepository(db)
		d.contacts = contacts.NewPostgresRepository(db)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// The cache and the limiters degrade without Redis.
			log.Warn(ctx, "redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		d.redis = client
		d.closers = append(d.closers, client.Close)
	} else {
		log.Warn(ctx, "redis not configured, principal cache and rate limits disabled")
	}

	if cfg.Avatar.Bucket != "" {
		store, err := avatar.NewS3Store(ctx, cfg.Avatar)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.avatars = store
	}

	switch cfg.Mail.Driver {
	case "smtp":
		m, err := mail.NewSMTPMailer(cfg.Mail.Config)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.mailer = m
	default:
		d.mailer = mail.NewLogMailer(log, cfg.Mail.BaseURL)
	}

	return d, nil
}

func openDatabase(ctx context.Context, cfg confloader.Config, log logging.Logger) (*sql.DB, error) {
	db, err := stores.Open(ctx, cfg.Database.DSN, cfg.Database.Pool)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := stores.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info(ctx, "database migrations applied")
	}
	return db, nil
}

func buildEngine(cfg confloader.Config, d *deps, log logging.Logger) (*goContacts.Engine, error) {
	b := goContacts.New().
		WithConfig(cfg.Config).
		WithUserStore(d.users).
		WithContactStore(d.contacts).
		WithMailer(d.mailer).
		WithLogger(log).
		WithDefaultAvatar(avatar.Gravatar)
	if d.redis != nil {
		b = b.WithRedis(d.redis)
	}
	if d.avatars != nil {
		b = b.WithAvatarStore(d.avatars)
	}
	return b.Build()
}
