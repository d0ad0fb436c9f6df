// Package app wires the process together: config, database, adapters,
// engine. Both the server and the CLI commands start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"gighub/internal/blob"
	"gighub/internal/config"
	"gighub/internal/db"
	"gighub/internal/domain"
	"gighub/internal/engine"
	"gighub/internal/migrate"
	"gighub/internal/payments"
	"gighub/internal/repo"
)

type App struct {
	DB     *sql.DB
	Engine engine.Engine
	Config *config.Config
}

// Load opens the workspace database, applies migrations and builds the
// engine with its adapters. An empty processor key id selects the fake
// processor, which keeps local development off the network.
func Load(workspace, configPath string) (*App, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.FromYAML(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			cfg = loaded
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var processor payments.Processor
	if cfg.Payments.KeyID == "" {
		processor = &payments.Fake{Secret: cfg.Payments.KeySecret}
	} else {
		processor = payments.NewRazorpay(cfg.Payments.KeyID, cfg.Payments.KeySecret)
	}
	store, err := blob.NewDiskStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &App{
		DB:     conn,
		Engine: engine.New(conn, cfg, processor, store),
		Config: cfg,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// EnsureAdmin seeds an active admin account when none exists, so a fresh
// workspace is immediately usable.
func (a *App) EnsureAdmin(ctx context.Context, name, email string) (domain.User, bool, error) {
	n, err := a.Engine.Repo.CountActiveAdmins(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	if n > 0 {
		u, err := a.Engine.Repo.GetUserByEmail(ctx, email)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, false, err
		}
		return u, false, nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	u := domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Engine.Repo.CreateUser(ctx, u); err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}
