// Package engine orchestrates marketplace operations: one method per
// operation, one transaction per method, status changes only through the
// lifecycle table.
package engine

import (
	"database/sql"
	"time"

	"gighub/internal/blob"
	"gighub/internal/config"
	"gighub/internal/events"
	"gighub/internal/payments"
	"gighub/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Payments payments.Processor
	Blobs    blob.Store
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, proc payments.Processor, store blob.Store) Engine {
	e := Engine{
		DB:       db,
		Repo:     repo.New(db),
		Config:   cfg,
		Payments: proc,
		Blobs:    store,
		Now:      time.Now,
	}
	e.Events = events.Writer{DB: db, Now: e.Now}
	return e
}

func (e Engine) now() string {
	if e.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return e.Now().UTC().Format(time.RFC3339)
}

func (e Engine) maxRevisions() int {
	if e.Config == nil {
		return 2
	}
	return e.Config.Jobs.MaxRevisions
}

// normalizePage applies the listing defaults: page >= 1, limit in [1,100].
func normalizePage(p repo.Page) repo.Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func strPtr(s string) *string {
	return &s
}
