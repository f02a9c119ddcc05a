package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/migrate"
	"taskflow/internal/repo"
	"taskflow/internal/seed"
)

// Workspace bundles what a front-end needs to serve one workspace.
type Workspace struct {
	Dir     string
	Config  *config.Config
	DB      *sql.DB
	Repo    repo.Repo
	Session *Session
}

type OpenOptions struct {
	Dir string
	// Config overrides the workspace's taskflow.yml when set.
	Config *config.Config
	Now    func() time.Time
	Logger *log.Logger
}

// Open resolves config (taskflow.yml, else defaults), opens and migrates the
// workspace database and loads the session from it.
func Open(ctx context.Context, opts OpenOptions) (*Workspace, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadOptional(opts.Dir)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	conn, err := db.Open(db.Config{Workspace: opts.Dir})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}

	eng := engine.New()
	eng.Now = now
	eng.MonthEnd = engine.MonthEndPolicy(cfg.Recurrence.MonthEnd)

	seedTasks := []domain.Task{}
	if cfg.Storage.SeedDemoTasks {
		seedTasks = seed.Tasks(now())
	}
	sess, err := NewSession(ctx, SessionOptions{
		KV:        r,
		Engine:    eng,
		Users:     cfg.Users(),
		SeedTasks: seedTasks,
		Logger:    opts.Logger,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Workspace{Dir: opts.Dir, Config: cfg, DB: conn, Repo: r, Session: sess}, nil
}

func (w *Workspace) Close() error {
	return w.DB.Close()
}
