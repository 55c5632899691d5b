package handlers

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"montage/internal/capability"
	"montage/internal/jobs"
	"montage/internal/models"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/timeline"
)

// Submitter starts rendering a design and returns the pending job.
type Submitter interface {
	Submit(ctx context.Context, design timeline.Design) (jobs.Job, error)
}

// TemplateStore persists design templates.
type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	List(ctx context.Context) ([]models.TemplateSummary, error)
	Get(ctx context.Context, id string) (*models.Template, error)
	Delete(ctx context.Context, id string) error
}

type Deps struct {
	Jobs *jobs.Store
	Exec Submitter
	// Templates is nil when no database is configured.
	Templates TemplateStore
	SP        ports.StorageProvider
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	Caps      capability.Report
	// BaseURL prefixes output links in status responses.
	BaseURL string
	Log     *logger.Logger
}

type Handler struct {
	jobs      *jobs.Store
	exec      Submitter
	templates TemplateStore
	sp        ports.StorageProvider
	pool      *pgxpool.Pool
	rdb       *redis.Client
	caps      capability.Report
	baseURL   string
	log       *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		jobs:      d.Jobs,
		exec:      d.Exec,
		templates: d.Templates,
		sp:        d.SP,
		pool:      d.Pool,
		rdb:       d.RDB,
		caps:      d.Caps,
		baseURL:   strings.TrimRight(d.BaseURL, "/"),
		log:       log,
	}
}
