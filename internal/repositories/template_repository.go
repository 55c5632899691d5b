package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"montage/internal/httpkit"
	"montage/internal/models"
	"montage/internal/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS design_templates (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	design_json JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at  TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS design_templates_name_live
	ON design_templates (name) WHERE deleted_at IS NULL;
`

type TemplateRepository struct {
	db *pgxpool.Pool
}

func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// EnsureSchema creates the templates table when it does not exist yet.
func (r *TemplateRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "templates.schema", "failed to create templates table")
	}
	return nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	design, err := json.Marshal(t.Design)
	if err != nil {
		return errors.Wrap(err, "templates.create", "failed to encode design")
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO design_templates (id, name, description, design_json)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING created_at
	`, t.ID, t.Name, t.Description, design).Scan(&t.CreatedAt)
	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return errors.Newf(errors.CodeConflict, "template name already exists: %s", t.Name).
				WithField("name", t.Name)
		}
		if httpkit.IsUndefinedTable(err) {
			return errors.Unavailable("templates")
		}
		return errors.Wrap(err, "templates.create", "failed to insert template")
	}
	return nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]models.TemplateSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description,
			COALESCE(
				jsonb_array_length(design_json->'trackItems'),
				(SELECT count(*) FROM jsonb_object_keys(COALESCE(design_json->'trackItemsMap', '{}'::jsonb)))
			),
			created_at
		FROM design_templates
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "templates.list", "failed to query templates")
	}
	defer rows.Close()

	out := []models.TemplateSummary{}
	for rows.Next() {
		var t models.TemplateSummary
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Items, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "templates.list", "failed to scan template")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "templates.list", "failed to read templates")
	}
	return out, nil
}

// Get returns a live template. Soft-deleted templates are not found.
func (r *TemplateRepository) Get(ctx context.Context, id string) (*models.Template, error) {
	var (
		t      models.Template
		design []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, design_json, created_at, deleted_at
		FROM design_templates
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&t.ID, &t.Name, &t.Description, &design, &t.CreatedAt, &t.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("template", id)
		}
		return nil, errors.Wrap(err, "templates.get", "failed to load template")
	}
	if err := json.Unmarshal(design, &t.Design); err != nil {
		return nil, errors.Wrap(err, "templates.get", "stored design is not valid")
	}
	return &t, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE design_templates
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return errors.Wrap(err, "templates.delete", "failed to delete template")
	}
	if cmd.RowsAffected() == 0 {
		return errors.NotFound("template", id)
	}
	return nil
}
