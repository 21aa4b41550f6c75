package education

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const materialCols = `id, title, description, type, content, file_url, video_url, thumbnail_url,
	category, author_id, is_published, publish_date, created_at, updated_at`

func scanMaterial(row pgx.Row) (*Material, error) {
	var (
		m   Material
		typ string
	)
	err := row.Scan(&m.ID, &m.Title, &m.Description, &typ, &m.Content, &m.FileURL, &m.VideoURL, &m.ThumbnailURL,
		&m.Category, &m.AuthorID, &m.IsPublished, &m.PublishDate, &m.CreatedAt, &m.UpdatedAt)
	m.Type = Type(typ)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Material) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO educational_materials (id, title, description, type, content, file_url, video_url,
			thumbnail_url, category, author_id, is_published, publish_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		m.ID, m.Title, m.Description, string(m.Type), m.Content, m.FileURL, m.VideoURL,
		m.ThumbnailURL, m.Category, m.AuthorID, m.IsPublished, m.PublishDate,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("author does not exist")
	}
	if err != nil {
		return fmt.Errorf("insert educational material: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Material, error) {
	m, err := scanMaterial(r.conn(ctx).QueryRow(ctx, `SELECT `+materialCols+` FROM educational_materials WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, apperr.NotFound("material not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get educational material: %w", err)
	}
	return m, nil
}

func (r *repoPG) Update(ctx context.Context, m *Material) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE educational_materials SET title = $2, description = $3, type = $4, content = $5,
			file_url = $6, video_url = $7, thumbnail_url = $8, category = $9,
			is_published = $10, publish_date = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Title, m.Description, string(m.Type), m.Content, m.FileURL, m.VideoURL,
		m.ThumbnailURL, m.Category, m.IsPublished, m.PublishDate,
	).Scan(&m.UpdatedAt)
	if db.IsNotFound(err) {
		return apperr.NotFound("material not found")
	}
	if err != nil {
		return fmt.Errorf("update educational material: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM educational_materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete educational material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("material not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Material, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.PublishedOnly {
		args = append(args, f.Now)
		where = append(where, fmt.Sprintf("is_published AND publish_date <= $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM educational_materials`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count educational materials: %w", err)
	}

	query := `SELECT ` + materialCols + ` FROM educational_materials` + clause +
		fmt.Sprintf(` ORDER BY publish_date DESC, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list educational materials: %w", err)
	}
	defer rows.Close()
	var items []*Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan educational material: %w", err)
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
