package news

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

const newsCols = `id, title, content, image_url, type, publish_date, expiry_date,
	is_active, author_id, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var (
		it  Item
		typ string
	)
	err := row.Scan(&it.ID, &it.Title, &it.Content, &it.ImageURL, &typ, &it.PublishDate, &it.ExpiryDate,
		&it.IsActive, &it.AuthorID, &it.CreatedAt, &it.UpdatedAt)
	it.Type = Type(typ)
	return &it, err
}

func (r *repoPG) Create(ctx context.Context, it *Item) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO news (id, title, content, image_url, type, publish_date, expiry_date, is_active, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		it.ID, it.Title, it.Content, it.ImageURL, string(it.Type), it.PublishDate, it.ExpiryDate, it.IsActive, it.AuthorID,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("author does not exist")
	}
	if err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+newsCols+` FROM news WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, apperr.NotFound("news item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get news: %w", err)
	}
	return it, nil
}

func (r *repoPG) Update(ctx context.Context, it *Item) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE news SET title = $2, content = $3, image_url = $4, type = $5,
			publish_date = $6, expiry_date = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		it.ID, it.Title, it.Content, it.ImageURL, string(it.Type), it.PublishDate, it.ExpiryDate, it.IsActive,
	).Scan(&it.UpdatedAt)
	if db.IsNotFound(err) {
		return apperr.NotFound("news item not found")
	}
	if err != nil {
		return fmt.Errorf("update news: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("news item not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Item, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.VisibleAt != nil {
		args = append(args, *f.VisibleAt)
		n := len(args)
		where = append(where, fmt.Sprintf("is_active AND publish_date <= $%d AND (expiry_date IS NULL OR expiry_date > $%d)", n, n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM news`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}

	query := `SELECT ` + newsCols + ` FROM news` + clause +
		fmt.Sprintf(` ORDER BY publish_date DESC, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan news: %w", err)
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}
