package catalog

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

const serviceCols = `id, name, description, price::float8, duration_minutes, category,
	image_url, is_active, created_at, updated_at`

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.Category,
		&s.ImageURL, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *MedicalService) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_services (id, name, description, price, duration_minutes,
			category, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description, s.Price, s.DurationMinutes, s.Category, s.ImageURL, s.IsActive,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("a service with this name already exists in the category")
	}
	if err != nil {
		return fmt.Errorf("insert medical service: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM medical_services WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, apperr.NotFound("service not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get medical service: %w", err)
	}
	return s, nil
}

func (r *repoPG) Update(ctx context.Context, s *MedicalService) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_services SET name = $2, description = $3, price = $4,
			duration_minutes = $5, category = $6, image_url = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.Name, s.Description, s.Price, s.DurationMinutes, s.Category, s.ImageURL, s.IsActive,
	).Scan(&s.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return apperr.NotFound("service not found")
	case db.IsUniqueViolation(err):
		return apperr.Conflict("a service with this name already exists in the category")
	default:
		return fmt.Errorf("update medical service: %w", err)
	}
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete medical service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicalService, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_services`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medical services: %w", err)
	}

	query := `SELECT ` + serviceCols + ` FROM medical_services` + clause +
		fmt.Sprintf(` ORDER BY category, name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list medical services: %w", err)
	}
	defer rows.Close()
	var items []*MedicalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan medical service: %w", err)
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
