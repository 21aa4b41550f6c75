package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, email, password_hash, first_name, last_name, role,
	phone_number, date_of_birth, doctor_specialty, profile_picture, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role,
		&u.PhoneNumber, &u.DateOfBirth, &u.DoctorSpecialty, &u.ProfilePicture, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role,
			phone_number, date_of_birth, doctor_specialty, profile_picture)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role),
		u.PhoneNumber, u.DateOfBirth, u.DoctorSpecialty, u.ProfilePicture,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("an account with this email already exists")
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *repoPG) getOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg))
	if db.IsNotFound(err) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *repoPG) UpdateProfile(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, phone_number = $4,
			date_of_birth = $5, doctor_specialty = $6, profile_picture = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.FirstName, u.LastName, u.PhoneNumber, u.DateOfBirth, u.DoctorSpecialty, u.ProfilePicture,
	).Scan(&u.UpdatedAt)
	if db.IsNotFound(err) {
		return apperr.NotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.Specialty != "" {
		args = append(args, "%"+f.Specialty+"%")
		where = append(where, fmt.Sprintf("doctor_specialty ILIKE $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userCols + ` FROM users` + clause +
		fmt.Sprintf(` ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *repoPG) RoleOf(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	var role string
	err := r.conn(ctx).QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role)
	if db.IsNotFound(err) {
		return "", apperr.NotFound("user not found")
	}
	if err != nil {
		return "", fmt.Errorf("lookup user role: %w", err)
	}
	return auth.Role(role), nil
}
