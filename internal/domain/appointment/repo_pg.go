package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

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

// Times travel as minutes after midnight.
const apptCols = `a.id, a.patient_id, a.doctor_id, a.appointment_date,
	(EXTRACT(EPOCH FROM a.start_time) / 60)::int, (EXTRACT(EPOCH FROM a.end_time) / 60)::int,
	a.status, a.reason, a.notes, a.created_at, a.updated_at,
	p.first_name, p.last_name, d.first_name, d.last_name, d.doctor_specialty`

const apptFrom = ` FROM appointments a
	JOIN users p ON p.id = a.patient_id
	JOIN users d ON d.id = a.doctor_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		day        time.Time
		start, end int
		status     string
		patient    Party
		doctor     Party
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &day, &start, &end,
		&status, &a.Reason, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&patient.FirstName, &patient.LastName, &doctor.FirstName, &doctor.LastName, &doctor.DoctorSpecialty)
	if err != nil {
		return nil, err
	}
	a.Date = DayOf(day)
	a.StartTime, a.EndTime = Clock(start), Clock(end)
	a.Status = Status(status)
	patient.ID, doctor.ID = a.PatientID, a.DoctorID
	a.Patient, a.Doctor = &patient, &doctor
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date,
			start_time, end_time, status, reason, notes)
		VALUES ($1, $2, $3, $4,
			make_time($5::int / 60, $5::int % 60, 0), make_time($6::int / 60, $6::int % 60, 0),
			$7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date.Time, int(a.StartTime), int(a.EndTime),
		string(a.Status), a.Reason, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsExclusionViolation(err):
		return apperr.Conflict("the requested time slot is already booked")
	case db.IsForeignKeyViolation(err):
		return apperr.Validation("patient or doctor does not exist")
	default:
		return fmt.Errorf("insert appointment: %w", err)
	}
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, lock string) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.id = $1`+lock, id))
	if db.IsNotFound(err) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, id, "")
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, id, ` FOR UPDATE OF a`)
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $2, notes = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, string(a.Status), a.Notes,
	).Scan(&a.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return apperr.NotFound("appointment not found")
	case db.IsExclusionViolation(err):
		return apperr.Conflict("the requested time slot is already booked")
	default:
		return fmt.Errorf("update appointment: %w", err)
	}
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.Status != nil {
		add("a.status = $%d", string(*f.Status))
	}
	if f.Date != nil {
		add("a.appointment_date = $%d", f.Date.Time)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + apptFrom + clause +
		fmt.Sprintf(` ORDER BY a.appointment_date ASC, a.start_time ASC, a.id ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) ListDoctorDay(ctx context.Context, doctorID uuid.UUID, day Date) ([]*Appointment, error) {
	items, err := r.query(ctx, `SELECT `+apptCols+apptFrom+`
		WHERE a.doctor_id = $1
		  AND a.appointment_date >= $2 AND a.appointment_date < $3
		  AND a.status <> 'cancelled'
		ORDER BY a.start_time ASC`,
		doctorID, day.Time, day.Next().Time)
	if err != nil {
		return nil, fmt.Errorf("list doctor day: %w", err)
	}
	return items, nil
}

func (r *repoPG) LockDoctorDay(ctx context.Context, doctorID uuid.UUID, day Date) error {
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		"appointment:"+doctorID.String()+":"+day.String())
	if err != nil {
		return fmt.Errorf("lock doctor day: %w", err)
	}
	return nil
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
