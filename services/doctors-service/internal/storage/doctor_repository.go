package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinsys/clinic-services/libs/db"
	"github.com/clinsys/clinic-services/services/doctors-service/internal/model"
)

type DoctorRepository struct {
	pool *db.Pool
}

func NewDoctorRepository(pool *db.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

func (r *DoctorRepository) Create(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	d.ID = uuid.NewString()
	d.Active = true
	err := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, dni, full_name, specialty, email, active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING created_at
	`, d.ID, d.DNI, d.FullName, d.Specialty, d.Email).Scan(&d.CreatedAt)
	if err != nil {
		return model.Doctor{}, err
	}
	return d, nil
}

// FindByID resolves any doctor, active or not. The active flag travels to
// callers; the appointments workflow decides what to do with it.
func (r *DoctorRepository) FindByID(ctx context.Context, id string) (model.Doctor, error) {
	var d model.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, dni, full_name, specialty, email, active, created_at
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &d.DNI, &d.FullName, &d.Specialty, &d.Email, &d.Active, &d.CreatedAt)
	if err != nil {
		return model.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorRepository) FindBySpecialty(ctx context.Context, specialty string) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dni, full_name, specialty, email, active, created_at
		FROM doctors
		WHERE specialty = $1 AND active
		ORDER BY created_at
	`, specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Doctor
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.DNI, &d.FullName, &d.Specialty, &d.Email, &d.Active, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *DoctorRepository) Update(ctx context.Context, id string, fullName, specialty, email string) (model.Doctor, error) {
	var d model.Doctor
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET full_name = COALESCE(NULLIF($2, ''), full_name),
			specialty = COALESCE(NULLIF($3, ''), specialty),
			email = COALESCE(NULLIF($4, ''), email)
		WHERE id = $1
		RETURNING id, dni, full_name, specialty, email, active, created_at
	`, id, fullName, specialty, email).Scan(&d.ID, &d.DNI, &d.FullName, &d.Specialty, &d.Email, &d.Active, &d.CreatedAt)
	if err != nil {
		return model.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorRepository) Deactivate(ctx context.Context, id string) (model.Doctor, error) {
	var d model.Doctor
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET active = false
		WHERE id = $1
		RETURNING id, dni, full_name, specialty, email, active, created_at
	`, id).Scan(&d.ID, &d.DNI, &d.FullName, &d.Specialty, &d.Email, &d.Active, &d.CreatedAt)
	if err != nil {
		return model.Doctor{}, err
	}
	return d, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicateDNI(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
