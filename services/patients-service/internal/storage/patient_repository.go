package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinsys/clinic-services/libs/db"
	"github.com/clinsys/clinic-services/services/patients-service/internal/model"
)

type PatientRepository struct {
	pool *db.Pool
}

func NewPatientRepository(pool *db.Pool) *PatientRepository {
	return &PatientRepository{pool: pool}
}

// Create inserts an active patient. The dni column is unique; a collision
// surfaces through IsDuplicateDNI.
func (r *PatientRepository) Create(ctx context.Context, p model.Patient) (model.Patient, error) {
	p.ID = uuid.NewString()
	p.Active = true
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, dni, full_name, sex, email, active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING created_at
	`, p.ID, p.DNI, p.FullName, p.Sex, p.Email).Scan(&p.CreatedAt)
	if err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

func (r *PatientRepository) FindByID(ctx context.Context, id string) (model.Patient, error) {
	var p model.Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, dni, full_name, sex, email, active, created_at
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.DNI, &p.FullName, &p.Sex, &p.Email, &p.Active, &p.CreatedAt)
	if err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

// FindAll lists active patients only; deactivated ones stay hidden.
func (r *PatientRepository) FindAll(ctx context.Context) ([]model.Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dni, full_name, sex, email, active, created_at
		FROM patients
		WHERE active
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.DNI, &p.FullName, &p.Sex, &p.Email, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *PatientRepository) Update(ctx context.Context, id string, fullName, sex, email string) (model.Patient, error) {
	var p model.Patient
	err := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET full_name = COALESCE(NULLIF($2, ''), full_name),
			sex = COALESCE(NULLIF($3, ''), sex),
			email = COALESCE(NULLIF($4, ''), email)
		WHERE id = $1
		RETURNING id, dni, full_name, sex, email, active, created_at
	`, id, fullName, sex, email).Scan(&p.ID, &p.DNI, &p.FullName, &p.Sex, &p.Email, &p.Active, &p.CreatedAt)
	if err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

// Deactivate is the soft delete: the row stays for history, lookups by id
// keep resolving, FindAll stops listing it.
func (r *PatientRepository) Deactivate(ctx context.Context, id string) (model.Patient, error) {
	var p model.Patient
	err := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET active = false
		WHERE id = $1
		RETURNING id, dni, full_name, sex, email, active, created_at
	`, id).Scan(&p.ID, &p.DNI, &p.FullName, &p.Sex, &p.Email, &p.Active, &p.CreatedAt)
	if err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicateDNI(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
