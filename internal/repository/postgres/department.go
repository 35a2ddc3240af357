package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
)

func (r *departmentRepository) Create(ctx context.Context, dept *model.Department) error {
	query := `
		INSERT INTO departments (
			id, code, name, is_open, session_id, last_queue_number,
			opening_hours, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	dept.ID = uuid.New()
	dept.CreatedAt = time.Now()
	dept.UpdatedAt = time.Now()
	dept.OpeningHours = jsonOrEmpty(dept.OpeningHours)

	_, err := r.db.ExecContext(ctx, query,
		dept.ID,
		dept.Code,
		dept.Name,
		dept.IsOpen,
		dept.SessionID,
		dept.LastQueueNumber,
		dept.OpeningHours,
		dept.CreatedAt,
		dept.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}
	return nil
}

func (r *departmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var dept model.Department
	err := r.db.GetContext(ctx, &dept, `SELECT * FROM departments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &dept, nil
}

func (r *departmentRepository) GetByCode(ctx context.Context, code string) (*model.Department, error) {
	var dept model.Department
	err := r.db.GetContext(ctx, &dept, `SELECT * FROM departments WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]*model.Department, error) {
	var depts []*model.Department
	err := r.db.SelectContext(ctx, &depts, `SELECT * FROM departments ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return depts, nil
}

func (r *departmentRepository) SetOpen(ctx context.Context, code string, open bool) (*model.Department, error) {
	var dept model.Department
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockDepartmentByCode(ctx, tx, code, &dept); err != nil {
			return err
		}

		if open && !dept.IsOpen {
			// New open session: bump the session counter and reset the
			// queue number allocator.
			dept.SessionID++
			dept.LastQueueNumber = 0
		}
		dept.IsOpen = open
		dept.UpdatedAt = time.Now()

		_, err := tx.ExecContext(ctx, `
			UPDATE departments
			SET is_open = $1, session_id = $2, last_queue_number = $3, updated_at = $4
			WHERE id = $5
		`, dept.IsOpen, dept.SessionID, dept.LastQueueNumber, dept.UpdatedAt, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to update department: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

// lockDepartmentByCode takes the row lock serializing queue number
// allocation and head selection for one department.
func lockDepartmentByCode(ctx context.Context, tx *sqlx.Tx, code string, dest *model.Department) error {
	err := tx.GetContext(ctx, dest, `SELECT * FROM departments WHERE code = $1 FOR UPDATE`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock department: %w", err)
	}
	return nil
}

func lockDepartmentByID(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, dest *model.Department) error {
	err := tx.GetContext(ctx, dest, `SELECT * FROM departments WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock department: %w", err)
	}
	return nil
}
