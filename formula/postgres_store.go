package formula

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresFormulaStore implements FormulaStore backed by PostgreSQL.
type PostgresFormulaStore struct {
	db *sql.DB
}

func NewPostgresFormulaStore(db *sql.DB) *PostgresFormulaStore {
	return &PostgresFormulaStore{db: db}
}

func (s *PostgresFormulaStore) Add(f *Formula) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM payroll_formulas WHERE formula_key = $1)
	`, f.Key).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check formula existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, f.Key)
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO payroll_formulas (id, formula_key, formula_expression, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.Key, f.Expression, f.Description, f.Active, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert formula: %w", err)
	}

	return nil
}

func (s *PostgresFormulaStore) Get(key string) (*Formula, error) {
	var f Formula
	err := s.db.QueryRow(`
		SELECT id, formula_key, formula_expression, description, active, created_at, updated_at
		FROM payroll_formulas
		WHERE formula_key = $1
	`, key).Scan(&f.ID, &f.Key, &f.Expression, &f.Description, &f.Active, &f.CreatedAt, &f.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get formula: %w", err)
	}

	return &f, nil
}

func (s *PostgresFormulaStore) List() ([]*Formula, error) {
	return s.list(false)
}

func (s *PostgresFormulaStore) ListActive() ([]*Formula, error) {
	return s.list(true)
}

func (s *PostgresFormulaStore) list(activeOnly bool) ([]*Formula, error) {
	query := `
		SELECT id, formula_key, formula_expression, description, active, created_at, updated_at
		FROM payroll_formulas
	`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY created_at ASC, formula_key ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list formulas: %w", err)
	}
	defer rows.Close()

	var out []*Formula
	for rows.Next() {
		var f Formula
		if err := rows.Scan(&f.ID, &f.Key, &f.Expression, &f.Description, &f.Active,
			&f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan formula: %w", err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating formulas: %w", err)
	}

	return out, nil
}

func (s *PostgresFormulaStore) Update(f *Formula) error {
	f.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE payroll_formulas
		SET formula_expression = $1, description = $2, active = $3, updated_at = $4
		WHERE formula_key = $5
	`, f.Expression, f.Description, f.Active, f.UpdatedAt, f.Key)
	if err != nil {
		return fmt.Errorf("failed to update formula: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, f.Key)
	}

	return nil
}

func (s *PostgresFormulaStore) Delete(key string) error {
	result, err := s.db.Exec(`
		DELETE FROM payroll_formulas
		WHERE formula_key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete formula: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return nil
}
