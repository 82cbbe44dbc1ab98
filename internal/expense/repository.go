package expense

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Repository handles expense persistence. Participants are kept as a single
// JSONB document per expense.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const expenseColumns = `id, group_id, title, amount, payer_id, date, category, split_type, participants, notes, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*Expense, error) {
	e := &Expense{}
	var participants []byte
	if err := row.Scan(
		&e.ID,
		&e.GroupID,
		&e.Title,
		&e.Amount,
		&e.PayerID,
		&e.Date,
		&e.Category,
		&e.SplitType,
		&participants,
		&e.Notes,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(participants, &e.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants of %s: %w", e.ID, err)
	}
	return e, nil
}

// Create inserts a new expense
func (r *Repository) Create(ctx context.Context, e *Expense) error {
	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	query := `
		INSERT INTO expenses (id, group_id, title, amount, payer_id, date, category, split_type, participants, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		e.ID,
		e.GroupID,
		e.Title,
		e.Amount,
		e.PayerID,
		e.Date,
		e.Category,
		e.SplitType,
		string(participants),
		e.Notes,
	).Scan(&e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}

	return nil
}

// GetByID retrieves an expense by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`

	e, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return e, nil
}

// ListByGroupID retrieves a page of a group's expenses ordered by date, newest first
func (r *Repository) ListByGroupID(ctx context.Context, groupID string, limit, offset int) ([]*Expense, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM expenses WHERE group_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	query := `
		SELECT ` + expenseColumns + `
		FROM expenses
		WHERE group_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []*Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}

	return expenses, total, rows.Err()
}

// Update overwrites an expense if nobody else has written it since it was
// read. On success e.Version holds the new revision.
func (r *Repository) Update(ctx context.Context, e *Expense) error {
	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	query := `
		UPDATE expenses
		SET title = $3,
		    amount = $4,
		    payer_id = $5,
		    date = $6,
		    category = $7,
		    split_type = $8,
		    participants = $9,
		    notes = $10,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		e.ID,
		e.Version,
		e.Title,
		e.Amount,
		e.PayerID,
		e.Date,
		e.Category,
		e.SplitType,
		string(participants),
		e.Notes,
	).Scan(&e.Version, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("failed to update expense: %w", err)
	}

	return nil
}

// Delete removes an expense
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrExpenseNotFound
	}

	return nil
}
