package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/splitledger/internal/database"
)

// Repository handles group data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a group together with its owner membership
func (r *Repository) Create(ctx context.Context, g *Group, owner *GroupMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO groups (id, name, description, owner_id, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, g.ID, g.Name, g.Description, g.OwnerID, g.Currency).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO group_members (group_id, user_id, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING joined_at
	`, owner.GroupID, owner.UserID, owner.DisplayName, owner.Role).Scan(&owner.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group: %w", err)
	}
	return nil
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Group, error) {
	query := `
		SELECT id, name, description, owner_id, currency, created_at, updated_at
		FROM groups
		WHERE id = $1
	`

	g := &Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.OwnerID,
		&g.Currency,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return g, nil
}

// ListByUserID retrieves all groups a user belongs to, most recently updated first
func (r *Repository) ListByUserID(ctx context.Context, userID string) ([]*Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.owner_id, g.currency, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*Group{}
	for rows.Next() {
		g := &Group{}
		if err := rows.Scan(
			&g.ID,
			&g.Name,
			&g.Description,
			&g.OwnerID,
			&g.Currency,
			&g.CreatedAt,
			&g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// Update modifies an existing group
func (r *Repository) Update(ctx context.Context, id string, req *UpdateGroupRequest) (*Group, error) {
	query := `
		UPDATE groups
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    currency = COALESCE($4, currency),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, owner_id, currency, created_at, updated_at
	`

	g := &Group{}
	err := r.db.QueryRowContext(ctx, query, id, req.Name, req.Description, req.Currency).Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.OwnerID,
		&g.Currency,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return g, nil
}

// Delete removes a group with its members and expenses
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete dependents first (foreign key constraint)
	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group members: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group delete: %w", err)
	}
	return nil
}

// AddMember adds a user to a group
func (r *Repository) AddMember(ctx context.Context, m *GroupMember) (*GroupMember, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING joined_at
	`

	err := r.db.QueryRowContext(ctx, query, m.GroupID, m.UserID, m.DisplayName, m.Role).Scan(&m.JoinedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrMemberAlreadyExists
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return m, nil
}

// GetMembers retrieves all members of a group in join order
func (r *Repository) GetMembers(ctx context.Context, groupID string) ([]*GroupMember, error) {
	query := `
		SELECT group_id, user_id, display_name, role, joined_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	members := []*GroupMember{}
	for rows.Next() {
		m := &GroupMember{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.DisplayName, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// GetMember retrieves a specific member from a group
func (r *Repository) GetMember(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	query := `
		SELECT group_id, user_id, display_name, role, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`

	m := &GroupMember{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&m.GroupID,
		&m.UserID,
		&m.DisplayName,
		&m.Role,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return m, nil
}

// UpdateMember updates a member's display name or role
func (r *Repository) UpdateMember(ctx context.Context, groupID, userID string, req *UpdateMemberRequest) (*GroupMember, error) {
	query := `
		UPDATE group_members
		SET display_name = COALESCE($3, display_name),
		    role = COALESCE($4, role)
		WHERE group_id = $1 AND user_id = $2
		RETURNING group_id, user_id, display_name, role, joined_at
	`

	m := &GroupMember{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID, req.DisplayName, req.Role).Scan(
		&m.GroupID,
		&m.UserID,
		&m.DisplayName,
		&m.Role,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	return m, nil
}

// RemoveMember removes a user from a group
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}
