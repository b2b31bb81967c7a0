package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/warden/internal/database"
)

// RoleRepository answers group membership questions
type RoleRepository struct {
	db *database.DB
}

func NewRoleRepository(db *database.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// InRole reports whether the account belongs to the named group
func (r *RoleRepository) InRole(ctx context.Context, role, accountID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM auth_groups_users gu
			JOIN auth_groups g ON g.id = gu.group_id
			WHERE g.name = $1 AND gu.user_id = $2
		)
	`

	var member bool
	if err := r.db.Pool.QueryRow(ctx, query, role, accountID).Scan(&member); err != nil {
		return false, fmt.Errorf("failed to check role membership: %w", database.MapPostgresError(err))
	}
	return member, nil
}

// AddToRole puts the account in the named group, creating the group on first use
func (r *RoleRepository) AddToRole(ctx context.Context, role, accountID string) error {
	query := `
		WITH g AS (
			INSERT INTO auth_groups (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		)
		INSERT INTO auth_groups_users (group_id, user_id)
		SELECT id, $2 FROM g
		ON CONFLICT DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, role, accountID)
	return database.MapPostgresError(err)
}
