package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RememberTokenRepository stores persistent login tokens
type RememberTokenRepository struct {
	db *database.DB
}

// NewRememberTokenRepository creates a new RememberTokenRepository
func NewRememberTokenRepository(db *database.DB) *RememberTokenRepository {
	return &RememberTokenRepository{db: db}
}

// FindBySelector returns the unexpired token for selector
func (r *RememberTokenRepository) FindBySelector(ctx context.Context, selector string) (*models.RememberToken, error) {
	query := `
		SELECT id, selector, hashed_validator, user_id, expires, created_at
		FROM remember_tokens
		WHERE selector = $1 AND expires > $2
	`

	var token models.RememberToken
	err := r.db.Pool.QueryRow(ctx, query, selector, time.Now()).Scan(
		&token.ID, &token.Selector, &token.HashedValidator, &token.UserID, &token.Expires, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Create stores a freshly issued token
func (r *RememberTokenRepository) Create(ctx context.Context, token *models.RememberToken) error {
	return insertRememberToken(ctx, r.db.Pool, token)
}

// Replace swaps the account's token named by oldSelector for next in one
// transaction. When the old row is already gone, another request consumed it
// first and ErrNotFound is returned without inserting next.
func (r *RememberTokenRepository) Replace(ctx context.Context, accountID, oldSelector string, next *models.RememberToken) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`DELETE FROM remember_tokens WHERE selector = $1 AND user_id = $2`,
			oldSelector, accountID,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		return insertRememberToken(ctx, tx, next)
	})
}

// DeleteExpired removes every expired token and reports how many went
func (r *RememberTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM remember_tokens WHERE expires <= $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired remember tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRememberToken(ctx context.Context, db execer, token *models.RememberToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO remember_tokens (id, selector, hashed_validator, user_id, expires, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := db.Exec(ctx, query,
		token.ID, token.Selector, token.HashedValidator, token.UserID, token.Expires, token.CreatedAt,
	)
	return database.MapPostgresError(err)
}
