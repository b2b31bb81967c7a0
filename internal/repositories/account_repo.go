package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const accountColumns = `id, email, username, password_hash, banned, activated, force_pass_reset,
	reset_hash, last_login_at, last_login_ip, created_at, updated_at`

// lookupColumns are the account columns that may identify a login
var lookupColumns = map[string]bool{
	"email":    true,
	"username": true,
}

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner interface for scanning account rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account

	err := scanner.Scan(
		&account.ID, &account.Email, &account.Username, &account.PasswordHash,
		&account.Banned, &account.Activated, &account.ForcePassReset,
		&account.ResetHash, &account.LastLoginAt, &account.LastLoginIP,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &account, nil
}

// FindByField returns the single account whose field column equals value.
// Only email and username are accepted as field names.
func (r *AccountRepository) FindByField(ctx context.Context, field, value string) (*models.Account, error) {
	if !lookupColumns[field] {
		return nil, fmt.Errorf("%w: cannot look up accounts by %q", models.ErrBadRequest, field)
	}

	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE %s = $1`, accountColumns, pq.QuoteIdentifier(field))

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, value))
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO accounts (id, email, username, password_hash, banned, activated, force_pass_reset, reset_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s
	`, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Email, account.Username, account.PasswordHash,
		account.Banned, account.Activated, account.ForcePassReset, account.ResetHash,
		account.CreatedAt, account.UpdatedAt,
	))
}

// UpdatePasswordHash replaces only the stored password hash, leaving the
// account's flags as they are in the database.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := `UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`

	return r.execOne(ctx, query, hash, time.Now(), id)
}

// RecordLogin stamps the time and address of a completed login
func (r *AccountRepository) RecordLogin(ctx context.Context, id string, at time.Time, ip string) error {
	query := `UPDATE accounts SET last_login_at = $1, last_login_ip = $2, updated_at = $3 WHERE id = $4`

	return r.execOne(ctx, query, at, ip, time.Now(), id)
}

func (r *AccountRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
