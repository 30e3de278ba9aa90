package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists account metadata. An owner holds at most one account.
type Repository interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id string) (Account, error)
	GetByOwner(ctx context.Context, ownerID string) (Account, error)
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(account.OwnerID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO bank_accounts (id, owner_id, account_code, currency, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (owner_id) DO NOTHING`,
		accountID, ownerID, account.AccountCode, account.Currency, account.Status, account.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountExists
	}
	return nil
}

// Get fetches account metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return scanAccount(r.db.QueryRow(ctx, `SELECT id, owner_id, account_code, currency, status, created_at
        FROM bank_accounts WHERE id = $1`, accountID))
}

// GetByOwner fetches the account held by ownerID.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Account, error) {
	ownerUUID, err := uuid.Parse(ownerID)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return scanAccount(r.db.QueryRow(ctx, `SELECT id, owner_id, account_code, currency, status, created_at
        FROM bank_accounts WHERE owner_id = $1`, ownerUUID))
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a         Account
		createdAt time.Time
		idVal     uuid.UUID
		ownerID   uuid.UUID
	)
	if err := row.Scan(&idVal, &ownerID, &a.AccountCode, &a.Currency, &a.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	a.ID = idVal.String()
	a.OwnerID = ownerID.String()
	a.CreatedAt = createdAt.UTC()
	return a, nil
}
