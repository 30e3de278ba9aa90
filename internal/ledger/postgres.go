package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT a.id, COALESCE(SUM(e.amount), 0)
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var (
		id      uuid.UUID
		balance int64
	)
	if err := l.db.QueryRow(ctx, query, code).Scan(&id, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return 0, err
	}
	return balance, nil
}

// Post records a balanced posting between two accounts in one database transaction.
// Both account rows are locked in code order so concurrent postings cannot deadlock.
func (l *PostgresLedger) Post(ctx context.Context, p Posting) (TransactionResult, error) {
	if p.Amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransactionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	first, second := p.FromCode, p.ToCode
	if second < first {
		first, second = second, first
	}
	ids := make(map[string]uuid.UUID, 2)
	for _, code := range []string{first, second} {
		id, err := accountIDForCode(ctx, tx, code)
		if err != nil {
			return TransactionResult{}, err
		}
		ids[code] = id
	}
	fromAccountID, toAccountID := ids[p.FromCode], ids[p.ToCode]

	const existingTxQuery = `SELECT id, created_at FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var (
		existingTxID uuid.UUID
		existingAt   time.Time
	)
	if err := tx.QueryRow(ctx, existingTxQuery, p.ClientTxID, p.Kind).Scan(&existingTxID, &existingAt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return TransactionResult{}, err
		}
	} else {
		fromBal, err := balanceForAccount(ctx, tx, fromAccountID)
		if err != nil {
			return TransactionResult{}, err
		}
		toBal, err := balanceForAccount(ctx, tx, toAccountID)
		if err != nil {
			return TransactionResult{}, err
		}
		return TransactionResult{TransactionID: existingTxID.String(), FromBalance: fromBal, ToBalance: toBal, CreatedAt: existingAt.UTC()}, ErrDuplicateTransaction
	}

	fromBalance, err := balanceForAccount(ctx, tx, fromAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	if !IsSystemAccount(p.FromCode) && fromBalance < p.Amount {
		return TransactionResult{}, ErrInsufficientFunds
	}
	toBalance, err := balanceForAccount(ctx, tx, toAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	if err := checkRange(fromBalance, toBalance, p.Amount); err != nil {
		return TransactionResult{}, err
	}

	txID := uuid.New()
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		txID, p.ClientTxID, p.Kind, StatusCompleted, now); err != nil {
		return TransactionResult{}, err
	}

	const entryInsert = `INSERT INTO entries (id, transaction_id, account_id, amount, description, counterparty, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, entryInsert, uuid.New(), txID, fromAccountID, -p.Amount, p.Debit.Description, p.Debit.Counterparty, now); err != nil {
		return TransactionResult{}, err
	}
	if _, err := tx.Exec(ctx, entryInsert, uuid.New(), txID, toAccountID, p.Amount, p.Credit.Description, p.Credit.Counterparty, now); err != nil {
		return TransactionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransactionResult{}, err
	}

	return TransactionResult{
		TransactionID: txID.String(),
		FromBalance:   fromBalance - p.Amount,
		ToBalance:     toBalance + p.Amount,
		CreatedAt:     now,
	}, nil
}

// Statement returns the account's entries newest first.
func (l *PostgresLedger) Statement(ctx context.Context, code string, limit int) ([]StatementLine, error) {
	var accountID uuid.UUID
	if err := l.db.QueryRow(ctx, `SELECT id FROM accounts WHERE code = $1`, code).Scan(&accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return nil, err
	}

	query := `
        SELECT e.transaction_id, t.kind, e.amount, e.description, e.counterparty, e.created_at
        FROM entries e
        INNER JOIN transactions t ON t.id = e.transaction_id
        WHERE e.account_id = $1
        ORDER BY e.created_at DESC, e.id DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []StatementLine
	for rows.Next() {
		var (
			txID      uuid.UUID
			kind      string
			line      StatementLine
			createdAt time.Time
		)
		if err := rows.Scan(&txID, &kind, &line.Amount, &line.Description, &line.Counterparty, &createdAt); err != nil {
			return nil, err
		}
		line.TransactionID = txID.String()
		line.Type = lineType(kind, line.Amount)
		line.CreatedAt = createdAt.UTC()
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
