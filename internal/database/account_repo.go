package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/dkoval/mailtriage/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when trying to insert a duplicate record
var ErrAlreadyExists = errors.New("record already exists")

// CreateAccount creates a new connected account
func (db *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (user_id, email, label, provider, credentials, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		account.UserID,
		account.Email,
		account.Label,
		account.Provider,
		account.Credentials,
		account.IsActive,
		now,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetAccountByID returns an account by ID
func (db *DB) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	query := `SELECT * FROM accounts WHERE id = ?`
	err := db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetAccountForUser returns one of a user's accounts by account ID. It
// refuses to return accounts owned by another user.
func (db *DB) GetAccountForUser(ctx context.Context, userID, accountID int64) (*models.Account, error) {
	var account models.Account
	query := `SELECT * FROM accounts WHERE id = ? AND user_id = ?`
	err := db.GetContext(ctx, &account, query, accountID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetActiveAccountsByUserID returns all active accounts linked by a user.
// An empty slice is not an error: a user with no linked accounts simply
// has no mail to classify.
func (db *DB) GetActiveAccountsByUserID(ctx context.Context, userID int64) ([]*models.Account, error) {
	var accounts []*models.Account
	query := `SELECT * FROM accounts WHERE user_id = ? AND is_active = true ORDER BY created_at`
	err := db.SelectContext(ctx, &accounts, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccountCredentials replaces the encrypted credential blob
func (db *DB) UpdateAccountCredentials(ctx context.Context, id int64, credentials string) error {
	query := `UPDATE accounts SET credentials = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, credentials, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	return nil
}

// SetAccountActive sets the active status of an account
func (db *DB) SetAccountActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set account active: %w", err)
	}
	return nil
}

// DeleteAccount deletes an account
func (db *DB) DeleteAccount(ctx context.Context, id int64) error {
	query := `DELETE FROM accounts WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
