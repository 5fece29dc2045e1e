package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/internal/secrets"
	"github.com/dkoval/mailtriage/pkg/models"
)

// Session pairs an account with its decrypted credentials for the
// duration of one request. Sessions are never cached.
type Session struct {
	Account     *models.Account
	Credentials mailsource.Credentials
}

// Store is the account persistence the resolver reads from.
type Store interface {
	GetActiveAccountsByUserID(ctx context.Context, userID int64) ([]*models.Account, error)
	GetAccountForUser(ctx context.Context, userID, accountID int64) (*models.Account, error)
}

// Resolver yields the set of connected accounts for a user together with
// the credential bundle needed to query each account's mail source.
type Resolver struct {
	store  Store
	cipher *secrets.Cipher
	logger *slog.Logger
}

// NewResolver creates a new account session resolver
func NewResolver(store Store, cipher *secrets.Cipher, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		cipher: cipher,
		logger: logger.With("component", "account_resolver"),
	}
}

// Resolve returns sessions for all of a user's active accounts. A user
// with no linked accounts gets an empty slice, not an error. An account
// whose credentials cannot be recovered is skipped with a logged reason
// so the remaining accounts still contribute.
func (r *Resolver) Resolve(ctx context.Context, userID int64) ([]Session, error) {
	accounts, err := r.store.GetActiveAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	sessions := make([]Session, 0, len(accounts))
	for _, account := range accounts {
		creds, err := r.decrypt(account)
		if err != nil {
			r.logger.Warn("skipping account with unusable credentials",
				"account_id", account.ID,
				"email", account.Email,
				"error", err,
			)
			continue
		}
		sessions = append(sessions, Session{Account: account, Credentials: creds})
	}
	return sessions, nil
}

// ResolveOne returns the session for a single named account. Unlike
// Resolve, a credential failure here is an error: the caller asked for
// this specific account and silence would be misleading.
func (r *Resolver) ResolveOne(ctx context.Context, userID, accountID int64) (*Session, error) {
	account, err := r.store.GetAccountForUser(ctx, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	creds, err := r.decrypt(account)
	if err != nil {
		return nil, fmt.Errorf("failed to recover credentials for account %d: %w", accountID, err)
	}
	return &Session{Account: account, Credentials: creds}, nil
}

// EncodeCredentials encrypts a credential bundle for storage on the
// account row.
func (r *Resolver) EncodeCredentials(creds mailsource.Credentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return r.cipher.Encrypt(string(raw))
}

func (r *Resolver) decrypt(account *models.Account) (mailsource.Credentials, error) {
	var creds mailsource.Credentials

	plain, err := r.cipher.Decrypt(account.Credentials)
	if err != nil {
		return creds, fmt.Errorf("decrypt: %w", err)
	}
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		return creds, fmt.Errorf("decode: %w", err)
	}
	return creds, nil
}
