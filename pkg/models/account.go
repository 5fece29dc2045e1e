package models

import "time"

// Provider identifies the kind of mail source backing an account.
type Provider string

const (
	ProviderGmail Provider = "gmail"
	ProviderIMAP  Provider = "imap"
)

// Account represents a connected mail account owned by one user.
type Account struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Email       string    `db:"email"`
	Label       string    `db:"label"`
	Provider    Provider  `db:"provider"`
	Credentials string    `db:"credentials"` // encrypted credential blob
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// DisplayLabel returns the label shown to the user, falling back to the
// account email when no label was set.
func (a *Account) DisplayLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Email
}
