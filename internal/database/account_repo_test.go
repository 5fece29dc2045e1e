package database

import (
	"context"
	"errors"
	"testing"

	"github.com/dkoval/mailtriage/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewInMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func testAccount(userID int64, email string) *models.Account {
	return &models.Account{
		UserID:      userID,
		Email:       email,
		Provider:    models.ProviderIMAP,
		Credentials: "encrypted-blob",
		IsActive:    true,
	}
}

func TestCreateAndGetAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	account := testAccount(1, "me@example.com")
	if err := db.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if account.ID == 0 {
		t.Fatal("CreateAccount did not set the id")
	}

	got, err := db.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if got.Email != "me@example.com" || got.Provider != models.ProviderIMAP || !got.IsActive {
		t.Errorf("unexpected account: %+v", got)
	}
}

func TestCreateAccount_Duplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.CreateAccount(ctx, testAccount(1, "me@example.com")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	err := db.CreateAccount(ctx, testAccount(1, "me@example.com"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// The same address under a different user is fine.
	if err := db.CreateAccount(ctx, testAccount(2, "me@example.com")); err != nil {
		t.Fatalf("CreateAccount for second user: %v", err)
	}
}

func TestGetAccountForUser_OwnershipCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	account := testAccount(1, "me@example.com")
	if err := db.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if _, err := db.GetAccountForUser(ctx, 1, account.ID); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := db.GetAccountForUser(ctx, 2, account.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign lookup should report ErrNotFound, got %v", err)
	}
}

func TestGetActiveAccountsByUserID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	active := testAccount(1, "a@example.com")
	inactive := testAccount(1, "b@example.com")
	other := testAccount(2, "c@example.com")
	for _, acc := range []*models.Account{active, inactive, other} {
		if err := db.CreateAccount(ctx, acc); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}
	if err := db.SetAccountActive(ctx, inactive.ID, false); err != nil {
		t.Fatalf("SetAccountActive: %v", err)
	}

	got, err := db.GetActiveAccountsByUserID(ctx, 1)
	if err != nil {
		t.Fatalf("GetActiveAccountsByUserID: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("expected only the active account, got %+v", got)
	}

	none, err := db.GetActiveAccountsByUserID(ctx, 99)
	if err != nil {
		t.Fatalf("lookup for unknown user: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no accounts, got %d", len(none))
	}
}

func TestUpdateAccountCredentials(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	account := testAccount(1, "me@example.com")
	if err := db.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if err := db.UpdateAccountCredentials(ctx, account.ID, "rotated-blob"); err != nil {
		t.Fatalf("UpdateAccountCredentials: %v", err)
	}
	got, err := db.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if got.Credentials != "rotated-blob" {
		t.Errorf("credentials not updated: %q", got.Credentials)
	}
}

func TestDeleteAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	account := testAccount(1, "me@example.com")
	if err := db.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := db.DeleteAccount(ctx, account.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := db.GetAccountByID(ctx, account.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
