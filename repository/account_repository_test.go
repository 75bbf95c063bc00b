package repository

import (
	"context"
	"errors"
	"testing"

	"ambulanceDispatch/internal/testutil"
	"ambulanceDispatch/models"
)

func TestDriverAccounts(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "repo_accounts")
	repo := NewAccountRepository(d)
	ctx := context.Background()

	acct := &models.DriverAccount{DriverID: "UNIT-101", Username: "asha", PasswordDigest: "h1", FullName: "Asha", CreatedAt: t0}
	if err := repo.CreateDriver(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}
	clash := &models.DriverAccount{DriverID: "UNIT-102", Username: "asha", PasswordDigest: "h2", FullName: "Other", CreatedAt: t0}
	if err := repo.CreateDriver(ctx, clash); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("username clash: %v", err)
	}
	ok, err := repo.DriverIDExists(ctx, "UNIT-101")
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}
	if err := repo.UpdateDriverDigest(ctx, "UNIT-101", "h3"); err != nil {
		t.Fatalf("update digest: %v", err)
	}
	got, err := repo.GetDriverByUsername(ctx, "asha")
	if err != nil || got == nil || got.PasswordDigest != "h3" || got.DriverID != "UNIT-101" {
		t.Fatalf("get by username: %+v %v", got, err)
	}
	if none, err := repo.GetDriverByID(ctx, "UNIT-999"); err != nil || none != nil {
		t.Fatalf("absent account: %+v %v", none, err)
	}
}

func TestOperators(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "repo_operators")
	repo := NewAccountRepository(d)
	ctx := context.Background()
	op := &models.Operator{Username: "COMMANDER", PasswordDigest: "h", DisplayName: "HQ", CreatedAt: t0}
	if err := repo.CreateOperator(ctx, op); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateOperator(ctx, op); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate: %v", err)
	}
	if err := repo.UpdateOperatorDigest(ctx, "COMMANDER", "h2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetOperator(ctx, "COMMANDER")
	if err != nil || got == nil || got.PasswordDigest != "h2" {
		t.Fatalf("get: %+v %v", got, err)
	}
}
