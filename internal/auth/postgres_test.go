package auth

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// selectUsers pins the full projection so the queries cannot drift away from
// the columns the users migration actually creates.
const selectUsers = `select id, email, first_name, last_name, user_type, is_active, is_superuser, password_hash, created_at from users`

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "user_type",
		"is_active", "is_superuser", "password_hash", "created_at",
	})
}

func TestPGStoreFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(selectUsers) + ` where id=`).
		WithArgs("u-1").
		WillReturnRows(userRows().AddRow("u-1", "a@x.com", "A", "X", "standard", true, false, "hash", created))

	store := NewPGStore(db)
	user, err := store.Find(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if user.Email != "a@x.com" || user.Type != UserTypeStandard || !user.IsActive {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectUsers) + ` where id=`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	store := NewPGStore(db)
	if _, err := store.Find(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreFindByEmailNormalizes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(selectUsers) + ` where email=`).
		WithArgs("a@x.com").
		WillReturnRows(userRows().AddRow("u-1", "a@x.com", "A", "X", "standard", true, false, "hash", created))

	store := NewPGStore(db)
	if _, err := store.FindByEmail(context.Background(), "  A@X.COM "); err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`insert into users(id, email, first_name, last_name, user_type, is_active, is_superuser, password_hash, created_at)`)).
		WithArgs("u-1", "a@x.com", "A", "X", "standard", true, false, "hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPGStore(db)
	err = store.Create(context.Background(), &User{
		ID: "u-1", Email: "a@x.com", FirstName: "A", LastName: "X",
		Type: UserTypeStandard, IsActive: true, PasswordHash: "hash",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
