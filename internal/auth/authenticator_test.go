package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func seedUser(t *testing.T, store *MemStore, email string, userType UserType) *User {
	t.Helper()
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{
		ID:           "user-" + email,
		Email:        NormalizeEmail(email),
		FirstName:    "Test",
		LastName:     "User",
		Type:         userType,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return u
}

func TestAuthenticateSuperuserShortCircuit(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)
	store := NewMemStore()
	user := seedUser(t, store, "admin@plixa.test", UserTypeAdmin)

	authn, err := NewAuthenticator(codec, store)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	token, err := codec.Encode(TokenSubject{UserID: user.ID, Scopes: []Scope{ScopeAll}}, time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// The wildcard satisfies a requirement it does not literally contain.
	principal, err := authn.Authenticate(context.Background(), token, Scopes{ScopeWrite, ScopeCreateUser})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.User.ID != user.ID {
		t.Fatalf("unexpected principal: %s", principal.User.ID)
	}
}

func TestAuthenticateScopeSubset(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)
	store := NewMemStore()
	user := seedUser(t, store, "org@plixa.test", UserTypeOrganization)

	authn, _ := NewAuthenticator(codec, store)
	token, err := codec.Encode(TokenSubject{UserID: user.ID, Scopes: []Scope{ScopeRead, ScopeWrite}}, time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := authn.Authenticate(context.Background(), token, Scopes{ScopeRead}); err != nil {
		t.Fatalf("expected success for granted scope, got %v", err)
	}
	if _, err := authn.Authenticate(context.Background(), token, nil); err != nil {
		t.Fatalf("expected success for empty requirement, got %v", err)
	}
}

func TestAuthenticateMissingScopeForbidden(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)
	store := NewMemStore()
	user := seedUser(t, store, "std@plixa.test", UserTypeStandard)

	authn, _ := NewAuthenticator(codec, store)
	token, err := codec.Encode(TokenSubject{UserID: user.ID, Scopes: []Scope{ScopeRead}}, time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := authn.Authenticate(context.Background(), token, Scopes{ScopeWrite}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthenticateWildcardInRequirementIsSkipped(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)
	store := NewMemStore()
	user := seedUser(t, store, "ops@plixa.test", UserTypeStandard)

	authn, _ := NewAuthenticator(codec, store)
	token, err := codec.Encode(TokenSubject{UserID: user.ID, Scopes: []Scope{ScopeCreateUser}}, time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// A requirement of {all, create-user} is satisfied by create-user alone:
	// the wildcard names an alternative, not an extra mandatory scope.
	if _, err := authn.Authenticate(context.Background(), token, Scopes{ScopeAll, ScopeCreateUser}); err != nil {
		t.Fatalf("expected create-user to satisfy {all, create-user}, got %v", err)
	}
}

func TestAuthenticateUnknownPrincipal(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)
	store := NewMemStore()

	authn, _ := NewAuthenticator(codec, store)
	token, err := codec.Encode(TokenSubject{UserID: "ghost", Scopes: []Scope{ScopeAll}}, time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := authn.Authenticate(context.Background(), token, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown principal, got %v", err)
	}
}

func TestAuthenticateMissingSubject(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)
	store := NewMemStore()
	authn, _ := NewAuthenticator(codec, store)

	// Hand-rolled token with an empty user_id; signature and expiry are valid.
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Subject: TokenSubject{UserID: "", Scopes: []Scope{ScopeAll}},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "plixa-test",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	token, err := raw.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := authn.Authenticate(context.Background(), token, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing subject, got %v", err)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)
	authn, _ := NewAuthenticator(codec, NewMemStore())

	if _, err := authn.Authenticate(context.Background(), "garbage", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestChallenge(t *testing.T) {
	if got := Challenge(nil); got != "Bearer" {
		t.Fatalf("unexpected bare challenge: %q", got)
	}
	if got := Challenge(Scopes{ScopeAll, ScopeCreateUser}); got != `Bearer scope="all create-user"` {
		t.Fatalf("unexpected scoped challenge: %q", got)
	}
}
