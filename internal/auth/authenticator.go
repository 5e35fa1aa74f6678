package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Authenticator validates a bearer token against the user store and a
// per-endpoint scope requirement.
type Authenticator struct {
	codec *Codec
	store UserStore
}

// NewAuthenticator wires the token codec to the user store.
func NewAuthenticator(codec *Codec, store UserStore) (*Authenticator, error) {
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	return &Authenticator{codec: codec, store: store}, nil
}

// Authenticate decodes the token, re-fetches the principal and enforces the
// required scopes. Decode failures, a missing subject and an unknown principal
// all collapse into ErrUnauthorized; a known principal lacking a scope yields
// ErrForbidden. The store is read exactly once per call, so deactivating or
// deleting a user takes effect on the next request, while the granted scopes
// stay frozen from issuance.
func (a *Authenticator) Authenticate(ctx context.Context, token string, required Scopes) (Principal, error) {
	claims, err := a.codec.Decode(token)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	userID := strings.TrimSpace(claims.Subject.UserID)
	if userID == "" {
		return Principal{}, ErrUnauthorized
	}
	user, err := a.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}

	granted := Scopes(claims.Subject.Scopes)
	principal := Principal{User: user, Scopes: granted}
	if granted.IsSuperuser() {
		return principal, nil
	}
	for _, sc := range required {
		if sc == ScopeAll {
			continue
		}
		if !granted.Contains(sc) {
			return Principal{}, fmt.Errorf("%w: not enough permissions", ErrForbidden)
		}
	}
	return principal, nil
}

// Challenge builds the WWW-Authenticate header value for a rejection. When the
// endpoint declares scopes the challenge echoes them; nothing else about the
// failure is disclosed.
func Challenge(required Scopes) string {
	if len(required) == 0 {
		return "Bearer"
	}
	return fmt.Sprintf("Bearer scope=%q", required.String())
}
