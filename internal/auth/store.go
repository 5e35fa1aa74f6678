package auth

import "context"

// UserStore describes the persistence operations the auth subsystem needs.
// Implementations convert store rows into typed User records at this boundary;
// untyped data never crosses it.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}
