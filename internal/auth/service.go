package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plixa.org/internal/ids"
)

// Service implements credential verification, token issuance and user
// creation on top of a UserStore and a Codec.
type Service struct {
	store UserStore
	codec *Codec
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store UserStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	s := &Service{store: store, codec: codec, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessToken is the issuance response body.
type AccessToken struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
}

// Login verifies the credential pair and mints a token seeded with the
// default scopes for the user's classification. A missing user, a wrong
// password and a deactivated account are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (AccessToken, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return AccessToken{}, ErrUnauthorized
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AccessToken{}, ErrUnauthorized
		}
		return AccessToken{}, err
	}
	if !user.IsActive {
		return AccessToken{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return AccessToken{}, ErrUnauthorized
	}

	token, err := s.codec.Encode(TokenSubject{
		UserID: user.ID,
		Scopes: DefaultScopes(user.Type),
	}, 0)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, TokenType: "bearer"}, nil
}

// CreateUserInput carries the fields of a user-creation request.
type CreateUserInput struct {
	Email           string   `json:"email"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Type            UserType `json:"type"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirm_password"`
}

func (in *CreateUserInput) validate() error {
	if strings.TrimSpace(in.FirstName) == "" {
		return fmt.Errorf("%w: first name must be provided", ErrInvalidInput)
	}
	if strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("%w: last name must be provided", ErrInvalidInput)
	}
	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: users must have an email address", ErrInvalidInput)
	}
	if in.Password == "" {
		return fmt.Errorf("%w: password must be provided", ErrInvalidInput)
	}
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("%w: password mismatch", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = UserTypeStandard
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unsupported user type %s", ErrInvalidInput, in.Type)
	}
	return nil
}

// CreateUser validates the input, checks email uniqueness and inserts the
// record. The uniqueness pre-check and the insert are two separate store
// round-trips with no transaction between them; concurrent requests for the
// same email can both pass the check and insert duplicates.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: user with this email address already exists", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Type:         in.Type,
		IsActive:     true,
		IsSuperuser:  in.Type == UserTypeAdmin,
		CreatedAt:    s.now().UTC(),
		PasswordHash: hash,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateSuperuser provisions an admin account. Used by the seed path on a
// fresh install so the first token can be minted.
func (s *Service) CreateSuperuser(ctx context.Context, email, firstName, lastName, password string) (*User, error) {
	return s.CreateUser(ctx, CreateUserInput{
		Email:           email,
		FirstName:       firstName,
		LastName:        lastName,
		Type:            UserTypeAdmin,
		Password:        password,
		ConfirmPassword: password,
	})
}
