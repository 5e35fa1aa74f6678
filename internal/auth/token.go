package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"plixa.org/internal/ids"
)

const defaultTokenTTL = 30 * time.Minute

// TokenConfig carries the signing material and defaults for the codec. It is
// constructed once at process start from explicit configuration; the codec
// never reads ambient state.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// TokenSubject is the claim payload identifying the principal and the scopes
// granted at issuance time.
type TokenSubject struct {
	UserID string  `json:"user_id"`
	Scopes []Scope `json:"scopes"`
}

// Claims is the full token payload: subject plus registered expiry claims.
type Claims struct {
	Subject TokenSubject `json:"subject"`
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer tokens with HS256. Encode and Decode are
// pure CPU operations; validity is purely signature plus expiration, so a
// minted token cannot be revoked before it expires.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source, for tests.
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec builds a Codec from explicit configuration.
func NewCodec(cfg TokenConfig, opts ...CodecOption) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: token secret is required")
	}
	c := &Codec{
		secret: cfg.Secret,
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	if c.ttl <= 0 {
		c.ttl = defaultTokenTTL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the default token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode signs a token for the subject expiring ttl from now. A non-positive
// ttl falls back to the configured default.
func (c *Codec) Encode(subject TokenSubject, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject.UserID) == "" {
		return "", fmt.Errorf("%w: subject user id is required", ErrEncoding)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now().UTC()
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies signature and expiration and returns the embedded claims.
// There is no partial success: any failure maps to ErrInvalidToken.
func (c *Codec) Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
