package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/security"
)

var (
	ErrNoSecret = errors.New("token signing secret is not configured")

	ErrTokenMissing          = errors.New("authentication token is missing")
	ErrTokenMalformed        = errors.New("authentication token is malformed")
	ErrTokenExpired          = errors.New("authentication token has expired")
	ErrTokenInvalidSignature = errors.New("authentication token signature is invalid")
)

// Codec verifies and mints HS256 bearer tokens against one shared secret.
type Codec struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

type Option func(*Codec)

// WithLeeway tolerates clock skew when checking exp and iat.
func WithLeeway(leeway time.Duration) Option {
	return func(c *Codec) {
		c.leeway = leeway
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ security.Authenticator = (*Codec)(nil)

// Authenticate decodes the token and logs why it was refused.
func (c *Codec) Authenticate(ctx context.Context, token string) (*security.Principal, error) {
	principal, err := c.Decode(token)
	if err != nil {
		util.Log(ctx).WithError(err).Debug("token rejected")
		return nil, err
	}
	return principal, nil
}

// Decode verifies the signature and expiry of token.
func (c *Codec) Decode(token string) (*security.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims := &security.AuthenticationClaims{}
	_, err := jwt.ParseWithClaims(token, claims, c.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	principal, err := claims.Principal()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	return principal, nil
}

// Encode mints a token for userID valid for ttl.
func (c *Codec) Encode(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := c.now()
	claims := security.AuthenticationClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *Codec) key(_ *jwt.Token) (any, error) {
	return c.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}

// IsPublicInvalid reports the errors clients only ever see as a generic invalid token.
func IsPublicInvalid(err error) bool {
	return errors.Is(err, ErrTokenMalformed) || errors.Is(err, ErrTokenInvalidSignature)
}
