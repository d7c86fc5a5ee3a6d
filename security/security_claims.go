package security

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

func (c contextKey) String() string {
	return "tenantkit/security/" + string(c)
}

const (
	ctxKeyPrincipal         = contextKey("principalKey")
	ctxKeyAuthenticationJwt = contextKey("authenticationJwtKey")
)

var ErrInvalidSubject = errors.New("token subject is not a user id")

// JwtToContext adds authentication jwt to the current supplied context.
func JwtToContext(ctx context.Context, jwt string) context.Context {
	return context.WithValue(ctx, ctxKeyAuthenticationJwt, jwt)
}

// JwtFromContext extracts authentication jwt from the supplied context if any exist.
func JwtFromContext(ctx context.Context) string {
	jwtString, ok := ctx.Value(ctxKeyAuthenticationJwt).(string)
	if !ok {
		return ""
	}

	return jwtString
}

// AuthenticationClaims is the claim set carried by bearer tokens. The subject is the user id.
type AuthenticationClaims struct {
	jwt.RegisteredClaims
}

// Principal converts verified claims into the identity used for the rest of the request.
func (a *AuthenticationClaims) Principal() (*Principal, error) {
	userID, err := uuid.Parse(a.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, ErrInvalidSubject
	}

	p := &Principal{UserID: userID}
	if a.IssuedAt != nil {
		p.IssuedAt = a.IssuedAt.Time
	}
	if a.ExpiresAt != nil {
		p.ExpiresAt = a.ExpiresAt.Time
	}
	return p, nil
}

// Principal is the authenticated caller, independent of any workspace.
type Principal struct {
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PrincipalToContext adds the authenticated principal to the supplied context.
func PrincipalToContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFromContext extracts the authenticated principal, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(ctxKeyPrincipal).(*Principal)
	if !ok {
		return nil
	}
	return p
}
