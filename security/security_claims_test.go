package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tenantkit/security"
)

func TestClaimsPrincipal(t *testing.T) {
	userID := uuid.New()
	issued := time.Now().Add(-time.Minute).Truncate(time.Second)
	expires := issued.Add(time.Hour)

	claims := &security.AuthenticationClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}}

	p, err := claims.Principal()
	require.NoError(t, err)
	require.Equal(t, userID, p.UserID)
	require.True(t, p.IssuedAt.Equal(issued))
	require.True(t, p.ExpiresAt.Equal(expires))

	for _, subject := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		claims.Subject = subject
		_, err = claims.Principal()
		require.ErrorIs(t, err, security.ErrInvalidSubject, subject)
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, security.PrincipalFromContext(ctx))
	require.Empty(t, security.JwtFromContext(ctx))

	p := &security.Principal{UserID: uuid.New()}
	ctx = security.PrincipalToContext(ctx, p)
	ctx = security.JwtToContext(ctx, "token")

	require.Same(t, p, security.PrincipalFromContext(ctx))
	require.Equal(t, "token", security.JwtFromContext(ctx))
}
