package httptor

import (
	"context"
	"net/http"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/tokens"
)

const bearerScheme = "Bearer"

// bearerToken extracts the credential of an Authorization bearer header.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", tokens.ErrTokenMissing
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", tokens.ErrTokenMalformed
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", tokens.ErrTokenMissing
	}
	return token, nil
}

// authenticate moves a request from Unauthenticated to Authenticated.
func (a *RequestAuthority) authenticate(ctx context.Context, r *http.Request) (context.Context, *security.Principal, error) {
	token, err := bearerToken(r)
	if err != nil {
		util.Log(ctx).WithError(err).Debug("RequestAuthority -- no usable bearer token")
		return ctx, nil, err
	}

	principal, err := a.authenticator.Authenticate(ctx, token)
	if err != nil {
		util.Log(ctx).WithError(err).Info("RequestAuthority -- could not authenticate token")
		return ctx, nil, err
	}

	ctx = security.JwtToContext(ctx, token)
	ctx = security.PrincipalToContext(ctx, principal)
	return ctx, principal, nil
}
