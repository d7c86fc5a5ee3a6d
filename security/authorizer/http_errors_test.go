package authorizer_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/authorizer"
)

func TestToHTTPStatusCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "invalid subject", err: authorizer.ErrInvalidSubject, want: http.StatusUnauthorized},
		{name: "invalid object", err: authorizer.ErrInvalidObject, want: http.StatusBadRequest},
		{
			name: "no tenant access",
			err:  fmt.Errorf("%w: %s", authorizer.ErrNoTenantAccess, uuid.New()),
			want: http.StatusForbidden,
		},
		{
			name: "permission denied",
			err: authorizer.NewPermissionDeniedError(
				uuid.New(), uuid.New(), security.RoleAdmin, security.RoleViewer),
			want: http.StatusForbidden,
		},
		{
			name: "membership lookup",
			err:  &authorizer.MembershipLookupError{WorkspaceID: uuid.New(), Cause: errors.New("timeout")},
			want: http.StatusInternalServerError,
		},
		{name: "unknown", err: errors.New("something broke"), want: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, authorizer.ToHTTPStatusCode(tc.err))
		})
	}
}

func TestPermissionDeniedErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("update contact: %w",
		authorizer.NewPermissionDeniedError(uuid.New(), uuid.New(), security.RoleMember, security.RoleViewer))

	assert.ErrorIs(t, err, authorizer.ErrPermissionDenied)

	var denied *authorizer.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, security.RoleMember, denied.Required)
	assert.Equal(t, security.RoleViewer, denied.Held)
	assert.Contains(t, denied.Error(), `"viewer"`)
}

func TestMembershipLookupErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &authorizer.MembershipLookupError{WorkspaceID: uuid.New(), Cause: cause}

	assert.ErrorIs(t, err, authorizer.ErrMembershipLookup)
	assert.ErrorIs(t, err, cause)
}
