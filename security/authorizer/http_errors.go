package authorizer

import (
	"errors"
	"net/http"
)

// ToHTTPStatusCode translates authorization errors into HTTP status codes.
//
// Mapping:
//   - ErrInvalidSubject → 401 Unauthorized
//   - ErrInvalidObject → 400 Bad Request
//   - ErrNoTenantAccess / PermissionDeniedError → 403 Forbidden
//   - everything else → 500 Internal Server Error
func ToHTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if errors.Is(err, ErrInvalidSubject) {
		return http.StatusUnauthorized
	}

	if errors.Is(err, ErrInvalidObject) {
		return http.StatusBadRequest
	}

	if errors.Is(err, ErrNoTenantAccess) {
		return http.StatusForbidden
	}

	var permErr *PermissionDeniedError
	if errors.As(err, &permErr) {
		return http.StatusForbidden
	}

	return http.StatusInternalServerError
}
