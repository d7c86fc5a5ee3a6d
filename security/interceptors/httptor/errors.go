package httptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/datastore"
	"github.com/pitabwire/tenantkit/datastore/codegen"
	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/security/authorizer"
	"github.com/pitabwire/tenantkit/security/tokens"
)

// Public error codes carried in the "code" field of every error body.
const (
	CodeTokenMissing      = "AUTH_002"
	CodeTokenInvalid      = "AUTH_003"
	CodeNoWorkspaceAccess = "AUTH_004"
	CodeTokenExpired      = "AUTH_005"
	CodeInsufficientRole  = "AUTHZ_001"
	CodeBadRequest        = "BR_001"
	CodeValidation        = "VAL_001"
	CodeNotFound          = "NF_001"
	CodeConflict          = "CONFLICT_001"
	CodeNotAllowed        = "NOT_ALLOWED_001"
	CodeCodeAllocation    = "CODE_001"
	CodeRateLimited       = "RATE_001"
	CodeInternal          = "INT_001"
)

// ErrWorkspaceRequired rejects a workspace scoped route called without a workspace selector.
var ErrWorkspaceRequired = fmt.Errorf("%w: workspace selector is required", authorizer.ErrInvalidObject)

// Error is an error with a fixed public rendering. Err is logged but never sent to clients.
type Error struct {
	Status  int
	Kind    string
	Message string
	Code    string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails attaches a client visible payload.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func NewError(status int, kind, code, message string) *Error {
	return &Error{Status: status, Kind: kind, Code: code, Message: message}
}

func BadRequest(message string) *Error {
	return NewError(http.StatusBadRequest, "BAD_REQUEST", CodeBadRequest, message)
}

func Validation(details any) *Error {
	return NewError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", CodeValidation,
		"Request validation failed").WithDetails(details)
}

func NotFound(resource, id string) *Error {
	e := NewError(http.StatusNotFound, "RESOURCE_NOT_FOUND", CodeNotFound, resource+" not found")
	if id != "" {
		e.Details = map[string]string{"resource": resource, "id": id}
	}
	return e
}

func Conflict(message string) *Error {
	return NewError(http.StatusConflict, "RESOURCE_CONFLICT", CodeConflict, message)
}

func MethodNotAllowed(message string) *Error {
	return NewError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", CodeNotAllowed, message)
}

func Internal(err error) *Error {
	e := NewError(http.StatusInternalServerError, "INTERNAL_ERROR", CodeInternal,
		"An internal server error occurred")
	e.Err = err
	return e
}

// FromError classifies err into its public rendering.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, tokens.ErrTokenMissing), errors.Is(err, authorizer.ErrInvalidSubject):
		return &Error{Status: http.StatusUnauthorized, Kind: "TOKEN_MISSING", Code: CodeTokenMissing,
			Message: "Authentication token is required", Err: err}
	case errors.Is(err, tokens.ErrTokenExpired):
		return &Error{Status: http.StatusUnauthorized, Kind: "TOKEN_EXPIRED", Code: CodeTokenExpired,
			Message: "Authentication token has expired", Err: err}
	case tokens.IsPublicInvalid(err):
		return &Error{Status: http.StatusUnauthorized, Kind: "TOKEN_INVALID", Code: CodeTokenInvalid,
			Message: "Authentication token is invalid", Err: err}
	case errors.Is(err, authorizer.ErrInvalidObject), errors.Is(err, datastore.ErrNotBound):
		return &Error{Status: authorizer.ToHTTPStatusCode(err), Kind: "WORKSPACE_REQUIRED", Code: CodeBadRequest,
			Message: "A workspace must be selected for this request", Err: err}
	case errors.Is(err, authorizer.ErrNoTenantAccess):
		return &Error{Status: authorizer.ToHTTPStatusCode(err), Kind: "WORKSPACE_INVALID", Code: CodeNoWorkspaceAccess,
			Message: "Invalid workspace access or workspace not found", Err: err}
	}

	var denied *authorizer.PermissionDeniedError
	if errors.As(err, &denied) {
		return &Error{Status: authorizer.ToHTTPStatusCode(err), Kind: "AUTHORIZATION_FAILED", Code: CodeInsufficientRole,
			Message: "Insufficient permissions",
			Details: map[string]string{"required": denied.Required.String(), "held": denied.Held.String()},
			Err:     err}
	}

	if errors.Is(err, session.ErrBind) || errors.Is(err, session.ErrNoDB) {
		return Internal(err)
	}

	var duplicate *codegen.DuplicateCodeError
	if errors.As(err, &duplicate) {
		e := NewError(http.StatusConflict, "DUPLICATE_CODE", CodeConflict, "Code already exists in this workspace").
			WithDetails(map[string]string{"code": duplicate.Code})
		e.Err = err
		return e
	}

	switch {
	case errors.Is(err, codegen.ErrMaxCodesExhausted):
		return &Error{Status: http.StatusUnprocessableEntity, Kind: "CODE_GENERATION_FAILED", Code: CodeCodeAllocation,
			Message: "No codes are left for this prefix", Err: err}
	case errors.Is(err, codegen.ErrCodeFormat):
		return &Error{Status: http.StatusInternalServerError, Kind: "CODE_GENERATION_FAILED", Code: CodeCodeAllocation,
			Message: "Stored codes do not match the expected format", Err: err}
	case errors.Is(err, codegen.ErrCodeConflict), data.ErrorIsDuplicateKey(err):
		e := Conflict("Resource already exists")
		e.Err = err
		return e
	}

	if data.ErrorIsNoRows(err) {
		e := NotFound("resource", "")
		e.Err = err
		return e
	}

	if data.ErrorIsRowSecurityViolation(err) {
		return &Error{Status: http.StatusForbidden, Kind: "AUTHORIZATION_FAILED", Code: CodeInsufficientRole,
			Message: "Insufficient permissions", Err: err}
	}

	return Internal(err)
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   any    `json:"details"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// WriteError renders err as the JSON error body. Server side failures are logged with their cause.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := FromError(err)

	logger := util.Log(ctx).WithError(err).WithField("code", apiErr.Code)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Debug("request rejected")
	}

	WriteJSON(ctx, w, apiErr.Status, errorBody{
		Error:     apiErr.Kind,
		Message:   apiErr.Message,
		Details:   apiErr.Details,
		Code:      apiErr.Code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteJSON writes v with the given status.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Log(ctx).WithError(err).Warn("could not encode response body")
	}
}
