package httptor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
	"github.com/pitabwire/tenantkit/security/tokens"
)

type stubResolver struct {
	roles map[uuid.UUID]security.TenantRole
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, _, workspaceID uuid.UUID) (security.TenantRole, bool, error) {
	s.calls++
	if s.err != nil {
		return security.RoleNone, false, s.err
	}
	role, ok := s.roles[workspaceID]
	return role, ok, nil
}

type countingRunner struct {
	binds    int
	unbinds  int
	bindErr  error
	bindings []session.Binding
}

func (c *countingRunner) Run(
	ctx context.Context,
	binding session.Binding,
	fn func(ctx context.Context, conn *session.Conn) error,
) error {
	if c.bindErr != nil {
		return c.bindErr
	}
	c.binds++
	c.bindings = append(c.bindings, binding)
	defer func() { c.unbinds++ }()
	return fn(session.BindingToContext(ctx, binding), nil)
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

type AuthoritySuite struct {
	suite.Suite

	codec       *tokens.Codec
	resolver    *stubResolver
	runner      *countingRunner
	userID      uuid.UUID
	workspaceID uuid.UUID
}

func (s *AuthoritySuite) SetupTest() {
	codec, err := tokens.NewCodec([]byte("authority-suite-secret"))
	s.Require().NoError(err)

	s.codec = codec
	s.userID = uuid.New()
	s.workspaceID = uuid.New()
	s.resolver = &stubResolver{roles: map[uuid.UUID]security.TenantRole{s.workspaceID: security.RoleMember}}
	s.runner = &countingRunner{}
}

func (s *AuthoritySuite) token(ttl time.Duration) string {
	token, err := s.codec.Encode(s.userID, ttl)
	s.Require().NoError(err)
	return token
}

func (s *AuthoritySuite) serve(req *http.Request, opts ...httptor.RouteOption) (*httptest.ResponseRecorder, bool) {
	authority := httptor.NewRequestAuthority(s.codec, s.resolver, s.runner)

	reached := false
	handler := authority.Middleware(opts...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true

		binding, ok := session.BindingFromContext(r.Context())
		s.True(ok)
		s.Equal(s.userID, binding.UserID)
		s.Equal(s.userID, security.PrincipalFromContext(r.Context()).UserID)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, reached
}

func (s *AuthoritySuite) decode(rec *httptest.ResponseRecorder) errorResponse {
	var body errorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.NotEmpty(body.Timestamp)
	return body
}

func (s *AuthoritySuite) TestRejections() {
	testCases := []struct {
		name       string
		authHeader string
		workspace  string
		wantStatus int
		wantCode   string
		wantKind   string
	}{
		{name: "missing token", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_002", wantKind: "TOKEN_MISSING"},
		{
			name:       "wrong scheme",
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized, wantCode: "AUTH_003", wantKind: "TOKEN_INVALID",
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not-a-token",
			wantStatus: http.StatusUnauthorized, wantCode: "AUTH_003", wantKind: "TOKEN_INVALID",
		},
		{
			name:       "expired token",
			authHeader: "expired",
			wantStatus: http.StatusUnauthorized, wantCode: "AUTH_005", wantKind: "TOKEN_EXPIRED",
		},
		{
			name:       "workspace required",
			authHeader: "valid",
			wantStatus: http.StatusBadRequest, wantCode: "BR_001", wantKind: "WORKSPACE_REQUIRED",
		},
		{
			name:       "malformed workspace",
			authHeader: "valid",
			workspace:  "not-a-uuid",
			wantStatus: http.StatusBadRequest, wantCode: "BR_001", wantKind: "BAD_REQUEST",
		},
		{
			name:       "not a member",
			authHeader: "valid",
			workspace:  uuid.NewString(),
			wantStatus: http.StatusForbidden, wantCode: "AUTH_004", wantKind: "WORKSPACE_INVALID",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.runner = &countingRunner{}

			req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
			switch tc.authHeader {
			case "valid":
				req.Header.Set("Authorization", "Bearer "+s.token(time.Hour))
			case "expired":
				req.Header.Set("Authorization", "Bearer "+s.token(-time.Hour))
			case "":
			default:
				req.Header.Set("Authorization", tc.authHeader)
			}
			if tc.workspace != "" {
				req.Header.Set("X-Workspace-ID", tc.workspace)
			}

			rec, reached := s.serve(req)

			s.False(reached)
			s.Zero(s.runner.binds, "no connection may be bound for a rejected request")
			s.Equal(tc.wantStatus, rec.Code)
			body := s.decode(rec)
			s.Equal(tc.wantCode, body.Code)
			s.Equal(tc.wantKind, body.Error)
		})
	}
}

func (s *AuthoritySuite) TestScopedRequestIsBoundOnce() {
	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(time.Hour))
	req.Header.Set("X-Workspace-ID", s.workspaceID.String())

	rec, reached := s.serve(req)

	s.True(reached)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal(1, s.runner.binds)
	s.Equal(s.runner.binds, s.runner.unbinds)
	s.Require().Len(s.runner.bindings, 1)
	s.Equal(s.workspaceID, s.runner.bindings[0].WorkspaceID)
	s.Equal(security.RoleMember, s.runner.bindings[0].Role)
}

func (s *AuthoritySuite) TestTenantOptionalBindsUserOnly() {
	req := httptest.NewRequest(http.MethodGet, "/workspaces", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(time.Hour))

	rec, reached := s.serve(req, httptor.TenantOptional())

	s.True(reached)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Zero(s.resolver.calls)
	s.Require().Len(s.runner.bindings, 1)
	s.False(s.runner.bindings[0].Scoped())
	s.Equal(security.RoleNone, s.runner.bindings[0].Role)
}

func (s *AuthoritySuite) TestBindFailureIsInternal() {
	s.runner.bindErr = errors.Join(session.ErrBind, errors.New("connection reset"))

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(time.Hour))
	req.Header.Set("X-Workspace-ID", s.workspaceID.String())

	rec, reached := s.serve(req)

	s.False(reached)
	s.Equal(http.StatusInternalServerError, rec.Code)
	body := s.decode(rec)
	s.Equal("INT_001", body.Code)
	s.NotContains(body.Message, "connection reset")
}

func (s *AuthoritySuite) TestResolverFailureIsInternal() {
	s.resolver.err = errors.New("database unavailable")

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(time.Hour))
	req.Header.Set("X-Workspace-ID", s.workspaceID.String())

	rec, reached := s.serve(req)

	s.False(reached)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Zero(s.runner.binds)
}

func TestAuthoritySuite(t *testing.T) {
	suite.Run(t, new(AuthoritySuite))
}

func TestCustomTenantHeader(t *testing.T) {
	codec, err := tokens.NewCodec([]byte("custom-header-secret"))
	require.NoError(t, err)

	userID := uuid.New()
	workspaceID := uuid.New()
	token, err := codec.Encode(userID, time.Minute)
	require.NoError(t, err)

	resolver := &stubResolver{roles: map[uuid.UUID]security.TenantRole{workspaceID: security.RoleAdmin}}
	runner := &countingRunner{}
	authority := httptor.NewRequestAuthority(codec, resolver, runner, httptor.WithTenantHeader("X-Tenant"))

	handler := authority.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("X-Tenant", workspaceID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, runner.binds)
	require.Equal(t, security.RoleAdmin, runner.bindings[0].Role)
}
