// Package tests carries the integration suite shared by packages that need a real database.
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pitabwire/util"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tenantkit"
	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/datastore/pool"
	"github.com/pitabwire/tenantkit/frametests"
	"github.com/pitabwire/tenantkit/frametests/definition"
	"github.com/pitabwire/tenantkit/frametests/deps/testpostgres"
	"github.com/pitabwire/tenantkit/migrations"
	"github.com/pitabwire/tenantkit/security/tokens"
)

const (
	DefaultRandomStringLength = 8

	testJWTSecret   = "integration-test-secret"
	appRolePassword = "app-s3cret"
)

// BaseTestSuite starts postgres once per suite, migrates a fresh database as its owner and
// serves the API through a pool that connects as a non-superuser, so row level security
// is enforced on every request.
type BaseTestSuite struct {
	frametests.FrameBaseTestSuite

	Ctx     context.Context
	Service *tenantkit.Service
	Pool    pool.Pool
	Codec   *tokens.Codec
	Handler http.Handler

	// MaxOpenConnections bounds the application pool. Zero keeps the configured default.
	MaxOpenConnections int

	cleanupDB func(context.Context)
}

func initResources(_ context.Context) []definition.TestResource {
	pg := testpostgres.NewWithOpts("tenantkit_service",
		definition.WithUserName("ant"), definition.WithPassword("s3cr3t"),
		definition.WithEnableLogging(false))
	return []definition.TestResource{pg}
}

func (bs *BaseTestSuite) SetupSuite() {
	if bs.InitResourceFunc == nil {
		bs.InitResourceFunc = initResources
	}
	bs.FrameBaseTestSuite.SetupSuite()

	t := bs.T()
	ctx := t.Context()

	var db definition.TestResource
	for _, res := range bs.Resources() {
		if res.Name() == testpostgres.PostgresqlDBImage {
			db = res
		}
	}
	require.NotNil(t, db, "postgres resource is required")

	prefix := strings.ToLower(util.RandomAlphaNumericString(DefaultRandomStringLength))
	ownerDS, cleanup, err := db.GetRandomisedDS(ctx, prefix)
	require.NoError(t, err)
	bs.cleanupDB = cleanup

	ownerPool := pool.NewPool(ctx)
	require.NoError(t, ownerPool.AddConnection(ctx, pool.WithConnection(ownerDS.String(), false)))
	require.NoError(t, ownerPool.Migrate(ctx, migrations.FS, migrations.Dir))
	ownerPool.Close(ctx)

	appDS, err := testpostgres.ProvisionAppRole(ctx, ownerDS, "app_"+prefix, appRolePassword)
	require.NoError(t, err)

	cfg := &config.ConfigurationDefault{
		ServiceName:                "tenantkit-test",
		LogLevel:                   "info",
		JWTSecret:                  testJWTSecret,
		JWTTTL:                     time.Hour,
		TenantHeaderName:           config.DefaultTenantHeader,
		SessionUnbindTimeout:       config.DefaultUnbindTimeout,
		RateLimitRequestsPerSecond: 10_000,
		RateLimitBurst:             10_000,
		PaginationDefaultLimit:     10,
		PaginationMaxLimit:         100,
		DatabasePrimaryURL:         []string{appDS.String()},
		DatabaseMaxIdleConnections: 2,
		DatabaseMaxOpenConnections: 5,
	}
	if bs.MaxOpenConnections > 0 {
		cfg.DatabaseMaxOpenConnections = bs.MaxOpenConnections
		cfg.DatabaseMaxIdleConnections = bs.MaxOpenConnections
	}

	bs.Codec, err = tokens.NewCodec(cfg.GetJWTSecret())
	require.NoError(t, err)

	bs.Ctx, bs.Service = tenantkit.NewService(context.WithoutCancel(ctx),
		tenantkit.WithConfig(cfg),
		tenantkit.WithDatastore(),
		tenantkit.WithTokenCodec(bs.Codec),
		tenantkit.WithRateLimiter(nil),
	)
	bs.Pool = bs.Service.Pool()
	bs.Handler = bs.Service.H(bs.Ctx)
}

func (bs *BaseTestSuite) TearDownSuite() {
	ctx := context.WithoutCancel(bs.T().Context())
	if bs.Service != nil {
		bs.Service.Stop(ctx)
	}
	if bs.cleanupDB != nil {
		bs.cleanupDB(ctx)
	}
	bs.FrameBaseTestSuite.TearDownSuite()
}

// Token mints a bearer token for userID.
func (bs *BaseTestSuite) Token(userID uuid.UUID) string {
	token, err := bs.Codec.Encode(userID, time.Hour)
	bs.Require().NoError(err)
	return token
}

// Response is a decoded API answer.
type Response struct {
	Status int
	Body   map[string]any
}

// Data returns the data member of a success envelope as an object.
func (r Response) Data() map[string]any {
	data, _ := r.Body["data"].(map[string]any)
	return data
}

// Do sends a request as userID. A non nil workspaceID selects that workspace.
func (bs *BaseTestSuite) Do(method, path string, userID uuid.UUID, workspaceID *uuid.UUID, body any) Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		bs.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+bs.Token(userID))
	}
	if workspaceID != nil {
		req.Header.Set(config.DefaultTenantHeader, workspaceID.String())
	}

	rec := httptest.NewRecorder()
	bs.Handler.ServeHTTP(rec, req)

	resp := Response{Status: rec.Code}
	if rec.Body.Len() > 0 {
		bs.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp.Body), rec.Body.String())
	}
	return resp
}

// CreateWorkspace creates a workspace owned by ownerID and returns its id.
func (bs *BaseTestSuite) CreateWorkspace(ownerID uuid.UUID, name string) uuid.UUID {
	resp := bs.Do(http.MethodPost, "/workspaces", ownerID, nil, map[string]any{"name": name})
	bs.Require().Equal(http.StatusCreated, resp.Status, resp.Body)

	id, err := uuid.Parse(resp.Data()["id"].(string))
	bs.Require().NoError(err)
	return id
}

// AddMember adds userID to workspaceID with role, acting as adminID.
func (bs *BaseTestSuite) AddMember(adminID, workspaceID, userID uuid.UUID, role string) {
	resp := bs.Do(http.MethodPost, "/workspaces/"+workspaceID.String()+"/users", adminID, nil,
		map[string]any{"user_id": userID.String(), "role": role})
	bs.Require().Equal(http.StatusCreated, resp.Status, resp.Body)
}
