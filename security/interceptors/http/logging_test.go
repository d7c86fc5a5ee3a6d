package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tenantkit/config"
	httpinterceptor "github.com/pitabwire/tenantkit/security/interceptors/http"
)

func TestLoggingMiddlewareKeepsRequestBody(t *testing.T) {
	const payload = `{"name":"Acme Corp"}`

	var seen string
	handler := httpinterceptor.LoggingMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, payload, seen)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"status":"success"}`, rec.Body.String())
}

func TestContextSetupMiddlewareCarriesConfig(t *testing.T) {
	cfg := &config.ConfigurationDefault{ServiceName: "tenantkit-test"}
	mainCtx := config.ToContext(context.Background(), cfg)

	type marker struct{}
	var got *config.ConfigurationDefault
	var marked bool

	handler := httpinterceptor.ContextSetupMiddleware(mainCtx, func(ctx context.Context) context.Context {
		return context.WithValue(ctx, marker{}, true)
	})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = config.FromContext[*config.ConfigurationDefault](r.Context())
		marked, _ = r.Context().Value(marker{}).(bool)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Same(t, cfg, got)
	require.True(t, marked)
}
