package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/handlers"
	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

func TestParsePage(t *testing.T) {
	cfg := &config.ConfigurationDefault{PaginationDefaultLimit: 10, PaginationMaxLimit: 100}

	testCases := []struct {
		name      string
		query     string
		want      handlers.Page
		expectErr bool
	}{
		{name: "defaults", query: "", want: handlers.Page{Number: 1, Limit: 10}},
		{name: "explicit", query: "page=3&limit=25", want: handlers.Page{Number: 3, Limit: 25}},
		{name: "limit clamped", query: "limit=500", want: handlers.Page{Number: 1, Limit: 100}},
		{name: "zero page", query: "page=0", expectErr: true},
		{name: "negative limit", query: "limit=-1", expectErr: true},
		{name: "garbage", query: "page=abc", expectErr: true},
		{name: "page overflowing the offset", query: "page=184467440737095518&limit=100", expectErr: true},
		{name: "page beyond uint64", query: "page=18446744073709551616", expectErr: true},
		{name: "largest page that fits", query: "page=92233720368547759&limit=100",
			want: handlers.Page{Number: 92233720368547759, Limit: 100}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/things?"+tc.query, nil)
			page, err := handlers.ParsePage(r, cfg)
			if tc.expectErr {
				require.Error(t, err)
				var apiErr *httptor.Error
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, httptor.CodeBadRequest, apiErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, page)
		})
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, uint64(0), handlers.Page{Number: 1, Limit: 10}.Offset())
	assert.Equal(t, uint64(40), handlers.Page{Number: 5, Limit: 10}.Offset())
	assert.Equal(t, uint64(math.MaxInt64), handlers.Page{Number: math.MaxUint64, Limit: 100}.Offset())
	assert.Equal(t, uint64(0), handlers.Page{Number: 7}.Offset())
}

func TestNewPaginationMeta(t *testing.T) {
	testCases := []struct {
		name  string
		page  handlers.Page
		total int64
		want  handlers.PaginationMeta
	}{
		{
			name:  "empty",
			page:  handlers.Page{Number: 1, Limit: 10},
			total: 0,
			want:  handlers.PaginationMeta{Page: 1, Limit: 10},
		},
		{
			name:  "first of several",
			page:  handlers.Page{Number: 1, Limit: 10},
			total: 25,
			want:  handlers.PaginationMeta{Page: 1, Limit: 10, Total: 25, TotalPages: 3, HasNext: true},
		},
		{
			name:  "last page",
			page:  handlers.Page{Number: 3, Limit: 10},
			total: 25,
			want:  handlers.PaginationMeta{Page: 3, Limit: 10, Total: 25, TotalPages: 3, HasPrev: true},
		},
		{
			name:  "exact fit",
			page:  handlers.Page{Number: 2, Limit: 5},
			total: 10,
			want:  handlers.PaginationMeta{Page: 2, Limit: 5, Total: 10, TotalPages: 2, HasPrev: true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, handlers.NewPaginationMeta(tc.page, tc.total))
		})
	}
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	page := handlers.Page{Number: 1, Limit: 10}
	handlers.OK(t.Context(), rec, "", handlers.NewPaginated[string](nil, page, 0))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, handlers.DefaultMessage, body["message"])
	assert.NotEmpty(t, body["timestamp"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{}, data["list"])
	assert.Contains(t, data, "pagination")
}

func TestFallbacks(t *testing.T) {
	router := chi.NewRouter()
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)
	router.Get("/known", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	testCases := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{name: "unknown route", method: http.MethodGet, path: "/nowhere", status: http.StatusNotFound, code: "NF_001"},
		{name: "wrong method", method: http.MethodDelete, path: "/known", status: http.StatusMethodNotAllowed, code: "NOT_ALLOWED_001"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

			require.Equal(t, tc.status, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestHealth(t *testing.T) {
	healthy := handlers.CheckerFunc(func(context.Context) error { return nil })
	broken := handlers.CheckerFunc(func(context.Context) error { return errors.New("db down") })

	rec := httptest.NewRecorder()
	handlers.Health(healthy).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	handlers.Health(healthy, broken).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQueryReaders(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet,
		"/things?search=+bob+&is_active=true&ids="+id.String()+",,"+id.String()+"&price=12.50&bad=nope", nil)
	q := handlers.NewQuery(r)

	search, ok := q.Text("search")
	require.True(t, ok)
	assert.Equal(t, "bob", search)

	active, ok, err := q.Bool("is_active")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, active)

	_, ok, err = q.Bool("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = q.Bool("bad")
	require.Error(t, err)

	ids, err := q.UUIDList("ids")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id, id}, ids)

	price, err := q.Decimal("price")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, "12.5", price.String())

	_, err = q.Decimal("bad")
	require.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme"}`))
	require.NoError(t, handlers.DecodeJSON(r, &v))
	assert.Equal(t, "Acme", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	require.Error(t, handlers.DecodeJSON(r, &v))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.Error(t, handlers.DecodeJSON(r, &v))
}

func TestFieldErrors(t *testing.T) {
	fields := handlers.FieldErrors{}
	require.NoError(t, fields.Err())

	fields.Add("name", "is required")
	require.Error(t, fields.Err())
}
