package products_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tenantkit/datastores/products"
	"github.com/pitabwire/tenantkit/handlers"
)

func TestFiltersBuild(t *testing.T) {
	workspaceID, userID := uuid.New(), uuid.New()
	category := uuid.New()
	minPrice := decimal.RequireFromString("10.50")
	maxCost := decimal.RequireFromString("99.00")
	maxStock := int64(20)
	tracked := true

	testCases := []struct {
		name      string
		filters   products.Filters
		contains  []string
		extraArgs []any
		wantOrder string
	}{
		{
			name:    "search folds case",
			filters: products.Filters{Search: "Bolt"},
			contains: []string{
				`("p"."name" ILIKE $3 OR "p"."code" ILIKE $4 OR "p"."sku" ILIKE $5 OR "p"."barcode" ILIKE $6 OR "p"."description" ILIKE $7)`,
			},
			extraArgs: []any{"%Bolt%", "%Bolt%", "%Bolt%", "%Bolt%", "%Bolt%"},
			wantOrder: `ORDER BY "p"."created_at" DESC`,
		},
		{
			name:      "equality filters keep their order",
			filters:   products.Filters{CategoryID: &category, TrackInventory: &tracked, SKU: "SKU-1", TaxType: "percentage"},
			contains:  []string{`"p"."category_id" = $3`, `"p"."track_inventory" = $4`, `"p"."sku" = $5`, `"p"."tax_type" = $6`},
			extraArgs: []any{category.String(), true, "SKU-1", "percentage"},
			wantOrder: `ORDER BY "p"."created_at" DESC`,
		},
		{
			name:      "open ranges",
			filters:   products.Filters{MinSellingPrice: &minPrice, MaxStock: &maxStock, SortBy: "selling_price", SortOrder: "ASC"},
			contains:  []string{`("p"."selling_price" >= $3)`, `("p"."current_stock" <= $4)`},
			extraArgs: []any{minPrice.String(), maxStock},
			wantOrder: `ORDER BY "p"."selling_price" ASC`,
		},
		{
			name:      "closed decimal range binds canonical text",
			filters:   products.Filters{MinUnitCost: &minPrice, MaxUnitCost: &maxCost},
			contains:  []string{`("p"."unit_cost" >= $3 AND "p"."unit_cost" <= $4)`},
			extraArgs: []any{"10.5", "99"},
			wantOrder: `ORDER BY "p"."created_at" DESC`,
		},
		{
			name:    "low stock",
			filters: products.Filters{LowStock: true, SortBy: "unknown"},
			contains: []string{
				`("p"."track_inventory" = $3 AND "p"."current_stock" IS NOT NULL AND "p"."reorder_level" IS NOT NULL AND "p"."current_stock" <= "p"."reorder_level")`,
			},
			extraArgs: []any{true},
			wantOrder: `ORDER BY "p"."created_at" DESC`,
		},
		{
			name:      "category include and exclude",
			filters:   products.Filters{IncludeCategories: []uuid.UUID{category}, ExcludeCategories: []uuid.UUID{category}},
			contains:  []string{`"p"."category_id" IN ($3)`, `"p"."category_id" NOT IN ($4)`},
			extraArgs: []any{category.String(), category.String()},
			wantOrder: `ORDER BY "p"."created_at" DESC`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := products.Definition.Build(workspaceID, userID, tc.filters.Set())
			require.NoError(t, err)

			for _, fragment := range tc.contains {
				assert.Contains(t, q.SelectSQL, fragment)
				assert.Contains(t, q.CountSQL, fragment)
			}
			assert.True(t, strings.HasSuffix(q.SelectSQL, tc.wantOrder), q.SelectSQL)

			want := append([]any{workspaceID.String(), userID.String()}, tc.extraArgs...)
			assert.Equal(t, want, q.SelectArgs)
			assert.Equal(t, want, q.CountArgs)
		})
	}
}

func TestParseFilters(t *testing.T) {
	category := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/products?category_id="+category.String()+
		"&track_inventory=true&low_stock=true&min_unit_cost=1.25&max_stock=7&exclude_suppliers="+category.String(), nil)

	f, err := products.ParseFilters(handlers.NewQuery(r))
	require.NoError(t, err)

	require.NotNil(t, f.CategoryID)
	assert.Equal(t, category, *f.CategoryID)
	require.NotNil(t, f.TrackInventory)
	assert.True(t, *f.TrackInventory)
	assert.True(t, f.LowStock)
	require.NotNil(t, f.MinUnitCost)
	assert.True(t, f.MinUnitCost.Equal(decimal.RequireFromString("1.25")))
	require.NotNil(t, f.MaxStock)
	assert.Equal(t, int64(7), *f.MaxStock)
	assert.Equal(t, []uuid.UUID{category}, f.ExcludeSuppliers)
	assert.Nil(t, f.SupplierID)

	for _, query := range []string{"min_selling_price=cheap", "max_stock=lots", "supplier_id=x", "low_stock=maybe"} {
		bad := httptest.NewRequest(http.MethodGet, "/products?"+query, nil)
		_, err = products.ParseFilters(handlers.NewQuery(bad))
		require.Error(t, err, query)
	}
}

func TestRequests(t *testing.T) {
	t.Run("create defaults", func(t *testing.T) {
		var req products.CreateRequest
		require.NoError(t, jsonDecode(`{"name":"Hex Bolt","selling_price":"2.40"}`, &req))
		require.NoError(t, req.Validate())

		p := req.Product()
		assert.Equal(t, "pcs", p.BaseUnit)
		assert.True(t, p.IsActive)
		assert.True(t, p.SellingPrice.Equal(decimal.RequireFromString("2.4")))
	})

	t.Run("create validation", func(t *testing.T) {
		var req products.CreateRequest
		require.NoError(t, jsonDecode(`{"name":"","unit_cost":"-1","tax_type":"vat"}`, &req))
		require.Error(t, req.Validate())
	})

	t.Run("update columns", func(t *testing.T) {
		var req products.UpdateRequest
		require.NoError(t, jsonDecode(`{"name":"Bolt","current_stock":3,"is_active":false}`, &req))
		require.NoError(t, req.Validate())

		p := &products.Product{Name: "Old", IsActive: true}
		assert.Equal(t, []string{"name", "current_stock", "is_active"}, req.Apply(p))
		assert.False(t, p.IsActive)
		require.NotNil(t, p.CurrentStock)
		assert.Equal(t, int32(3), *p.CurrentStock)
	})

	t.Run("low stock", func(t *testing.T) {
		stock, reorder := int32(2), int32(5)
		p := &products.Product{TrackInventory: true, CurrentStock: &stock, ReorderLevel: &reorder}
		assert.True(t, p.LowStock())

		p.TrackInventory = false
		assert.False(t, p.LowStock())
	})
}

func jsonDecode(body string, v any) error {
	return handlers.DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), v)
}
