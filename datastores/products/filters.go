package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pitabwire/tenantkit/datastore/filter"
	"github.com/pitabwire/tenantkit/handlers"
)

// Definition exposes the products table to the filter builder.
var Definition = &filter.Definition{
	Table: "products",
	Alias: "p",
	Select: []string{
		"id", "workspace_id", "code", "name", "category_id", "supplier_id", "base_unit",
		"unit_on_report_preview", "selling_price", "unit_cost", "track_inventory", "description",
		"sku", "barcode", "minimum_stock", "maximum_stock", "reorder_level", "current_stock",
		"tax_type", "tax_rate", "tax_amount", "is_active", "created_by", "updated_by",
		"created_at", "updated_at",
	},
	Columns: map[string]string{
		"id":              "id",
		"code":            "code",
		"name":            "name",
		"sku":             "sku",
		"barcode":         "barcode",
		"description":     "description",
		"category_id":     "category_id",
		"supplier_id":     "supplier_id",
		"base_unit":       "base_unit",
		"tax_type":        "tax_type",
		"is_active":       "is_active",
		"track_inventory": "track_inventory",
		"selling_price":   "selling_price",
		"unit_cost":       "unit_cost",
		"current_stock":   "current_stock",
		"reorder_level":   "reorder_level",
	},
	TenantColumn: "workspace_id",
	Membership:   filter.DefaultMembership,
	Sorts: map[string]string{
		"name":          "name",
		"code":          "code",
		"selling_price": "selling_price",
		"unit_cost":     "unit_cost",
		"created_at":    "created_at",
		"updated_at":    "updated_at",
	},
	DefaultSort: "created_at",
}

// Filters are the list parameters GET /products understands.
type Filters struct {
	Search         string
	CategoryID     *uuid.UUID
	SupplierID     *uuid.UUID
	IsActive       *bool
	TrackInventory *bool
	Code           string
	SKU            string
	Barcode        string
	BaseUnit       string
	TaxType        string

	IncludeCategories []uuid.UUID
	ExcludeCategories []uuid.UUID
	IncludeSuppliers  []uuid.UUID
	ExcludeSuppliers  []uuid.UUID
	IncludeIDs        []uuid.UUID
	ExcludeIDs        []uuid.UUID

	MinSellingPrice *decimal.Decimal
	MaxSellingPrice *decimal.Decimal
	MinUnitCost     *decimal.Decimal
	MaxUnitCost     *decimal.Decimal
	MinStock        *int64
	MaxStock        *int64

	LowStock bool

	SortBy    string
	SortOrder string
}

// Set turns the filters into builder predicates.
func (f Filters) Set() filter.Set {
	set := filter.Set{SortBy: f.SortBy, SortOrder: f.SortOrder}

	if f.Search != "" {
		set.Where(filter.Search(f.Search, true, "name", "code", "sku", "barcode", "description"))
	}

	if f.CategoryID != nil {
		set.Where(filter.Equal("category_id", *f.CategoryID))
	}
	if f.SupplierID != nil {
		set.Where(filter.Equal("supplier_id", *f.SupplierID))
	}
	if f.IsActive != nil {
		set.Where(filter.Equal("is_active", *f.IsActive))
	}
	if f.TrackInventory != nil {
		set.Where(filter.Equal("track_inventory", *f.TrackInventory))
	}
	exact := []struct{ field, value string }{
		{"code", f.Code}, {"sku", f.SKU}, {"barcode", f.Barcode}, {"base_unit", f.BaseUnit}, {"tax_type", f.TaxType},
	}
	for _, e := range exact {
		if e.value != "" {
			set.Where(filter.Equal(e.field, e.value))
		}
	}

	membership := []struct {
		field   string
		include []uuid.UUID
		exclude []uuid.UUID
	}{
		{"category_id", f.IncludeCategories, f.ExcludeCategories},
		{"supplier_id", f.IncludeSuppliers, f.ExcludeSuppliers},
		{"id", f.IncludeIDs, f.ExcludeIDs},
	}
	for _, m := range membership {
		if len(m.include) > 0 {
			set.Where(filter.In(m.field, m.include...))
		}
		if len(m.exclude) > 0 {
			set.Where(filter.NotIn(m.field, m.exclude...))
		}
	}

	if p := decimalRange("selling_price", f.MinSellingPrice, f.MaxSellingPrice); p != nil {
		set.Where(p)
	}
	if p := decimalRange("unit_cost", f.MinUnitCost, f.MaxUnitCost); p != nil {
		set.Where(p)
	}
	if f.MinStock != nil || f.MaxStock != nil {
		var lower, upper any
		if f.MinStock != nil {
			lower = *f.MinStock
		}
		if f.MaxStock != nil {
			upper = *f.MaxStock
		}
		set.Where(filter.Range("current_stock", lower, upper))
	}

	if f.LowStock {
		set.Where(filter.All(
			filter.Equal("track_inventory", true),
			filter.NotNull("current_stock"),
			filter.NotNull("reorder_level"),
			filter.Compare("current_stock", filter.LessOrEqual, "reorder_level"),
		))
	}

	return set
}

func decimalRange(field string, lower, upper *decimal.Decimal) filter.Predicate {
	if lower == nil && upper == nil {
		return nil
	}
	var lo, hi any
	if lower != nil {
		lo = *lower
	}
	if upper != nil {
		hi = *upper
	}
	return filter.Range(field, lo, hi)
}

// ParseFilters reads Filters from the query string. List parameters are comma separated.
func ParseFilters(q handlers.Query) (Filters, error) {
	var f Filters

	f.Search, _ = q.Text("search")
	f.Code, _ = q.Text("code")
	f.SKU, _ = q.Text("sku")
	f.Barcode, _ = q.Text("barcode")
	f.BaseUnit, _ = q.Text("base_unit")
	f.TaxType, _ = q.Text("tax_type")
	f.SortBy, _ = q.Text("sort_by")
	f.SortOrder, _ = q.Text("sort_order")

	for name, dst := range map[string]**uuid.UUID{"category_id": &f.CategoryID, "supplier_id": &f.SupplierID} {
		id, ok, err := q.UUID(name)
		if err != nil {
			return f, err
		}
		if ok {
			*dst = &id
		}
	}

	for name, dst := range map[string]**bool{"is_active": &f.IsActive, "track_inventory": &f.TrackInventory} {
		b, ok, err := q.Bool(name)
		if err != nil {
			return f, err
		}
		if ok {
			*dst = &b
		}
	}

	lowStock, _, err := q.Bool("low_stock")
	if err != nil {
		return f, err
	}
	f.LowStock = lowStock

	for name, dst := range map[string]*[]uuid.UUID{
		"include_categories": &f.IncludeCategories,
		"exclude_categories": &f.ExcludeCategories,
		"include_suppliers":  &f.IncludeSuppliers,
		"exclude_suppliers":  &f.ExcludeSuppliers,
		"include_ids":        &f.IncludeIDs,
		"exclude_ids":        &f.ExcludeIDs,
	} {
		if *dst, err = q.UUIDList(name); err != nil {
			return f, err
		}
	}

	for name, dst := range map[string]**decimal.Decimal{
		"min_selling_price": &f.MinSellingPrice,
		"max_selling_price": &f.MaxSellingPrice,
		"min_unit_cost":     &f.MinUnitCost,
		"max_unit_cost":     &f.MaxUnitCost,
	} {
		if *dst, err = q.Decimal(name); err != nil {
			return f, err
		}
	}

	for name, dst := range map[string]**int64{"min_stock": &f.MinStock, "max_stock": &f.MaxStock} {
		v, ok, err := q.Int(name)
		if err != nil {
			return f, err
		}
		if ok {
			*dst = &v
		}
	}

	return f, nil
}
