package products

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/handlers"
)

const (
	TaxPercentage  = "percentage"
	TaxFixedAmount = "fixed_amount"

	defaultBaseUnit = "pcs"
	maxCodeLength   = 50
	maxSKULength    = 100
)

// Product is a sellable item of a workspace catalogue.
type Product struct {
	data.WorkspaceModel
	Code                string           `gorm:"type:varchar(50);not null"   json:"code"`
	Name                string           `gorm:"type:varchar(255);not null"  json:"name"`
	CategoryID          *uuid.UUID       `gorm:"type:uuid"                   json:"category_id"`
	SupplierID          *uuid.UUID       `gorm:"type:uuid"                   json:"supplier_id"`
	BaseUnit            string           `gorm:"type:varchar(50);not null"   json:"base_unit"`
	UnitOnReportPreview *string          `gorm:"type:varchar(50)"            json:"unit_on_report_preview"`
	SellingPrice        decimal.Decimal  `gorm:"type:numeric(18,4);not null" json:"selling_price"`
	UnitCost            decimal.Decimal  `gorm:"type:numeric(18,4);not null" json:"unit_cost"`
	TrackInventory      bool             `gorm:"not null"                    json:"track_inventory"`
	Description         *string          `gorm:"type:text"                   json:"description"`
	SKU                 *string          `gorm:"column:sku;type:varchar(100)" json:"sku"`
	Barcode             *string          `gorm:"type:varchar(100)"           json:"barcode"`
	MinimumStock        *int32           `json:"minimum_stock"`
	MaximumStock        *int32           `json:"maximum_stock"`
	ReorderLevel        *int32           `json:"reorder_level"`
	CurrentStock        *int32           `json:"current_stock"`
	TaxType             *string          `gorm:"type:varchar(50)"            json:"tax_type"`
	TaxRate             *decimal.Decimal `gorm:"type:numeric(9,4)"           json:"tax_rate"`
	TaxAmount           *decimal.Decimal `gorm:"type:numeric(18,4)"          json:"tax_amount"`
	IsActive            bool             `gorm:"not null"                    json:"is_active"`
}

func (*Product) TableName() string {
	return "products"
}

func (p *Product) GetCode() string {
	return p.Code
}

func (p *Product) SetCode(code string) {
	p.Code = code
}

func (p *Product) CodeSource() string {
	return p.Name
}

// LowStock reports whether a tracked product is at or below its reorder level.
func (p *Product) LowStock() bool {
	return p.TrackInventory && p.CurrentStock != nil && p.ReorderLevel != nil && *p.CurrentStock <= *p.ReorderLevel
}

// Fields shared by create and update bodies.
type attributes struct {
	CategoryID          *uuid.UUID       `json:"category_id"`
	SupplierID          *uuid.UUID       `json:"supplier_id"`
	UnitOnReportPreview *string          `json:"unit_on_report_preview"`
	SellingPrice        *decimal.Decimal `json:"selling_price"`
	UnitCost            *decimal.Decimal `json:"unit_cost"`
	TrackInventory      *bool            `json:"track_inventory"`
	Description         *string          `json:"description"`
	SKU                 *string          `json:"sku"`
	Barcode             *string          `json:"barcode"`
	MinimumStock        *int32           `json:"minimum_stock"`
	MaximumStock        *int32           `json:"maximum_stock"`
	ReorderLevel        *int32           `json:"reorder_level"`
	CurrentStock        *int32           `json:"current_stock"`
	TaxType             *string          `json:"tax_type"`
	TaxRate             *decimal.Decimal `json:"tax_rate"`
	TaxAmount           *decimal.Decimal `json:"tax_amount"`
	IsActive            *bool            `json:"is_active"`
}

func (a *attributes) validate(fields handlers.FieldErrors) {
	if a.SellingPrice != nil && a.SellingPrice.IsNegative() {
		fields.Add("selling_price", "cannot be negative")
	}
	if a.UnitCost != nil && a.UnitCost.IsNegative() {
		fields.Add("unit_cost", "cannot be negative")
	}
	if a.SKU != nil && len(*a.SKU) > maxSKULength {
		fields.Add("sku", "must be max 100 characters")
	}
	if a.Barcode != nil && len(*a.Barcode) > maxSKULength {
		fields.Add("barcode", "must be max 100 characters")
	}
	if a.TaxType != nil && *a.TaxType != TaxPercentage && *a.TaxType != TaxFixedAmount {
		fields.Add("tax_type", "must be either 'percentage' or 'fixed_amount'")
	}
	if a.MinimumStock != nil && a.MaximumStock != nil && *a.MinimumStock > *a.MaximumStock {
		fields.Add("minimum_stock", "cannot exceed maximum_stock")
	}
}

// apply copies the present attributes onto p and returns the columns it touched.
func (a *attributes) apply(p *Product) []string {
	var columns []string
	set := func(column string, present bool, assign func()) {
		if present {
			assign()
			columns = append(columns, column)
		}
	}

	set("category_id", a.CategoryID != nil, func() { p.CategoryID = a.CategoryID })
	set("supplier_id", a.SupplierID != nil, func() { p.SupplierID = a.SupplierID })
	set("unit_on_report_preview", a.UnitOnReportPreview != nil, func() { p.UnitOnReportPreview = a.UnitOnReportPreview })
	set("selling_price", a.SellingPrice != nil, func() { p.SellingPrice = *a.SellingPrice })
	set("unit_cost", a.UnitCost != nil, func() { p.UnitCost = *a.UnitCost })
	set("track_inventory", a.TrackInventory != nil, func() { p.TrackInventory = *a.TrackInventory })
	set("description", a.Description != nil, func() { p.Description = a.Description })
	set("sku", a.SKU != nil, func() { p.SKU = a.SKU })
	set("barcode", a.Barcode != nil, func() { p.Barcode = a.Barcode })
	set("minimum_stock", a.MinimumStock != nil, func() { p.MinimumStock = a.MinimumStock })
	set("maximum_stock", a.MaximumStock != nil, func() { p.MaximumStock = a.MaximumStock })
	set("reorder_level", a.ReorderLevel != nil, func() { p.ReorderLevel = a.ReorderLevel })
	set("current_stock", a.CurrentStock != nil, func() { p.CurrentStock = a.CurrentStock })
	set("tax_type", a.TaxType != nil, func() { p.TaxType = a.TaxType })
	set("tax_rate", a.TaxRate != nil, func() { p.TaxRate = a.TaxRate })
	set("tax_amount", a.TaxAmount != nil, func() { p.TaxAmount = a.TaxAmount })
	set("is_active", a.IsActive != nil, func() { p.IsActive = *a.IsActive })
	return columns
}

// CreateRequest is the body of POST /products. An empty Code asks for one to be generated.
type CreateRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	BaseUnit string `json:"base_unit"`
	attributes
}

func (r *CreateRequest) Validate() error {
	fields := handlers.FieldErrors{}
	if strings.TrimSpace(r.Name) == "" {
		fields.Add("name", "is required")
	}
	if len(r.Code) > maxCodeLength {
		fields.Add("code", "must be max 50 characters")
	}
	r.attributes.validate(fields)
	return fields.Err()
}

func (r *CreateRequest) Product() *Product {
	p := &Product{
		Code:     strings.TrimSpace(r.Code),
		Name:     strings.TrimSpace(r.Name),
		BaseUnit: strings.TrimSpace(r.BaseUnit),
		IsActive: true,
	}
	if p.BaseUnit == "" {
		p.BaseUnit = defaultBaseUnit
	}
	r.attributes.apply(p)
	return p
}

// UpdateRequest is the body of PUT /products/{id}. Only the fields present are changed.
type UpdateRequest struct {
	Code     *string `json:"code"`
	Name     *string `json:"name"`
	BaseUnit *string `json:"base_unit"`
	attributes
}

func (r *UpdateRequest) Validate() error {
	fields := handlers.FieldErrors{}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		fields.Add("name", "cannot be blank")
	}
	if r.Code != nil && (strings.TrimSpace(*r.Code) == "" || len(*r.Code) > maxCodeLength) {
		fields.Add("code", "must be between 1 and 50 characters")
	}
	if r.BaseUnit != nil && strings.TrimSpace(*r.BaseUnit) == "" {
		fields.Add("base_unit", "cannot be blank")
	}
	r.attributes.validate(fields)
	return fields.Err()
}

// Apply copies the present fields onto p and returns the columns it touched.
func (r *UpdateRequest) Apply(p *Product) []string {
	var columns []string
	if r.Code != nil {
		p.Code = strings.TrimSpace(*r.Code)
		columns = append(columns, "code")
	}
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
		columns = append(columns, "name")
	}
	if r.BaseUnit != nil {
		p.BaseUnit = strings.TrimSpace(*r.BaseUnit)
		columns = append(columns, "base_unit")
	}
	return append(columns, r.attributes.apply(p)...)
}
