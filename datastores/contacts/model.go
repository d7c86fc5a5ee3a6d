package contacts

import (
	"strings"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/handlers"
)

const (
	TypeCustomer = "customer"
	TypeSupplier = "supplier"
	TypeEmployee = "employee"
	TypeOther    = "other"
)

// Contact is a person or organisation a workspace deals with.
type Contact struct {
	data.WorkspaceModel
	Code        string  `gorm:"type:varchar(50);not null"  json:"code"`
	Name        string  `gorm:"type:varchar(255);not null" json:"name"`
	Email       string  `gorm:"type:varchar(255);not null" json:"email"`
	Position    string  `gorm:"type:varchar(255);not null" json:"position"`
	ContactType string  `gorm:"column:type;not null"       json:"contact_type"`
	Address     *string `gorm:"type:text"                  json:"address"`
	IsActive    bool    `gorm:"not null"                   json:"is_active"`
}

func (*Contact) TableName() string {
	return "contacts"
}

func (c *Contact) GetCode() string {
	return c.Code
}

func (c *Contact) SetCode(code string) {
	c.Code = code
}

func (c *Contact) CodeSource() string {
	return c.Name
}

// CreateRequest is the body of POST /contacts. An empty Code asks for one to be generated.
type CreateRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Position    string  `json:"position"`
	ContactType string  `json:"contact_type"`
	Address     *string `json:"address"`
	IsActive    *bool   `json:"is_active"`
}

func (r *CreateRequest) Validate() error {
	fields := handlers.FieldErrors{}
	if strings.TrimSpace(r.Name) == "" {
		fields.Add("name", "is required")
	}
	if r.ContactType != "" && !validType(r.ContactType) {
		fields.Add("contact_type", "must be one of customer, supplier, employee, other")
	}
	return fields.Err()
}

func (r *CreateRequest) Contact() *Contact {
	c := &Contact{
		Code:        strings.TrimSpace(r.Code),
		Name:        strings.TrimSpace(r.Name),
		Email:       strings.TrimSpace(r.Email),
		Position:    strings.TrimSpace(r.Position),
		ContactType: r.ContactType,
		Address:     r.Address,
		IsActive:    true,
	}
	if c.ContactType == "" {
		c.ContactType = TypeCustomer
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	return c
}

// UpdateRequest is the body of PUT /contacts/{id}. Only the fields present are changed.
type UpdateRequest struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Position    *string `json:"position"`
	ContactType *string `json:"contact_type"`
	Address     *string `json:"address"`
	IsActive    *bool   `json:"is_active"`
}

func (r *UpdateRequest) Validate() error {
	fields := handlers.FieldErrors{}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		fields.Add("name", "cannot be blank")
	}
	if r.Code != nil && strings.TrimSpace(*r.Code) == "" {
		fields.Add("code", "cannot be blank")
	}
	if r.ContactType != nil && !validType(*r.ContactType) {
		fields.Add("contact_type", "must be one of customer, supplier, employee, other")
	}
	return fields.Err()
}

// Apply copies the present fields onto c and returns the columns it touched.
func (r *UpdateRequest) Apply(c *Contact) []string {
	var columns []string
	if r.Code != nil {
		c.Code = strings.TrimSpace(*r.Code)
		columns = append(columns, "code")
	}
	if r.Name != nil {
		c.Name = strings.TrimSpace(*r.Name)
		columns = append(columns, "name")
	}
	if r.Email != nil {
		c.Email = strings.TrimSpace(*r.Email)
		columns = append(columns, "email")
	}
	if r.Position != nil {
		c.Position = strings.TrimSpace(*r.Position)
		columns = append(columns, "position")
	}
	if r.ContactType != nil {
		c.ContactType = *r.ContactType
		columns = append(columns, "type")
	}
	if r.Address != nil {
		c.Address = r.Address
		columns = append(columns, "address")
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
		columns = append(columns, "is_active")
	}
	return columns
}

func validType(t string) bool {
	switch t {
	case TypeCustomer, TypeSupplier, TypeEmployee, TypeOther:
		return true
	}
	return false
}
