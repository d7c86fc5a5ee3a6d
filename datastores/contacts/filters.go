package contacts

import (
	"github.com/google/uuid"

	"github.com/pitabwire/tenantkit/datastore/filter"
	"github.com/pitabwire/tenantkit/handlers"
)

// Definition exposes the contacts table to the filter builder.
var Definition = &filter.Definition{
	Table: "contacts",
	Alias: "c",
	Select: []string{
		"id", "workspace_id", "code", "name", "email", "position", "type", "address",
		"is_active", "created_by", "updated_by", "created_at", "updated_at",
	},
	Columns: map[string]string{
		"id":           "id",
		"code":         "code",
		"name":         "name",
		"email":        "email",
		"position":     "position",
		"contact_type": "type",
		"is_active":    "is_active",
	},
	TenantColumn: "workspace_id",
	Membership:   filter.DefaultMembership,
	Sorts: map[string]string{
		"name":         "name",
		"email":        "email",
		"code":         "code",
		"contact_type": "type",
		"type":         "type",
		"updated_at":   "updated_at",
		"created_at":   "created_at",
	},
	DefaultSort: "created_at",
}

// Filters are the list parameters GET /contacts understands.
type Filters struct {
	Search       string
	ContactType  string
	IsActive     *bool
	Code         string
	Email        string
	IncludeTypes []string
	ExcludeTypes []string
	IncludeIDs   []uuid.UUID
	ExcludeIDs   []uuid.UUID
	SortBy       string
	SortOrder    string
}

// Set turns the filters into builder predicates.
func (f Filters) Set() filter.Set {
	set := filter.Set{SortBy: f.SortBy, SortOrder: f.SortOrder}

	if f.Search != "" {
		set.Where(filter.Search(f.Search, false, "name", "email", "code", "position"))
	}
	if f.ContactType != "" {
		set.Where(filter.Equal("contact_type", f.ContactType))
	}
	if f.IsActive != nil {
		set.Where(filter.Equal("is_active", *f.IsActive))
	}
	if f.Code != "" {
		set.Where(filter.Contains("code", f.Code))
	}
	if f.Email != "" {
		set.Where(filter.Contains("email", f.Email))
	}
	if len(f.IncludeTypes) > 0 {
		set.Where(filter.In("contact_type", f.IncludeTypes...))
	}
	if len(f.ExcludeTypes) > 0 {
		set.Where(filter.NotIn("contact_type", f.ExcludeTypes...))
	}
	if len(f.IncludeIDs) > 0 {
		set.Where(filter.In("id", f.IncludeIDs...))
	}
	if len(f.ExcludeIDs) > 0 {
		set.Where(filter.NotIn("id", f.ExcludeIDs...))
	}
	return set
}

// ParseFilters reads Filters from the query string. List parameters are comma separated.
func ParseFilters(q handlers.Query) (Filters, error) {
	var f Filters
	var err error

	f.Search, _ = q.Text("search")
	f.ContactType, _ = q.Text("contact_type")
	f.Code, _ = q.Text("code")
	f.Email, _ = q.Text("email")
	f.SortBy, _ = q.Text("sort_by")
	f.SortOrder, _ = q.Text("sort_order")

	active, ok, err := q.Bool("is_active")
	if err != nil {
		return f, err
	}
	if ok {
		f.IsActive = &active
	}

	f.IncludeTypes = q.List("include_types")
	f.ExcludeTypes = q.List("exclude_types")

	if f.IncludeIDs, err = q.UUIDList("include_ids"); err != nil {
		return f, err
	}
	if f.ExcludeIDs, err = q.UUIDList("exclude_ids"); err != nil {
		return f, err
	}
	return f, nil
}
