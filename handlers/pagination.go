package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Page is a 1-based page request with its limit already clamped.
type Page struct {
	Number uint64
	Limit  uint64
}

// maxOffset is the largest offset postgres accepts as a bigint.
const maxOffset = uint64(math.MaxInt64)

// Offset is the number of rows before this page. It saturates at the largest bigint.
func (p Page) Offset() uint64 {
	if p.Number == 0 || p.Limit == 0 {
		return 0
	}
	if p.Number-1 > maxOffset/p.Limit {
		return maxOffset
	}
	return (p.Number - 1) * p.Limit
}

// ParsePage reads the page and limit query parameters. Missing values take the configured
// defaults and a limit above the configured maximum is lowered to it.
func ParsePage(r *http.Request, cfg config.ConfigurationPagination) (Page, error) {
	limit, ceiling := uint64(defaultPageLimit), uint64(maxPageLimit)
	if cfg != nil {
		limit, ceiling = uint64(max(cfg.DefaultPageLimit(), 1)), uint64(max(cfg.MaxPageLimit(), 1)) //nolint:gosec // clamped positive
	}

	page := Page{Number: 1, Limit: limit}
	query := r.URL.Query()

	if raw := query.Get("page"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			return page, httptor.BadRequest("page must be a positive integer")
		}
		page.Number = n
	}

	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			return page, httptor.BadRequest("limit must be a positive integer")
		}
		page.Limit = n
	}

	page.Limit = min(page.Limit, ceiling)
	if page.Number-1 > maxOffset/page.Limit {
		return page, httptor.BadRequest("page is out of range")
	}
	return page, nil
}
