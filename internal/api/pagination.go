package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/blockwatch/blockwatch/internal/database"
)

// List endpoints serve 50 findings per page unless per_page asks otherwise, capped at 200.
const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams is the page window of a list request, 1-based.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads page and per_page. Missing or non-positive values
// fall back to the defaults.
func ParsePagination(r *http.Request) PaginationParams {
	q := r.URL.Query()
	return PaginationParams{
		Page:    positiveParam(q, "page", 1),
		PerPage: min(positiveParam(q, "per_page", defaultPerPage), maxPerPage),
	}
}

func positiveParam(q url.Values, key string, fallback int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Offset is the number of rows preceding this page.
func (p PaginationParams) Offset() int {
	return p.PerPage * (p.Page - 1)
}

// TotalPages is how many pages of PerPage rows total needs.
func (p PaginationParams) TotalPages(total int64) int {
	if p.PerPage < 1 || total < 1 {
		return 0
	}
	size := int64(p.PerPage)
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return int(pages)
}

func (p PaginationParams) Paginated(data interface{}, total int64) PaginatedResponse {
	meta := PaginationMeta{Page: p.Page, PerPage: p.PerPage, Total: total}
	meta.TotalPages = p.TotalPages(total)
	return PaginatedResponse{Data: data, Pagination: meta}
}

// ParseFindingFilter reads the site_id, block_id and status query filters.
// Status is lowercased.
func ParseFindingFilter(r *http.Request) database.FindingFilter {
	q := r.URL.Query()
	get := func(key string) string { return strings.TrimSpace(q.Get(key)) }
	return database.FindingFilter{
		SiteID:  get("site_id"),
		BlockID: get("block_id"),
		Status:  strings.ToLower(get("status")),
	}
}
