package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inspectra-app/inspectra/internal/shared"
)

// IDParam parses the {id} route parameter.
func IDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// QueryOrg reads the optional ?org= tenant override used by admins.
// Returns nil when the parameter is absent or malformed.
func QueryOrg(r *http.Request) *int64 {
	raw := r.URL.Query().Get("org")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// QueryPage reads ?page= and ?perPage= with sane defaults.
func QueryPage(r *http.Request) shared.Pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	return shared.Pagination{Page: page, PerPage: perPage}
}
