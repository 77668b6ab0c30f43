// Package tour wires the tours resource into the generic handlers and adds
// the preset list aliases.
package tour

import (
	"net/http"
	"net/url"

	"github.com/uptrace/bun"

	"github.com/natours/natours-api/internal/crud"
	"github.com/natours/natours-api/internal/database"
)

// Columns clients may filter tours on.
var allowedFilters = []string{
	"duration",
	"max_group_size",
	"difficulty",
	"price",
	"ratings_average",
	"ratings_quantity",
}

var writableColumns = []string{
	"name",
	"duration",
	"max_group_size",
	"difficulty",
	"price",
	"price_discount",
	"summary",
	"description",
	"image_cover",
}

// NewHandler builds the tours resource handler.
func NewHandler(db *bun.DB) *crud.Handler[database.Tour] {
	return crud.NewHandler(db, crud.Config[database.Tour]{
		AllowedFilters:  allowedFilters,
		WritableColumns: writableColumns,
	})
}

// AliasTopTours rewrites the query string to the top-5-cheap preset: the
// five best-rated tours, cheapest first among equals, trimmed to the
// overview fields. Client-supplied parameters are discarded.
func AliasTopTours(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		preset := url.Values{}
		preset.Set("limit", "5")
		preset.Set("sort", "-ratings_average,price")
		preset.Set("fields", "name,price,ratings_average,summary,difficulty")
		r.URL.RawQuery = preset.Encode()

		next.ServeHTTP(w, r)
	})
}
