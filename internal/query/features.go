// Package query translates request query strings into bun SELECT queries:
// filtering with comparison operators, sorting, field projection and
// pagination, applied in that order.
package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

// Reserved control keys are never treated as filters.
const (
	keyPage   = "page"
	keySort   = "sort"
	keyLimit  = "limit"
	keyFields = "fields"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
	DefaultSort  = "created_at"

	// versionColumn is the internal optimistic-versioning column; it is
	// excluded from every projection.
	versionColumn = "version"
)

// operators maps the query-string operator suffixes to SQL.
var operators = map[string]string{
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
}

var (
	identRe    = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	operatorRe = regexp.MustCompile(`^([a-z_][a-z0-9_]*)\[(gte|gt|lte|lt)\]$`)
)

// Filter is a single comparison against a column.
type Filter struct {
	Column   string
	Operator string // SQL comparison operator
	Value    any
}

// Sort is one ordering term.
type Sort struct {
	Column     string
	Descending bool
}

// Options configures parsing per resource.
type Options struct {
	// AllowedFilters lists the columns clients may filter on. Filters on
	// any other key are dropped. Doubles as the identifier guard, since
	// filter columns are interpolated into SQL.
	AllowedFilters []string
	// DefaultSort overrides the created_at default.
	DefaultSort string
}

// Features is the parsed, not-yet-executed query description.
type Features struct {
	Filters []Filter
	Sorts   []Sort
	Columns []string
	Limit   int
	Offset  int
}

// Parse builds Features from raw query values. Malformed numeric inputs
// fall back to defaults; unknown filter keys are ignored.
func Parse(values url.Values, opts Options) *Features {
	f := &Features{Limit: DefaultLimit}

	allowed := make(map[string]bool, len(opts.AllowedFilters))
	for _, col := range opts.AllowedFilters {
		allowed[col] = true
	}

	// 1. Filter
	for key, vals := range values {
		if key == keyPage || key == keySort || key == keyLimit || key == keyFields {
			continue
		}
		if len(vals) == 0 {
			continue
		}

		column, op := key, "="
		if m := operatorRe.FindStringSubmatch(key); m != nil {
			column, op = m[1], operators[m[2]]
		}
		if !allowed[column] {
			continue
		}

		f.Filters = append(f.Filters, Filter{
			Column:   column,
			Operator: op,
			Value:    coerceValue(vals[0]),
		})
	}

	// 2. Sort
	if raw := values.Get(keySort); raw != "" {
		for _, term := range strings.Split(raw, ",") {
			term = strings.TrimSpace(term)
			desc := strings.HasPrefix(term, "-")
			column := strings.TrimPrefix(term, "-")
			if !identRe.MatchString(column) {
				continue
			}
			f.Sorts = append(f.Sorts, Sort{Column: column, Descending: desc})
		}
	}
	if len(f.Sorts) == 0 {
		defaultSort := opts.DefaultSort
		if defaultSort == "" {
			defaultSort = DefaultSort
		}
		f.Sorts = []Sort{{Column: defaultSort, Descending: true}}
	}

	// 3. Field limiting
	if raw := values.Get(keyFields); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			field = strings.TrimSpace(field)
			if field == versionColumn || !identRe.MatchString(field) {
				continue
			}
			f.Columns = append(f.Columns, field)
		}
	}

	// 4. Paginate
	page := positiveInt(values.Get(keyPage), 1)
	f.Limit = positiveInt(values.Get(keyLimit), DefaultLimit)
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	f.Offset = (page - 1) * f.Limit

	return f
}

// Apply composes the features onto a bun SELECT query. The query is not
// executed; the caller runs it.
func (f *Features) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	for _, filter := range f.Filters {
		q = q.Where("?TableAlias.? "+filter.Operator+" ?", bun.Ident(filter.Column), filter.Value)
	}

	for _, sort := range f.Sorts {
		if sort.Descending {
			q = q.OrderExpr("?TableAlias.? DESC", bun.Ident(sort.Column))
		} else {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(sort.Column))
		}
	}

	if len(f.Columns) > 0 {
		q = q.Column(f.Columns...)
	} else {
		q = q.ExcludeColumn(versionColumn)
	}

	return q.Limit(f.Limit).Offset(f.Offset)
}

// coerceValue converts numeric-looking filter values so Postgres can
// compare them against numeric columns.
func coerceValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil {
		return fl
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func positiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
