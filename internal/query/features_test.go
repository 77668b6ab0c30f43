package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tourOpts = Options{
	AllowedFilters: []string{"duration", "difficulty", "price", "ratings_average"},
}

func TestParse_FullPipeline(t *testing.T) {
	values := url.Values{
		"duration[gte]": {"5"},
		"sort":          {"-price,name"},
		"fields":        {"name,price"},
		"page":          {"2"},
		"limit":         {"10"},
	}

	f := Parse(values, tourOpts)

	require.Len(t, f.Filters, 1)
	assert.Equal(t, Filter{Column: "duration", Operator: ">=", Value: int64(5)}, f.Filters[0])

	require.Len(t, f.Sorts, 2)
	assert.Equal(t, Sort{Column: "price", Descending: true}, f.Sorts[0])
	assert.Equal(t, Sort{Column: "name", Descending: false}, f.Sorts[1])

	assert.Equal(t, []string{"name", "price"}, f.Columns)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 10, f.Offset)
}

func TestParse_Defaults(t *testing.T) {
	f := Parse(url.Values{}, tourOpts)

	assert.Empty(t, f.Filters)
	assert.Equal(t, []Sort{{Column: "created_at", Descending: true}}, f.Sorts)
	assert.Empty(t, f.Columns)
	assert.Equal(t, DefaultLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func TestParse_OperatorSuffixes(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"price[gte]", ">="},
		{"price[gt]", ">"},
		{"price[lte]", "<="},
		{"price[lt]", "<"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f := Parse(url.Values{tt.key: {"100"}}, tourOpts)
			require.Len(t, f.Filters, 1)
			assert.Equal(t, tt.want, f.Filters[0].Operator)
		})
	}
}

func TestParse_EqualityFilter(t *testing.T) {
	f := Parse(url.Values{"difficulty": {"easy"}}, tourOpts)

	require.Len(t, f.Filters, 1)
	assert.Equal(t, Filter{Column: "difficulty", Operator: "=", Value: "easy"}, f.Filters[0])
}

func TestParse_ReservedKeysAreNotFilters(t *testing.T) {
	values := url.Values{
		"page":   {"3"},
		"sort":   {"price"},
		"limit":  {"5"},
		"fields": {"name"},
	}

	f := Parse(values, tourOpts)

	assert.Empty(t, f.Filters)
}

func TestParse_UnknownFilterColumnDropped(t *testing.T) {
	values := url.Values{
		"password_hash": {"x"},
		"price":         {"500"},
	}

	f := Parse(values, tourOpts)

	require.Len(t, f.Filters, 1)
	assert.Equal(t, "price", f.Filters[0].Column)
}

func TestParse_MalformedNumbersFallBack(t *testing.T) {
	values := url.Values{
		"page":  {"abc"},
		"limit": {"-4"},
	}

	f := Parse(values, tourOpts)

	assert.Equal(t, DefaultLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func TestParse_LimitCapped(t *testing.T) {
	f := Parse(url.Values{"limit": {"999999"}}, tourOpts)

	assert.Equal(t, MaxLimit, f.Limit)
}

func TestParse_VersionColumnNeverProjected(t *testing.T) {
	f := Parse(url.Values{"fields": {"name,version,price"}}, tourOpts)

	assert.Equal(t, []string{"name", "price"}, f.Columns)
}

func TestParse_NumericCoercion(t *testing.T) {
	f := Parse(url.Values{"ratings_average": {"4.5"}}, tourOpts)

	require.Len(t, f.Filters, 1)
	assert.Equal(t, 4.5, f.Filters[0].Value)
}
