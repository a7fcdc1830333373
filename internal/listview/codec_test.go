package listview

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivankomartin/deposit-console/internal/domain"
)

func TestDecode_Defaults(t *testing.T) {
	assert.Equal(t, DefaultQuery(), Decode(url.Values{}))
}

func TestDecode_NormalizesInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, q Query)
	}{
		{"page zero", "page=0", func(t *testing.T, q Query) { assert.Equal(t, 1, q.Page) }},
		{"negative page", "page=-3", func(t *testing.T, q Query) { assert.Equal(t, 1, q.Page) }},
		{"page not a number", "page=two", func(t *testing.T, q Query) { assert.Equal(t, 1, q.Page) }},
		{"valid page", "page=7", func(t *testing.T, q Query) { assert.Equal(t, 7, q.Page) }},
		{"unsupported limit", "limit=30", func(t *testing.T, q Query) { assert.Equal(t, 25, q.Limit) }},
		{"limit not a number", "limit=lots", func(t *testing.T, q Query) { assert.Equal(t, 25, q.Limit) }},
		{"supported limit", "limit=100", func(t *testing.T, q Query) { assert.Equal(t, 100, q.Limit) }},
		{"unknown status", "status=archived", func(t *testing.T, q Query) { assert.Equal(t, domain.StatusAll, q.Status) }},
		{"status case matters", "status=Active", func(t *testing.T, q Query) { assert.Equal(t, domain.StatusAll, q.Status) }},
		{"inactive status", "status=inactive", func(t *testing.T, q Query) { assert.Equal(t, domain.StatusInactive, q.Status) }},
		{"unknown sort", "sort=deposit", func(t *testing.T, q Query) { assert.Equal(t, domain.SortByRegisteredAt, q.Sort) }},
		{"name sort", "sort=name", func(t *testing.T, q Query) { assert.Equal(t, domain.SortByName, q.Sort) }},
		{"unknown order", "order=up", func(t *testing.T, q Query) { assert.Equal(t, domain.OrderDesc, q.Order) }},
		{"asc order", "order=asc", func(t *testing.T, q Query) { assert.Equal(t, domain.OrderAsc, q.Order) }},
		{"text filters kept verbatim", "q=Cola+Zero&companyId=12", func(t *testing.T, q Query) {
			assert.Equal(t, "Cola Zero", q.NameQuery)
			assert.Equal(t, "12", q.CompanyID)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)
			tt.check(t, Decode(v))
		})
	}
}

func TestEncode_WritesExplicitFieldsAndOmitsEmptyFilters(t *testing.T) {
	v := Encode(DefaultQuery())

	assert.Equal(t, "all", v.Get(ParamStatus))
	assert.Equal(t, "1", v.Get(ParamPage))
	assert.Equal(t, "25", v.Get(ParamLimit))
	assert.Equal(t, "registeredAt", v.Get(ParamSort))
	assert.Equal(t, "desc", v.Get(ParamOrder))
	assert.False(t, v.Has(ParamQ))
	assert.False(t, v.Has(ParamCompanyID))

	q := DefaultQuery()
	q.NameQuery, q.CompanyID = "water", "3"
	v = Encode(q)
	assert.Equal(t, "water", v.Get(ParamQ))
	assert.Equal(t, "3", v.Get(ParamCompanyID))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	var queries []Query
	for _, limit := range PageSizes() {
		for _, status := range domain.ValidStatuses() {
			for _, sort := range []domain.SortField{domain.SortByName, domain.SortByRegisteredAt} {
				for _, order := range []domain.SortOrder{domain.OrderAsc, domain.OrderDesc} {
					queries = append(queries,
						Query{Page: 1, Limit: limit, Status: status, Sort: sort, Order: order},
						Query{Page: 4, Limit: limit, Status: status, Sort: sort, Order: order, NameQuery: "Ä b&c=d", CompanyID: "17"},
					)
				}
			}
		}
	}

	for _, q := range queries {
		encoded := Encode(q)
		assert.Equal(t, q, Decode(encoded))
		assert.Equal(t, encoded, Encode(Decode(encoded)), "encoding must be stable")
	}
}

func TestEncode_StableForArbitraryInput(t *testing.T) {
	inputs := []string{
		"",
		"page=-1&limit=7&status=x&sort=y&order=z",
		"q=&companyId=&page=3",
		"status=active&q=%20spaced%20",
	}
	for _, raw := range inputs {
		v, err := url.ParseQuery(raw)
		require.NoError(t, err)

		once := Encode(Decode(v))
		twice := Encode(Decode(once))
		assert.Equal(t, once, twice, "input %q", raw)
	}
}

func TestApply_PreservesForeignParameters(t *testing.T) {
	base := url.Values{"tab": {"details"}, ParamQ: {"old"}}
	q := DefaultQuery()

	next := Apply(base, q)

	assert.Equal(t, "details", next.Get("tab"))
	assert.False(t, next.Has(ParamQ), "empty q is removed")
	assert.Equal(t, "old", base.Get(ParamQ), "base is not mutated")
}

func TestQuery_Searching(t *testing.T) {
	q := DefaultQuery()
	assert.False(t, q.Searching())
	q.NameQuery = "c"
	assert.True(t, q.Searching())
	q.NameQuery, q.CompanyID = "", "4"
	assert.True(t, q.Searching())
}

func TestQuery_ServerQuery(t *testing.T) {
	q := Query{Page: 2, Limit: 25, Status: domain.StatusInactive, Sort: domain.SortByName, Order: domain.OrderAsc}

	sq := q.ServerQuery()

	assert.Equal(t, 2, sq.Page)
	assert.Equal(t, 25, sq.Limit)
	require.NotNil(t, sq.Active)
	assert.False(t, *sq.Active)
	assert.Equal(t, domain.SortByName, sq.Sort)
	assert.Equal(t, domain.OrderAsc, sq.Order)
}

func TestQuery_ServerKeyIgnoresTextFilters(t *testing.T) {
	a := DefaultQuery()
	b := a
	b.NameQuery = "cola"
	assert.Equal(t, a.serverKey(), b.serverKey())

	b.Page = 2
	assert.NotEqual(t, a.serverKey(), b.serverKey())
}

func TestMemoryLocation_ReplaceKeepsHistory(t *testing.T) {
	loc := NewMemoryLocation("status=active")
	assert.Equal(t, "active", loc.Query().Get(ParamStatus))

	loc.Replace("status=inactive")
	loc.Replace("status=all")

	assert.Equal(t, "status=all", loc.RawQuery())
	assert.Equal(t, 1, loc.HistoryLen())
	assert.Equal(t, 2, loc.Replacements())

	loc.Push("page=2")
	assert.Equal(t, 2, loc.HistoryLen())
}
