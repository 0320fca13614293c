package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrg is a minimal Org for in-memory evaluation.
type fakeOrg struct {
	id      int64
	domain  string
	owner   int64
	support bool
}

func (f fakeOrg) OrgID() int64 { return f.id }

func (f fakeOrg) OrgDomain() (string, bool) {
	return f.domain, f.domain != ""
}

func (f fakeOrg) OrgOwner() (int64, bool) {
	return f.owner, f.owner != 0
}

func (f fakeOrg) SupportOrg() bool { return f.support }

func TestFilterMatches(t *testing.T) {
	team := fakeOrg{id: 1, domain: "acme"}
	personal := fakeOrg{id: 2, owner: 7}
	support := fakeOrg{id: 3, domain: "helpdesk", support: true}

	tests := []struct {
		name   string
		filter *Filter
		org    Org
		want   bool
	}{
		{"none rejects everything", MatchNone(), team, false},
		{"all accepts everything", MatchAll(), personal, true},
		{"by id hit", ByID(2), personal, true},
		{"by id miss", ByID(2), team, false},
		{"domain hit", MatchesDomain("acme"), team, true},
		{"domain miss", MatchesDomain("acme"), support, false},
		{"domain never matches personal", MatchesDomain("acme"), personal, false},
		{"personal of owner", PersonalOrgOf(7), personal, true},
		{"personal of other owner", PersonalOrgOf(8), personal, false},
		{"personal of never matches team", PersonalOrgOf(7), team, false},
		{"any personal hit", AnyPersonalOrg(), personal, true},
		{"any personal miss", AnyPersonalOrg(), team, false},
		{"support hit", SupportOrg(), support, true},
		{"support miss", SupportOrg(), team, false},
		{"or short circuit", Or(MatchesDomain("acme"), AnyPersonalOrg()), personal, true},
		{"or all miss", Or(MatchesDomain("acme"), SupportOrg()), personal, false},
		{"and all hit", And(ByID(3), SupportOrg()), support, true},
		{"and partial miss", And(ByID(3), AnyPersonalOrg()), support, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.org))
		})
	}
}

func TestFilterSQL(t *testing.T) {
	tests := []struct {
		name       string
		filter     *Filter
		wantClause string
		wantArgs   []interface{}
	}{
		{"none", MatchNone(), "1 = 0", nil},
		{"all", MatchAll(), "1 = 1", nil},
		{"by id", ByID(42), "o.id = $1", []interface{}{int64(42)}},
		{"domain", MatchesDomain("acme"), "o.domain = $1", []interface{}{"acme"}},
		{"personal of", PersonalOrgOf(7), "o.owner_id = $1", []interface{}{int64(7)}},
		{"any personal", AnyPersonalOrg(), "o.owner_id IS NOT NULL", nil},
		{"support", SupportOrg(), "o.is_support", nil},
		{
			"or numbers placeholders in order",
			Or(MatchesDomain("acme"), PersonalOrgOf(7)),
			"(o.domain = $1 OR o.owner_id = $2)",
			[]interface{}{"acme", int64(7)},
		},
		{
			"nested and over or",
			And(Or(ByID(1), ByID(2)), SupportOrg()),
			"((o.id = $1 OR o.id = $2) AND o.is_support)",
			[]interface{}{int64(1), int64(2)},
		},
		{"empty or fails closed", Or(), "1 = 0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args := tt.filter.SQL("o", 1)
			assert.Equal(t, tt.wantClause, clause)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestFilterSQLArgOffset(t *testing.T) {
	clause, args := Or(MatchesDomain("acme"), AnyPersonalOrg()).SQL("orgs", 3)
	assert.Equal(t, "(orgs.domain = $3 OR orgs.owner_id IS NOT NULL)", clause)
	require.Len(t, args, 1)
	assert.Equal(t, "acme", args[0])
}

func TestFilterString(t *testing.T) {
	f := Or(MatchesDomain("acme"), And(PersonalOrgOf(7), SupportOrg()))
	assert.Equal(t, "or(domain=acme, and(personal-of=7, support))", f.String())
}
