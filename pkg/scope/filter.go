package scope

import (
	"fmt"
	"strings"
)

// Org is the minimal view of an organization row a Filter is evaluated
// against. pkg/store's Organization satisfies it.
type Org interface {
	OrgID() int64
	OrgDomain() (string, bool)
	OrgOwner() (int64, bool)
	SupportOrg() bool
}

type filterOp int

const (
	opLeaf filterOp = iota
	opAnd
	opOr
)

type leafKind int

const (
	leafNone leafKind = iota
	leafAll
	leafByID
	leafDomain
	leafPersonalOf
	leafAnyPersonal
	leafSupport
)

// Filter is a declarative predicate over organizations. It can be evaluated
// in memory against an Org, or rendered as a SQL WHERE fragment for the store
// to splice into org, workspace, and document queries. The zero Filter is not
// valid; use the constructors.
type Filter struct {
	op     filterOp
	leaf   leafKind
	id     int64
	domain string
	owner  int64
	parts  []*Filter
}

// MatchNone matches no organization. Unclassifiable identifiers resolve to
// this filter so that absence of classification fails closed.
func MatchNone() *Filter { return &Filter{leaf: leafNone} }

// MatchAll matches every organization.
func MatchAll() *Filter { return &Filter{leaf: leafAll} }

// ByID matches the organization with the given id.
func ByID(id int64) *Filter { return &Filter{leaf: leafByID, id: id} }

// MatchesDomain matches the organization whose stored domain equals d.
func MatchesDomain(d string) *Filter { return &Filter{leaf: leafDomain, domain: d} }

// PersonalOrgOf matches the personal organization owned by userID.
func PersonalOrgOf(userID int64) *Filter { return &Filter{leaf: leafPersonalOf, owner: userID} }

// AnyPersonalOrg matches every personal organization, whoever owns it.
func AnyPersonalOrg() *Filter { return &Filter{leaf: leafAnyPersonal} }

// SupportOrg matches organizations flagged for support staff.
func SupportOrg() *Filter { return &Filter{leaf: leafSupport} }

// Or combines filters disjunctively.
func Or(parts ...*Filter) *Filter { return &Filter{op: opOr, parts: parts} }

// And combines filters conjunctively.
func And(parts ...*Filter) *Filter { return &Filter{op: opAnd, parts: parts} }

// Matches evaluates the filter against a single organization row.
func (f *Filter) Matches(org Org) bool {
	switch f.op {
	case opAnd:
		for _, p := range f.parts {
			if !p.Matches(org) {
				return false
			}
		}
		return true
	case opOr:
		for _, p := range f.parts {
			if p.Matches(org) {
				return true
			}
		}
		return false
	}

	switch f.leaf {
	case leafAll:
		return true
	case leafByID:
		return org.OrgID() == f.id
	case leafDomain:
		d, ok := org.OrgDomain()
		return ok && d == f.domain
	case leafPersonalOf:
		owner, ok := org.OrgOwner()
		return ok && owner == f.owner
	case leafAnyPersonal:
		_, ok := org.OrgOwner()
		return ok
	case leafSupport:
		return org.SupportOrg()
	default:
		return false
	}
}

// SQL renders the filter as a WHERE fragment over the organizations table
// aliased as alias, with placeholders numbered from argPos. The caller binds
// the returned args in order after any of its own.
func (f *Filter) SQL(alias string, argPos int) (string, []interface{}) {
	clause, args, _ := f.sql(alias, argPos)
	return clause, args
}

func (f *Filter) sql(alias string, pos int) (string, []interface{}, int) {
	switch f.op {
	case opAnd, opOr:
		if len(f.parts) == 0 {
			return "1 = 0", nil, pos
		}
		sep := " AND "
		if f.op == opOr {
			sep = " OR "
		}
		clauses := make([]string, 0, len(f.parts))
		var args []interface{}
		for _, p := range f.parts {
			c, a, next := p.sql(alias, pos)
			clauses = append(clauses, c)
			args = append(args, a...)
			pos = next
		}
		return "(" + strings.Join(clauses, sep) + ")", args, pos
	}

	switch f.leaf {
	case leafAll:
		return "1 = 1", nil, pos
	case leafByID:
		return fmt.Sprintf("%s.id = $%d", alias, pos), []interface{}{f.id}, pos + 1
	case leafDomain:
		return fmt.Sprintf("%s.domain = $%d", alias, pos), []interface{}{f.domain}, pos + 1
	case leafPersonalOf:
		return fmt.Sprintf("%s.owner_id = $%d", alias, pos), []interface{}{f.owner}, pos + 1
	case leafAnyPersonal:
		return fmt.Sprintf("%s.owner_id IS NOT NULL", alias), nil, pos
	case leafSupport:
		return fmt.Sprintf("%s.is_support", alias), nil, pos
	default:
		return "1 = 0", nil, pos
	}
}

// String renders a compact description of the filter, for logs and tests.
func (f *Filter) String() string {
	switch f.op {
	case opAnd, opOr:
		op := "and"
		if f.op == opOr {
			op = "or"
		}
		parts := make([]string, len(f.parts))
		for i, p := range f.parts {
			parts[i] = p.String()
		}
		return op + "(" + strings.Join(parts, ", ") + ")"
	}
	switch f.leaf {
	case leafAll:
		return "all"
	case leafByID:
		return fmt.Sprintf("id=%d", f.id)
	case leafDomain:
		return "domain=" + f.domain
	case leafPersonalOf:
		return fmt.Sprintf("personal-of=%d", f.owner)
	case leafAnyPersonal:
		return "any-personal"
	case leafSupport:
		return "support"
	default:
		return "none"
	}
}
