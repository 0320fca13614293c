package scope

import (
	"github.com/platinummonkey/tome/pkg/orgident"
)

// Policy is the immutable deployment-wide organization policy. It is built
// once at startup from configuration and passed into constructors; nothing
// re-reads the environment after that.
type Policy struct {
	// FixedOrgDomain restricts the installation to one team organization.
	// Empty means unrestricted.
	FixedOrgDomain string
	// IDPrefix is spliced into the reserved docs-<n> / o-<n> domain grammar.
	IDPrefix string
}

// SingleOrg reports whether the deployment is pinned to a fixed team domain.
func (p Policy) SingleOrg() bool {
	return p.FixedOrgDomain != ""
}

// EffectiveFilter maps a classified org reference to the organization filter
// the store applies, composing the request with the deployment policy.
//
// An explicit id reference is always honored as-is: it bypasses the fixed
// domain entirely and stands or falls on the row existing and on permission
// checks. The merged sentinel always means every personal organization,
// whatever the fixed domain is. A request for the fixed domain itself keeps
// an OR over personal organizations: personal orgs are provisioned
// independently of the policy, and dropping them here makes resources
// listable but unfetchable. Other literal domains stay narrow, so a request
// naming a foreign team domain never reaches personal orgs.
//
// userID is unused today; the contract passes it so per-user policy (for
// example collaborator allowlists) can slot in without a signature change.
func (p Policy) EffectiveFilter(ref orgident.OrgRef, userID int64) *Filter {
	switch ref.Kind {
	case orgident.KindByID:
		return ByID(ref.OrgID)
	case orgident.KindByOrgIDDomain:
		return ByID(ref.OrgID)
	case orgident.KindMerged:
		return AnyPersonalOrg()
	case orgident.KindByPersonalDomain:
		return PersonalOrgOf(ref.OwnerID)
	case orgident.KindByDomain:
		if p.SingleOrg() && ref.Domain == p.FixedOrgDomain {
			return Or(MatchesDomain(ref.Domain), AnyPersonalOrg())
		}
		return MatchesDomain(ref.Domain)
	default:
		return MatchNone()
	}
}

// DefaultScope is the filter applied when a request names no organization at
// all: everything reachable under the deployment policy.
func (p Policy) DefaultScope() *Filter {
	if p.SingleOrg() {
		return Or(MatchesDomain(p.FixedOrgDomain), AnyPersonalOrg())
	}
	return MatchAll()
}
