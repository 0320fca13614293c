package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/tome/pkg/orgident"
)

func TestPolicyEffectiveFilterUnrestricted(t *testing.T) {
	policy := Policy{}

	tests := []struct {
		name string
		ref  orgident.OrgRef
		want string
	}{
		{"explicit id", orgident.OrgRef{Kind: orgident.KindByID, OrgID: 5}, "id=5"},
		{"org id domain alias", orgident.OrgRef{Kind: orgident.KindByOrgIDDomain, OrgID: 12}, "id=12"},
		{"merged", orgident.OrgRef{Kind: orgident.KindMerged}, "any-personal"},
		{"personal domain", orgident.OrgRef{Kind: orgident.KindByPersonalDomain, OwnerID: 7}, "personal-of=7"},
		{"literal domain", orgident.OrgRef{Kind: orgident.KindByDomain, Domain: "acme"}, "domain=acme"},
		{"invalid fails closed", orgident.OrgRef{Kind: orgident.KindInvalid}, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.EffectiveFilter(tt.ref, 99).String())
		})
	}
}

func TestPolicyEffectiveFilterSingleOrg(t *testing.T) {
	policy := Policy{FixedOrgDomain: "acme"}
	assert.True(t, policy.SingleOrg())

	tests := []struct {
		name string
		ref  orgident.OrgRef
		want string
	}{
		// An explicit id bypasses the fixed domain; permission checks still
		// apply downstream.
		{"explicit id bypasses", orgident.OrgRef{Kind: orgident.KindByID, OrgID: 5}, "id=5"},
		{"alias bypasses", orgident.OrgRef{Kind: orgident.KindByOrgIDDomain, OrgID: 5}, "id=5"},
		{"merged unchanged", orgident.OrgRef{Kind: orgident.KindMerged}, "any-personal"},
		{"personal domain unchanged", orgident.OrgRef{Kind: orgident.KindByPersonalDomain, OwnerID: 7}, "personal-of=7"},
		// Personal orgs stay reachable under a fixed domain; without the OR
		// they would appear in listings but never resolve.
		{
			"domain keeps personal orgs reachable",
			orgident.OrgRef{Kind: orgident.KindByDomain, Domain: "acme"},
			"or(domain=acme, any-personal)",
		},
		// Foreign team domains stay narrow: widening them would let a
		// request for another installation's domain sweep in personal orgs.
		{
			"foreign domain stays narrow",
			orgident.OrgRef{Kind: orgident.KindByDomain, Domain: "other"},
			"domain=other",
		},
		{"invalid fails closed", orgident.OrgRef{Kind: orgident.KindInvalid}, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.EffectiveFilter(tt.ref, 99).String())
		})
	}
}

func TestPolicyEffectiveFilterSemantics(t *testing.T) {
	policy := Policy{FixedOrgDomain: "acme"}
	team := fakeOrg{id: 1, domain: "acme"}
	personal := fakeOrg{id: 2, owner: 7}

	// A user fetching their personal doc by the fixed domain must still
	// reach the personal org.
	f := policy.EffectiveFilter(orgident.Classify("acme", ""), 7)
	assert.True(t, f.Matches(team))
	assert.True(t, f.Matches(personal))

	// A request naming a foreign domain matches neither the fixed team org
	// nor any personal org.
	f = policy.EffectiveFilter(orgident.Classify("otherteam", ""), 7)
	assert.False(t, f.Matches(team))
	assert.False(t, f.Matches(personal))

	// Without a fixed domain the same request matches team orgs only.
	f = Policy{}.EffectiveFilter(orgident.Classify("acme", ""), 7)
	assert.True(t, f.Matches(team))
	assert.False(t, f.Matches(personal))
}

func TestPolicyDefaultScope(t *testing.T) {
	assert.Equal(t, "all", Policy{}.DefaultScope().String())
	assert.Equal(t, "or(domain=acme, any-personal)",
		Policy{FixedOrgDomain: "acme"}.DefaultScope().String())
}
