package orgident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		idPrefix   string
		want       OrgRef
	}{
		{"numeric id", "17", "", OrgRef{Kind: KindByID, OrgID: 17}},
		{"numeric zero is merged", "0", "", OrgRef{Kind: KindMerged}},
		{"merged sentinel", "docs", "", OrgRef{Kind: KindMerged}},
		{"merged sentinel with prefix", "docs-duff", "duff", OrgRef{Kind: KindMerged}},
		{"plain docs stays merged under prefix", "docs", "duff", OrgRef{Kind: KindMerged}},
		{"personal domain", "docs-7", "", OrgRef{Kind: KindByPersonalDomain, OwnerID: 7}},
		{"personal domain with prefix", "docs-duff42", "duff", OrgRef{Kind: KindByPersonalDomain, OwnerID: 42}},
		{"org id domain", "o-12", "", OrgRef{Kind: KindByOrgIDDomain, OrgID: 12}},
		{"org id domain with prefix", "o-duff12", "duff", OrgRef{Kind: KindByOrgIDDomain, OrgID: 12}},
		{"literal domain", "acme", "", OrgRef{Kind: KindByDomain, Domain: "acme"}},
		{"literal domain with dashes", "acme-labs", "", OrgRef{Kind: KindByDomain, Domain: "acme-labs"}},
		{"empty is invalid", "", "", OrgRef{Kind: KindInvalid}},
		{"reserved docs junk is invalid", "docs-abc", "", OrgRef{Kind: KindInvalid}},
		{"reserved o junk is invalid", "o-abc", "", OrgRef{Kind: KindInvalid}},
		{"bare docs dash is invalid", "docs-", "", OrgRef{Kind: KindInvalid}},
		{"unprefixed docs pattern under prefix is a plain domain", "docs-7", "duff", OrgRef{Kind: KindByDomain, Domain: "docs-7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.identifier, tt.idPrefix)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyID(t *testing.T) {
	assert.Equal(t, OrgRef{Kind: KindByID, OrgID: 5}, ClassifyID(5))
	assert.Equal(t, OrgRef{Kind: KindMerged}, ClassifyID(0))
}

// Classification must be total: arbitrary garbage always yields exactly one
// kind and never panics.
func TestClassifyTotality(t *testing.T) {
	inputs := []string{
		"docs-", "o-", "docs--1", "o--1", "-", "--", "9999999999999999999999999",
		"docsx", "odocs", "DOCS", "docs-0", "o-0", "\x00", "docs-\x00", " ",
	}
	for _, in := range inputs {
		ref := Classify(in, "")
		assert.NotPanics(t, func() { _ = ref.Kind.String() })
		switch ref.Kind {
		case KindInvalid, KindByID, KindMerged, KindByPersonalDomain, KindByOrgIDDomain, KindByDomain:
		default:
			t.Fatalf("Classify(%q) returned unknown kind %d", in, ref.Kind)
		}
	}
}

func TestMergedSentinel(t *testing.T) {
	assert.Equal(t, "docs", MergedSentinel(""))
	assert.Equal(t, "docs-duff", MergedSentinel("duff"))
}
