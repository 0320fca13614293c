package orgident

import (
	"strconv"
	"strings"
)

// RefKind discriminates the parsed forms of an organization identifier.
type RefKind int

const (
	// KindInvalid marks input that matched no rule. Consumers must treat it
	// as matching nothing, never everything.
	KindInvalid RefKind = iota
	// KindByID is an explicit numeric organization id.
	KindByID
	// KindMerged is the virtual organization aggregating every personal org
	// the requesting user owns.
	KindMerged
	// KindByPersonalDomain is the computed docs-<n> domain of the personal
	// org owned by user n. The domain is never stored.
	KindByPersonalDomain
	// KindByOrgIDDomain is the o-<n> alias for organization id n.
	KindByOrgIDDomain
	// KindByDomain is a literal team-org domain.
	KindByDomain
)

func (k RefKind) String() string {
	switch k {
	case KindByID:
		return "by-id"
	case KindMerged:
		return "merged"
	case KindByPersonalDomain:
		return "by-personal-domain"
	case KindByOrgIDDomain:
		return "by-org-id-domain"
	case KindByDomain:
		return "by-domain"
	default:
		return "invalid"
	}
}

// OrgRef is the classified form of an organization identifier. Exactly one of
// the payload fields is meaningful, selected by Kind: OrgID for KindByID and
// KindByOrgIDDomain, OwnerID for KindByPersonalDomain, Domain for KindByDomain.
type OrgRef struct {
	Kind    RefKind
	OrgID   int64
	OwnerID int64
	Domain  string
}

// MergedSentinel returns the reserved domain string that names the merged
// organization: "docs", or "docs-<idPrefix>" when an id prefix is configured.
func MergedSentinel(idPrefix string) string {
	if idPrefix == "" {
		return "docs"
	}
	return "docs-" + idPrefix
}

// ClassifyID classifies a numeric organization identifier. Id 0 is the merged
// organization sentinel; every other value is an explicit id reference.
func ClassifyID(id int64) OrgRef {
	if id == 0 {
		return OrgRef{Kind: KindMerged}
	}
	return OrgRef{Kind: KindByID, OrgID: id}
}

// Classify parses an organization identifier string into an OrgRef. The rules
// apply in priority order:
//
//  1. purely numeric input -> ClassifyID
//  2. the merged sentinel ("docs", "docs-<idPrefix>", or "0") -> Merged
//  3. "docs-<idPrefix><digits>" -> personal-org domain of the owner parsed
//     from the suffix
//  4. "o-<idPrefix><digits>" -> org-id alias
//  5. anything else non-empty -> literal domain match
//
// Empty input is invalid. Classify is total and never panics.
func Classify(identifier string, idPrefix string) OrgRef {
	if identifier == "" {
		return OrgRef{Kind: KindInvalid}
	}

	if n, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return ClassifyID(n)
	}

	// Plain "docs" stays a merged sentinel even when an id prefix is
	// configured, alongside the prefixed form.
	if identifier == "docs" || identifier == MergedSentinel(idPrefix) {
		return OrgRef{Kind: KindMerged}
	}

	if suffix, ok := trimPattern(identifier, "docs-", idPrefix); ok {
		if owner, err := strconv.ParseInt(suffix, 10, 64); err == nil && owner > 0 {
			return OrgRef{Kind: KindByPersonalDomain, OwnerID: owner}
		}
		// docs-<garbage> is reserved; refusing the literal-domain fallback
		// keeps computed personal domains out of the domain column.
		return OrgRef{Kind: KindInvalid}
	}

	if suffix, ok := trimPattern(identifier, "o-", idPrefix); ok {
		if id, err := strconv.ParseInt(suffix, 10, 64); err == nil && id > 0 {
			return OrgRef{Kind: KindByOrgIDDomain, OrgID: id}
		}
		return OrgRef{Kind: KindInvalid}
	}

	return OrgRef{Kind: KindByDomain, Domain: identifier}
}

// trimPattern strips marker+idPrefix from s, reporting whether s carried the
// reserved prefix at all (the id prefix must follow the marker exactly).
func trimPattern(s, marker, idPrefix string) (string, bool) {
	if !strings.HasPrefix(s, marker) {
		return "", false
	}
	rest := strings.TrimPrefix(s, marker)
	if !strings.HasPrefix(rest, idPrefix) {
		return "", false
	}
	return strings.TrimPrefix(rest, idPrefix), true
}
