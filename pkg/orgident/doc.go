// Package orgident classifies raw organization identifiers into typed
// references.
//
// # Overview
//
// Clients name organizations in several interchangeable ways: a numeric id, a
// stored team domain, the computed docs-<n> domain of a user's personal
// organization, the o-<n> alias for an org id, or the reserved merged
// sentinel aggregating every personal org. Classification is purely
// syntactic; no database access happens here.
//
// # Identifier Grammar
//
// In priority order:
//
//	"42"          -> explicit org id 42
//	"0"           -> merged sentinel
//	"docs"        -> merged sentinel (as is "docs-<idPrefix>" when configured)
//	"docs-7"      -> personal org of user 7
//	"o-12"        -> alias for org id 12
//	"acme"        -> literal team domain
//	""            -> invalid
//
// Input carrying a reserved prefix with a non-numeric suffix (e.g.
// "docs-xyz") is invalid rather than a literal domain: computed personal
// domains must never collide with the stored domain column.
//
// # Usage
//
//	ref := orgident.Classify("docs-7", cfg.IDPrefix)
//	switch ref.Kind {
//	case orgident.KindByPersonalDomain:
//		// ref.OwnerID == 7
//	case orgident.KindInvalid:
//		// match nothing, never everything
//	}
//
// Classify is total: every input string yields an OrgRef, and unmatched input
// fails closed as KindInvalid.
//
// # Related Packages
//
//   - pkg/scope: turns an OrgRef into an organization filter under the
//     deployment policy
package orgident
