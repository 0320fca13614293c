// Package scope builds declarative organization filters and composes them
// with the deployment-wide policy.
//
// # Overview
//
// A Filter is a predicate tree over organizations with two evaluation modes:
// in-memory against a single row (Matches) and rendered as a SQL WHERE
// fragment the store splices into its queries (SQL). Both modes share one
// tree, so a scope decision made in memory is exactly the scope the database
// enforces.
//
// # Filters
//
// Leaf constructors cover the scoping vocabulary:
//
//	scope.ByID(42)            // one org by id
//	scope.MatchesDomain("acme") // stored team domain
//	scope.PersonalOrgOf(7)    // the personal org user 7 owns
//	scope.AnyPersonalOrg()    // every personal org
//	scope.SupportOrg()        // support-staff orgs
//	scope.MatchNone()         // fails closed
//	scope.MatchAll()
//
// Combine with Or and And:
//
//	f := scope.Or(scope.MatchesDomain("acme"), scope.AnyPersonalOrg())
//	clause, args := f.SQL("o", 1)
//	// "(o.domain = $1 OR o.owner_id IS NOT NULL)", ["acme"]
//
// # Policy
//
// Policy captures the two deployment-wide knobs: an optional fixed team
// domain (single-org installations) and the id prefix used by the reserved
// identifier grammar. EffectiveFilter maps a classified reference to the
// filter the store applies:
//
//   - explicit id and o-<n> references bypass the fixed domain entirely
//   - the merged sentinel always means every personal organization
//   - the fixed domain itself is widened with an OR over personal
//     organizations, keeping personal resources fetchable; other literal
//     domains stay narrow
//   - invalid references match nothing
//
// # Related Packages
//
//   - pkg/orgident: produces the OrgRef values Policy consumes
//   - pkg/store: renders filters into organization, workspace, and document
//     queries
//   - pkg/access: composes filters per request
package scope
