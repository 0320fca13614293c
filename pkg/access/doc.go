// Package access resolves organization scopes and effective roles per
// request.
//
// # Overview
//
// Two components sit here. The Resolver classifies a raw organization
// identifier, composes it with the deployment policy into a scope.Filter,
// and resolves documents under that filter in one read transaction. The
// Evaluator walks the doc -> workspace -> org grant chain and computes the
// user's effective role.
//
// # Scope Resolution
//
//	r := access.NewResolver(policy, st, metrics)
//	filter := r.ResolveOrgScope(ctx, "docs-7", userID, false)
//	ds, err := r.ResolveDocScope(ctx, docID, userID, filter)
//	if !ds.Exists {
//		// not found OR out of scope; the two are indistinguishable here
//	}
//
// # Role Resolution
//
//	ev := access.NewEvaluator(st, metrics, 4096, time.Minute)
//	exists, role, err := ev.ResolveRole(ctx, userID, store.ResourceDoc, docID)
//
// The most specific level holding any applicable grant decides the role
// outright; a weaker workspace grant overrides a stronger org grant. Guest
// grants apply only at the resource's own level. The (exists, role) pair
// separates not-found from forbidden so callers can choose what to disclose.
//
// Results are cached in an expirable LRU keyed on (user, resource, grant
// version); any grant mutation strands stale entries immediately.
//
// # Related Packages
//
//   - pkg/orgident, pkg/scope: classification and filtering
//   - pkg/store: queries and the grant version counter
package access
