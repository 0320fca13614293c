// Package store is the relational accessor for the org -> workspace -> doc
// hierarchy and its role grants.
//
// # Overview
//
// The store owns the schema (migrations.go), row scanning, and every query
// the resolution layers run. Organization queries take a scope.Filter and
// splice its SQL fragment into the WHERE clause, so filtering happens in the
// database, not in application loops.
//
// # Data Model
//
//   - users: principals; personal_org_id is filled on first provisioning
//   - organizations: team orgs carry a unique domain, personal orgs a unique
//     owner_id; the two are mutually exclusive. is_support flags staff orgs.
//   - workspaces, docs: the containment chain; both soft-delete via
//     removed_at and are purged by the janitor after the retention window
//   - role_grants: (user or group) x resource x role
//   - group_members: group membership feeding grant evaluation
//
// # Transactions
//
// WithReadTx binds a Store clone to one read-only transaction so multi-query
// resolutions observe a single snapshot:
//
//	err := st.WithReadTx(ctx, func(tx *store.Store) error {
//		doc, ws, org, err := tx.FindDocument(ctx, id)
//		...
//	})
//
// # Provisioning
//
// InsertOrgIfAbsent creates a personal organization idempotently. Concurrent
// callers race on the owner_id unique index via ON CONFLICT DO NOTHING and
// the loser reads the winner's row.
//
// # Caching
//
// An optional redis GrantCache fronts FindGrants. Every grant mutation bumps
// an in-process version counter (GrantVersion) and invalidates the affected
// key; pkg/access keys its role cache on the counter.
//
// # Related Packages
//
//   - pkg/scope: filter construction and SQL rendering
//   - pkg/access: resolution logic on top of the store
package store
