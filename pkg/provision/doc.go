// Package provision creates personal organizations idempotently at first
// authenticated access.
//
// # Overview
//
// Every user may own exactly one personal organization. The Provisioner
// creates it lazily: concurrent first logins collapse in-process through
// singleflight and across processes on the store's owner_id unique index, so
// repeated calls always converge on the same row.
//
// # Creation Modes
//
// Whether a fixed-domain deployment still provisions personal orgs is
// configuration (TOME_PERSONAL_ORG_MODE):
//
//	always             - provision on every first login (default)
//	never-in-team-mode - skip when the deployment is pinned to a team domain
//	merged-only        - provision only when the request targeted the merged
//	                     org or the user's own personal domain
//
// An existing personal org is always returned whatever the mode: gating
// controls creation, never visibility.
//
// # Related Packages
//
//   - pkg/store: InsertOrgIfAbsent, the atomic create-or-fetch
//   - pkg/scope: SingleOrg policy the modes consult
package provision
