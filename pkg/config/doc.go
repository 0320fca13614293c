// Package config loads and validates service configuration from TOME_*
// environment variables.
//
// # Overview
//
// Configuration is read once at startup; Policy() freezes the deployment
// policy handed to the resolution layers. Validation is strict about the
// fixed org domain: a domain that parses as a reserved identifier (the
// merged sentinel, docs-<n>, o-<n>, or a number) would make every request to
// it resolve to something other than the pinned team org, so it is rejected
// at startup rather than discovered per request.
//
// # Variables
//
//	TOME_POSTGRES_URL       required
//	TOME_REDIS_URL          enables the grant cache when set
//	TOME_SINGLE_ORG         fixed team domain; empty means unrestricted
//	TOME_ID_PREFIX          prefix in the docs-<n> / o-<n> grammar
//	TOME_PERSONAL_ORG_MODE  always | never-in-team-mode | merged-only
//	TOME_ROLE_CACHE_SIZE    role cache entries; 0 disables
//	TOME_JANITOR_SCHEDULE   cron spec, default @hourly
//	TOME_RETENTION          soft-delete retention, default 720h
//	TOME_LOG_LEVEL          debug | info | warn | error
//	TOME_OTEL_*             tracing and metrics export
package config
