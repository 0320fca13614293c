package access

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/tome/pkg/observability"
	"github.com/platinummonkey/tome/pkg/orgident"
	"github.com/platinummonkey/tome/pkg/scope"
	"github.com/platinummonkey/tome/pkg/store"
)

// Resolver turns raw organization identifiers into resource filters and
// resolves documents under them. It holds no mutable state; the deployment
// policy is fixed at construction.
type Resolver struct {
	policy  scope.Policy
	store   *store.Store
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewResolver builds a resolver. metrics may be nil.
func NewResolver(policy scope.Policy, st *store.Store, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		policy:  policy,
		store:   st,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/platinummonkey/tome/pkg/access"),
	}
}

// Policy returns the deployment policy the resolver was built with.
func (r *Resolver) Policy() scope.Policy {
	return r.policy
}

// ResolveOrgScope classifies the identifier and composes it with the
// deployment policy into an organization filter. Identifiers that fail to
// classify produce a filter matching nothing. When includeSupport is set the
// filter additionally admits support organizations; that clause is orthogonal
// to the single-org policy and always additive.
func (r *Resolver) ResolveOrgScope(ctx context.Context, identifier string, userID int64, includeSupport bool) *scope.Filter {
	_, span := r.tracer.Start(ctx, "ResolveOrgScope")
	defer span.End()
	start := time.Now()

	ref := orgident.Classify(identifier, r.policy.IDPrefix)
	span.SetAttributes(attribute.String("org.ref_kind", ref.Kind.String()))

	filter := r.policy.EffectiveFilter(ref, userID)
	if includeSupport {
		filter = scope.Or(filter, scope.SupportOrg())
	}

	if r.metrics != nil {
		outcome := "resolved"
		if ref.Kind == orgident.KindInvalid {
			outcome = "invalid"
		}
		r.metrics.ResolutionsTotal.WithLabelValues(ref.Kind.String(), outcome).Inc()
		r.metrics.ResolutionDuration.WithLabelValues(ref.Kind.String()).Observe(time.Since(start).Seconds())
	}
	return filter
}

// DocScope is the outcome of resolving a document under an organization
// scope. Exists distinguishes not-found from forbidden for the caller: a doc
// outside the scope reports Exists false, exactly like a doc that was never
// there.
type DocScope struct {
	Exists    bool
	Doc       *store.Document
	Workspace *store.Workspace
	Org       *store.Organization
}

// ResolveDocScope joins document -> workspace -> organization in one read
// transaction and applies the org scope. A nil orgScope means the deployment
// default scope. The single transaction keeps the chain consistent even if a
// workspace moves between organizations mid-request.
func (r *Resolver) ResolveDocScope(ctx context.Context, docID int64, userID int64, orgScope *scope.Filter) (*DocScope, error) {
	ctx, span := r.tracer.Start(ctx, "ResolveDocScope")
	defer span.End()

	if orgScope == nil {
		orgScope = r.policy.DefaultScope()
	}

	result := &DocScope{}
	err := r.store.WithReadTx(ctx, func(tx *store.Store) error {
		doc, ws, org, err := tx.FindDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc == nil || !orgScope.Matches(org) {
			return nil
		}
		result.Exists = true
		result.Doc = doc
		result.Workspace = ws
		result.Org = org
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("doc.exists", result.Exists))
	return result, nil
}
