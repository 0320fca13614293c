package access

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/tome/pkg/observability"
	"github.com/platinummonkey/tome/pkg/store"
)

// level is one rung of the doc -> workspace -> org grant chain.
type level struct {
	rt store.ResourceType
	id int64
}

type cacheKey struct {
	userID     int64
	rt         store.ResourceType
	resourceID int64
	version    uint64
}

type cacheValue struct {
	exists bool
	role   store.Role
}

// Evaluator computes a user's effective role on a resource by walking the
// grant chain from the most specific level upward. Resolution is a pure
// function of (user, resource, grant-table version), so results are cached in
// an expirable LRU keyed on that triple plus the store's grant version; any
// grant mutation bumps the version and strands stale entries.
type Evaluator struct {
	store   *store.Store
	cache   *expirable.LRU[cacheKey, cacheValue]
	metrics *observability.Metrics
}

// NewEvaluator builds an evaluator. cacheSize 0 disables caching; metrics may
// be nil.
func NewEvaluator(st *store.Store, metrics *observability.Metrics, cacheSize int, cacheTTL time.Duration) *Evaluator {
	e := &Evaluator{store: st, metrics: metrics}
	if cacheSize > 0 {
		e.cache = expirable.NewLRU[cacheKey, cacheValue](cacheSize, nil, cacheTTL)
	}
	return e
}

// ResolveRole returns whether the resource exists and the user's effective
// role on it. The two outcomes are never conflated: (false, RoleNone) means
// the resource is absent, (true, RoleNone) means it exists but the user holds
// no applicable grant. Callers map the first to not-found and the second to
// forbidden.
//
// The walk visits document, then workspace, then organization. The first
// level holding any explicit grant for the user (directly or through a
// group) decides the role outright; it neither merges with nor falls back to
// looser grants higher up. Guest grants are honored only at the level of the
// resource itself: a guest invited to an organization sees nothing inside it
// without an explicit grant on the inner resource.
func (e *Evaluator) ResolveRole(ctx context.Context, userID int64, rt store.ResourceType, resourceID int64) (bool, store.Role, error) {
	key := cacheKey{userID: userID, rt: rt, resourceID: resourceID, version: e.store.GrantVersion()}
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			if e.metrics != nil {
				e.metrics.RoleCacheHits.Inc()
			}
			return v.exists, v.role, nil
		}
		if e.metrics != nil {
			e.metrics.RoleCacheMisses.Inc()
		}
	}

	var exists bool
	var role = store.RoleNone
	err := e.store.WithReadTx(ctx, func(tx *store.Store) error {
		levels, err := e.grantChain(ctx, tx, rt, resourceID)
		if err != nil {
			return err
		}
		if levels == nil {
			return nil
		}
		exists = true

		groups, err := tx.GroupsForUser(ctx, userID)
		if err != nil {
			return err
		}

		for i, lvl := range levels {
			grants, err := tx.FindGrants(ctx, lvl.rt, lvl.id)
			if err != nil {
				return err
			}

			found := false
			strongest := store.RoleNone
			for _, g := range grants {
				if !g.AppliesTo(userID, groups) {
					continue
				}
				// Inherited guest grants confer nothing.
				if i > 0 && g.Role == store.RoleGuest {
					continue
				}
				found = true
				if g.Role.Stronger(strongest) {
					strongest = g.Role
				}
			}
			if found {
				role = strongest
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, store.RoleNone, err
	}

	if e.cache != nil {
		e.cache.Add(key, cacheValue{exists: exists, role: role})
	}
	if e.metrics != nil {
		outcome := string(role)
		if !exists {
			outcome = "not-found"
		}
		e.metrics.RoleChecksTotal.WithLabelValues(string(rt), outcome).Inc()
	}
	return exists, role, nil
}

// grantChain resolves the resource into its chain of grant levels, most
// specific first. A nil chain means the resource does not exist (or is
// soft-removed).
func (e *Evaluator) grantChain(ctx context.Context, tx *store.Store, rt store.ResourceType, resourceID int64) ([]level, error) {
	switch rt {
	case store.ResourceDoc:
		doc, ws, org, err := tx.FindDocument(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, nil
		}
		return []level{
			{store.ResourceDoc, doc.ID},
			{store.ResourceWorkspace, ws.ID},
			{store.ResourceOrg, org.ID},
		}, nil
	case store.ResourceWorkspace:
		ws, org, err := tx.FindWorkspace(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		if ws == nil || ws.RemovedAt != nil {
			return nil, nil
		}
		return []level{
			{store.ResourceWorkspace, ws.ID},
			{store.ResourceOrg, org.ID},
		}, nil
	case store.ResourceOrg:
		org, err := tx.FindOrg(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		if org == nil {
			return nil, nil
		}
		return []level{{store.ResourceOrg, org.ID}}, nil
	default:
		return nil, fmt.Errorf("unknown resource type: %q", rt)
	}
}
