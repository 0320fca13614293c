package provision

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/tome/pkg/observability"
	"github.com/platinummonkey/tome/pkg/orgident"
	"github.com/platinummonkey/tome/pkg/scope"
	"github.com/platinummonkey/tome/pkg/store"
)

// CreationMode gates whether a fixed-domain deployment still provisions
// personal organizations for first-time users. The three modes reflect a
// genuinely contested behavior; the choice is configuration, not code.
type CreationMode string

const (
	// CreateAlways provisions a personal org for every first login,
	// regardless of the single-org policy.
	CreateAlways CreationMode = "always"
	// CreateUnlessSingleOrg skips provisioning entirely when the
	// deployment is pinned to a team domain.
	CreateUnlessSingleOrg CreationMode = "never-in-team-mode"
	// CreateMergedOnly provisions only when the request itself targeted
	// the merged org or the user's own personal domain.
	CreateMergedOnly CreationMode = "merged-only"
)

// ParseCreationMode validates a configured mode string.
func ParseCreationMode(s string) (CreationMode, error) {
	switch CreationMode(s) {
	case CreateAlways, CreateUnlessSingleOrg, CreateMergedOnly:
		return CreationMode(s), nil
	case "":
		return CreateAlways, nil
	default:
		return "", fmt.Errorf("invalid personal-org creation mode: %q", s)
	}
}

// Provisioner creates personal organizations idempotently at first
// authenticated access. It is the only mutating component of the core.
type Provisioner struct {
	store   *store.Store
	policy  scope.Policy
	mode    CreationMode
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewProvisioner builds a provisioner. metrics may be nil.
func NewProvisioner(st *store.Store, policy scope.Policy, mode CreationMode, metrics *observability.Metrics) *Provisioner {
	return &Provisioner{store: st, policy: policy, mode: mode, metrics: metrics}
}

// EnsurePersonalOrg is the first-login entry point: it behaves as if the user
// asked for their merged org.
func (p *Provisioner) EnsurePersonalOrg(ctx context.Context, userID int64, name string) (*store.Organization, error) {
	return p.EnsurePersonalOrgForRequest(ctx, userID, name, orgident.OrgRef{Kind: orgident.KindMerged})
}

// EnsurePersonalOrgForRequest returns the user's personal organization,
// creating it when the creation mode allows. An existing personal org is
// always returned whatever the mode says: gating controls creation, never
// visibility. Returns (nil, nil) when no org exists and creation is
// disallowed.
//
// Concurrent first logins collapse in-process through singleflight, and
// across processes on the store's owner_id unique index; the losing caller
// observes the winner's row rather than an error.
func (p *Provisioner) EnsurePersonalOrgForRequest(ctx context.Context, userID int64, name string, requested orgident.OrgRef) (*store.Organization, error) {
	existing, err := p.findExisting(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.count("existing")
		return existing, nil
	}

	if !p.allowCreate(userID, requested) {
		p.count("denied")
		return nil, nil
	}

	v, err, _ := p.group.Do(fmt.Sprintf("personal-org:%d", userID), func() (interface{}, error) {
		org, created, err := p.store.InsertOrgIfAbsent(ctx, userID, name)
		if err != nil {
			// A cross-process race can still surface as a transient
			// conflict; the winner's row must be there now.
			if org, retryErr := p.findExisting(ctx, userID); retryErr == nil && org != nil {
				return org, nil
			}
			return nil, err
		}
		if created {
			p.count("created")
		} else {
			p.count("existing")
		}
		return org, nil
	})
	if err != nil {
		p.count("error")
		return nil, err
	}
	return v.(*store.Organization), nil
}

func (p *Provisioner) findExisting(ctx context.Context, userID int64) (*store.Organization, error) {
	orgs, err := p.store.FindOrgs(ctx, scope.PersonalOrgOf(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to look up personal organization: %w", err)
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	return orgs[0], nil
}

func (p *Provisioner) allowCreate(userID int64, requested orgident.OrgRef) bool {
	switch p.mode {
	case CreateUnlessSingleOrg:
		return !p.policy.SingleOrg()
	case CreateMergedOnly:
		return requested.Kind == orgident.KindMerged ||
			(requested.Kind == orgident.KindByPersonalDomain && requested.OwnerID == userID)
	default:
		return true
	}
}

func (p *Provisioner) count(outcome string) {
	if p.metrics != nil {
		p.metrics.ProvisionsTotal.WithLabelValues(outcome).Inc()
	}
}
