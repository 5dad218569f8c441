// Package scope resolves the effective organization for one operation:
// tenants are always bound to their home organization, admins may select
// another tenant explicitly.
package scope

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/inspectra-app/inspectra/internal/ability"
)

var (
	// ErrNoOrganization means a non-admin actor has no home organization.
	ErrNoOrganization = errors.New("scope: actor has no organization")
	// ErrMustSelectOrganization means an admin without a home organization
	// did not name a target tenant.
	ErrMustSelectOrganization = errors.New("scope: organization must be selected")
	// ErrOrganizationNotFound means the requested organization does not exist.
	ErrOrganizationNotFound = errors.New("scope: organization not found")
	// ErrForbidden means the ability check rejected the resolved scope.
	ErrForbidden = errors.New("scope: forbidden")
)

// OrganizationLookup checks tenant existence.
type OrganizationLookup interface {
	OrganizationExists(ctx context.Context, id int64) (bool, error)
}

// Resolver binds requests to an effective organization id.
type Resolver struct {
	orgs   OrganizationLookup
	engine *ability.Engine
	group  singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(orgs OrganizationLookup, engine *ability.Engine) *Resolver {
	return &Resolver{orgs: orgs, engine: engine}
}

// Resolve returns the organization the operation runs against.
//
// Non-admins resolve to their home organization; a caller-supplied id is
// ignored so a tenant can never point a request at another tenant's data.
// Admins may request any existing organization, falling back to their own
// home organization when none is requested.
func (r *Resolver) Resolve(ctx context.Context, actor ability.Actor, requested *int64, action ability.Action, kind ability.ResourceKind) (int64, error) {
	if !actor.IsAdmin() {
		if actor.HomeOrganizationID == nil {
			return 0, ErrNoOrganization
		}
		orgID := *actor.HomeOrganizationID
		if !r.engine.Can(actor, action, ability.InOrganization(kind, orgID)) {
			return 0, ErrForbidden
		}
		return orgID, nil
	}

	if requested != nil {
		exists, err := r.exists(ctx, *requested)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrOrganizationNotFound
		}
		if !r.engine.Can(actor, action, ability.InOrganization(kind, *requested)) {
			return 0, ErrForbidden
		}
		return *requested, nil
	}

	if actor.HomeOrganizationID == nil {
		return 0, ErrMustSelectOrganization
	}
	orgID := *actor.HomeOrganizationID
	if !r.engine.Can(actor, action, ability.InOrganization(kind, orgID)) {
		return 0, ErrForbidden
	}
	return orgID, nil
}

// exists dedups concurrent lookups for the same organization id.
func (r *Resolver) exists(ctx context.Context, id int64) (bool, error) {
	v, err, _ := r.group.Do(fmt.Sprintf("org:%d", id), func() (any, error) {
		return r.orgs.OrganizationExists(ctx, id)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
