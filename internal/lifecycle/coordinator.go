// Package lifecycle orchestrates mutating requests through a fixed stage
// sequence: authorize, validate, mutate, reconcile. The primary mutation is
// durably committed before any blob cleanup is attempted, never the reverse.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/guard"
	"github.com/inspectra-app/inspectra/internal/scope"
)

// ErrForbidden means the ability check rejected the request. It is the same
// sentinel the scope resolver returns, so callers match either failure with
// one errors.Is check.
var ErrForbidden = scope.ErrForbidden

// Stage names a coordinator phase. Rejection logs carry it as a label so a
// denied request can be traced to the stage that stopped it.
type Stage string

const (
	StageAuthorizing Stage = "authorizing"
	StageValidating  Stage = "validating"
	StageMutating    Stage = "mutating"
	StageReconciling Stage = "reconciling"
)

// Result is what a mutation hands back to the coordinator. ReplacedDocuments
// lists document ids the mutation detached (a swapped photo, a replaced
// certificate); they are reconciled after commit.
type Result struct {
	ReplacedDocuments []uuid.UUID
}

// Request describes one mutating operation.
type Request struct {
	Actor  ability.Actor
	Action ability.Action
	Kind   ability.ResourceKind
	// RequestedOrgID is the admin-selected tenant, nil for "actor's own".
	RequestedOrgID *int64
	// SubjectOrgID pins the subject to the organization a loaded resource
	// already belongs to. When set, scope resolution is skipped and the
	// ability check runs against exactly this tenant.
	SubjectOrgID *int64
	// ScopeFree requests skip scope resolution; the ability check runs
	// against a bare resource kind (organization create/delete).
	ScopeFree bool
	// ResourceID and GuardDelete drive the dependency check on deletes.
	ResourceID  int64
	GuardDelete bool
	// Mutate performs the store write for the resolved organization. It must
	// return only after the write is committed.
	Mutate func(ctx context.Context, orgID int64) (Result, error)
}

// Reconciler cleans up documents orphaned by a committed mutation. It must
// never fail the request: implementations log and absorb their own errors.
type Reconciler interface {
	Reconcile(ctx context.Context, documentIDs []uuid.UUID)
}

// Observer counts engine outcomes for monitoring. All methods must be
// non-blocking.
type Observer interface {
	AuthorizationDenied(kind ability.ResourceKind, action ability.Action)
	DependencyConflict(kind ability.ResourceKind)
}

// Coordinator runs requests through the stage sequence.
type Coordinator struct {
	scopes     *scope.Resolver
	engine     *ability.Engine
	guard      *guard.Checker
	reconciler Reconciler
	logger     *slog.Logger
	observer   Observer
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(scopes *scope.Resolver, engine *ability.Engine, checker *guard.Checker, reconciler Reconciler, logger *slog.Logger) *Coordinator {
	return &Coordinator{scopes: scopes, engine: engine, guard: checker, reconciler: reconciler, logger: logger}
}

// SetObserver attaches an outcome observer. Optional; nil disables it.
func (c *Coordinator) SetObserver(obs Observer) {
	c.observer = obs
}

// Engine exposes the ability engine for read-path checks that do not go
// through Execute.
func (c *Coordinator) Engine() *ability.Engine {
	return c.engine
}

// ResolveScope resolves the effective organization for read paths, which
// skip the full stage sequence.
func (c *Coordinator) ResolveScope(ctx context.Context, actor ability.Actor, requested *int64, action ability.Action, kind ability.ResourceKind) (int64, error) {
	return c.scopes.Resolve(ctx, actor, requested, action, kind)
}

// Execute drives one request to completion. Stages run in strict sequence;
// a failure in any stage before Mutating aborts with zero side effects.
// Reconciliation failures never surface: once Mutate commits, the request
// has succeeded from the caller's perspective.
func (c *Coordinator) Execute(ctx context.Context, req Request) (Result, error) {
	// Authorizing
	var orgID int64
	switch {
	case req.ScopeFree:
		if !c.engine.Can(req.Actor, req.Action, ability.ScopeFree(req.Kind)) {
			c.denied(req)
			return Result{}, ErrForbidden
		}
	case req.SubjectOrgID != nil:
		if !c.engine.Can(req.Actor, req.Action, ability.InOrganization(req.Kind, *req.SubjectOrgID)) {
			c.denied(req)
			return Result{}, ErrForbidden
		}
		orgID = *req.SubjectOrgID
	default:
		resolved, err := c.scopes.Resolve(ctx, req.Actor, req.RequestedOrgID, req.Action, req.Kind)
		if err != nil {
			c.reject(StageAuthorizing, req, err)
			return Result{}, err
		}
		orgID = resolved
	}

	// Validating
	if req.GuardDelete {
		if err := c.guard.CheckDeletable(ctx, req.Kind, req.ResourceID); err != nil {
			c.reject(StageValidating, req, err)
			var conflict *guard.Conflict
			if errors.As(err, &conflict) && c.observer != nil {
				c.observer.DependencyConflict(req.Kind)
			}
			return Result{}, err
		}
	}

	// Mutating
	result, err := req.Mutate(ctx, orgID)
	if err != nil {
		c.reject(StageMutating, req, err)
		return Result{}, err
	}

	// Reconciling. Detached from request cancellation: an upstream timeout
	// after the commit must not abort the cleanup mid-flight.
	if len(result.ReplacedDocuments) > 0 && c.reconciler != nil {
		c.logger.Debug("reconciling replaced documents",
			slog.String("stage", string(StageReconciling)),
			slog.Int("count", len(result.ReplacedDocuments)))
		c.reconciler.Reconcile(context.WithoutCancel(ctx), result.ReplacedDocuments)
	}

	return result, nil
}

func (c *Coordinator) denied(req Request) {
	c.reject(StageAuthorizing, req, ErrForbidden)
	if c.observer != nil {
		c.observer.AuthorizationDenied(req.Kind, req.Action)
	}
}

func (c *Coordinator) reject(stage Stage, req Request, err error) {
	c.logger.Warn("request rejected",
		slog.String("stage", string(stage)),
		slog.String("kind", string(req.Kind)),
		slog.String("action", string(req.Action)),
		slog.Any("error", err))
}
