package guard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/inspectra-app/inspectra/internal/ability"
)

// Conflict reports which child kinds block a delete. It is a business
// outcome, not a bug, and carries enough structure for callers to render
// "cannot delete: reports reference this client" without re-querying.
type Conflict struct {
	Kind     ability.ResourceKind
	Blocking []ability.ResourceKind
}

func (c *Conflict) Error() string {
	labels := make([]string, len(c.Blocking))
	for i, kind := range c.Blocking {
		labels[i] = Label(kind)
	}
	return fmt.Sprintf("guard: cannot delete %s, referenced by %s", Label(c.Kind), strings.Join(labels, ", "))
}

// ChildProber answers whether any row of an edge's child table points at a
// parent id.
type ChildProber interface {
	HasChildren(ctx context.Context, edge Edge, parentID int64) (bool, error)
}

// Checker runs every declared edge for a kind before a destructive operation.
type Checker struct {
	registry *Registry
	prober   ChildProber
}

// NewChecker constructs a Checker.
func NewChecker(registry *Registry, prober ChildProber) *Checker {
	return &Checker{registry: registry, prober: prober}
}

// CheckDeletable probes all non-cascade edges concurrently and returns a
// *Conflict naming every blocking child kind, or nil when the resource is
// free to go. Kinds with no registered edges are always deletable.
func (c *Checker) CheckDeletable(ctx context.Context, kind ability.ResourceKind, id int64) error {
	edges := c.registry.EdgesFor(kind)

	var (
		mu       sync.Mutex
		blocking []ability.ResourceKind
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, edge := range edges {
		if edge.Cascade {
			continue
		}
		edge := edge
		g.Go(func() error {
			has, err := c.prober.HasChildren(ctx, edge, id)
			if err != nil {
				return err
			}
			if has {
				mu.Lock()
				blocking = append(blocking, edge.Child)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(blocking) == 0 {
		return nil
	}
	sort.Slice(blocking, func(i, j int) bool { return blocking[i] < blocking[j] })
	return &Conflict{Kind: kind, Blocking: blocking}
}

// PGProber probes child tables with EXISTS queries.
type PGProber struct {
	pool *pgxpool.Pool
}

// NewPGProber constructs a prober over the shared pool.
func NewPGProber(pool *pgxpool.Pool) *PGProber {
	return &PGProber{pool: pool}
}

// HasChildren runs an existence check, never a count; the guard only needs
// to know that at least one dependent exists.
func (p *PGProber) HasChildren(ctx context.Context, edge Edge, parentID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, edge.Table, edge.ForeignKey)
	var exists bool
	if err := p.pool.QueryRow(ctx, query, parentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("guard: probe %s.%s: %w", edge.Table, edge.ForeignKey, err)
	}
	return exists, nil
}
