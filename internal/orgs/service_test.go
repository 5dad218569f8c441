package orgs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/guard"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/scope"
	"github.com/inspectra-app/inspectra/internal/shared"
)

type memoryStore struct {
	rows   map[int64]Organization
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[int64]Organization)}
}

func (m *memoryStore) Create(ctx context.Context, org Organization) (Organization, error) {
	m.nextID++
	org.ID = m.nextID
	m.rows[org.ID] = org
	return org, nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (Organization, error) {
	org, ok := m.rows[id]
	if !ok {
		return Organization{}, shared.ErrNotFound
	}
	return org, nil
}

func (m *memoryStore) List(ctx context.Context) ([]Organization, error) {
	var out []Organization
	for _, org := range m.rows {
		out = append(out, org)
	}
	return out, nil
}

func (m *memoryStore) Update(ctx context.Context, id int64, org Organization) (Organization, error) {
	if _, ok := m.rows[id]; !ok {
		return Organization{}, shared.ErrNotFound
	}
	org.ID = id
	m.rows[id] = org
	return org, nil
}

func (m *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryStore) OrganizationExists(ctx context.Context, id int64) (bool, error) {
	_, ok := m.rows[id]
	return ok, nil
}

type fakeProber struct {
	children map[string][]int64
}

func (f *fakeProber) HasChildren(ctx context.Context, edge guard.Edge, parentID int64) (bool, error) {
	for _, id := range f.children[edge.Table] {
		if id == parentID {
			return true, nil
		}
	}
	return false, nil
}

func orgPtr(id int64) *int64 { return &id }

func newService(store *memoryStore, children map[string][]int64) *Service {
	engine := ability.NewEngine()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := lifecycle.NewCoordinator(
		scope.NewResolver(store, engine),
		engine,
		guard.NewChecker(guard.DefaultRegistry(), &fakeProber{children: children}),
		nil,
		logger,
	)
	return NewService(store, coord, nil, logger)
}

func TestCreateRequiresAdmin(t *testing.T) {
	store := newMemoryStore()
	svc := newService(store, nil)

	member := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}
	_, err := svc.Create(context.Background(), member, Organization{Name: "Acme Inspections"})
	require.ErrorIs(t, err, lifecycle.ErrForbidden)
	require.Empty(t, store.rows)

	admin := ability.Actor{ID: 2, Role: ability.RoleAdmin, Status: ability.StatusActive}
	org, err := svc.Create(context.Background(), admin, Organization{Name: "Acme Inspections"})
	require.NoError(t, err)
	require.NotZero(t, org.ID)
}

func TestDeleteBlockedByDependents(t *testing.T) {
	store := newMemoryStore()
	org, _ := store.Create(context.Background(), Organization{Name: "Acme"})
	svc := newService(store, map[string][]int64{
		"clients": {org.ID},
		"reports": {org.ID},
	})
	admin := ability.Actor{ID: 2, Role: ability.RoleAdmin, Status: ability.StatusActive}

	err := svc.Delete(context.Background(), admin, org.ID)
	var conflict *guard.Conflict
	require.ErrorAs(t, err, &conflict)
	require.ElementsMatch(t, []ability.ResourceKind{ability.KindClient, ability.KindReport}, conflict.Blocking)

	// The organization row is untouched.
	_, getErr := store.Get(context.Background(), org.ID)
	require.NoError(t, getErr)
}

func TestDeleteEmptyOrganizationSucceeds(t *testing.T) {
	store := newMemoryStore()
	org, _ := store.Create(context.Background(), Organization{Name: "Acme"})
	svc := newService(store, nil)
	admin := ability.Actor{ID: 2, Role: ability.RoleAdmin, Status: ability.StatusActive}

	require.NoError(t, svc.Delete(context.Background(), admin, org.ID))
	_, err := store.Get(context.Background(), org.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateForeignOrganizationForbidden(t *testing.T) {
	store := newMemoryStore()
	mine, _ := store.Create(context.Background(), Organization{Name: "Mine"})
	other, _ := store.Create(context.Background(), Organization{Name: "Other"})
	svc := newService(store, nil)

	member := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(mine.ID), Status: ability.StatusActive}
	_, err := svc.Update(context.Background(), member, other.ID, Organization{Name: "Hijacked"})
	require.ErrorIs(t, err, lifecycle.ErrForbidden)
	require.Equal(t, "Other", store.rows[other.ID].Name)
}

func TestListScopesToHomeOrganization(t *testing.T) {
	store := newMemoryStore()
	mine, _ := store.Create(context.Background(), Organization{Name: "Mine"})
	_, _ = store.Create(context.Background(), Organization{Name: "Other"})
	svc := newService(store, nil)

	member := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(mine.ID), Status: ability.StatusActive}
	items, err := svc.List(context.Background(), member)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, mine.ID, items[0].ID)

	admin := ability.Actor{ID: 2, Role: ability.RoleAdmin, Status: ability.StatusActive}
	all, err := svc.List(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
