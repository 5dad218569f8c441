package instruments

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/guard"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/scope"
	"github.com/inspectra-app/inspectra/internal/shared"
)

type memoryStore struct {
	rows   map[int64]Instrument
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[int64]Instrument)}
}

func (m *memoryStore) Create(ctx context.Context, in Instrument) (Instrument, error) {
	m.nextID++
	in.ID = m.nextID
	m.rows[in.ID] = in
	return in, nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (Instrument, error) {
	in, ok := m.rows[id]
	if !ok {
		return Instrument{}, shared.ErrNotFound
	}
	return in, nil
}

func (m *memoryStore) List(ctx context.Context, orgID int64, limit, offset int) ([]Instrument, int, error) {
	var out []Instrument
	for _, in := range m.rows {
		if in.OrganizationID == orgID {
			out = append(out, in)
		}
	}
	return out, len(out), nil
}

func (m *memoryStore) Update(ctx context.Context, id int64, in Instrument) (Instrument, error) {
	existing, ok := m.rows[id]
	if !ok {
		return Instrument{}, shared.ErrNotFound
	}
	in.ID = id
	in.OrganizationID = existing.OrganizationID
	m.rows[id] = in
	return in, nil
}

func (m *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memoryAtts struct {
	rows map[uuid.UUID]attachments.Attachment
}

func (m *memoryAtts) Get(ctx context.Context, id uuid.UUID) (attachments.Attachment, error) {
	att, ok := m.rows[id]
	if !ok {
		return attachments.Attachment{}, attachments.ErrNotFound
	}
	return att, nil
}

func (m *memoryAtts) FindBySlot(ctx context.Context, documentID uuid.UUID, field attachments.Field, ownerID *int64) (attachments.Attachment, error) {
	for _, att := range m.rows {
		if att.DocumentID == documentID && att.FieldName == field {
			return att, nil
		}
	}
	return attachments.Attachment{}, attachments.ErrNotFound
}

func (m *memoryAtts) CreateIfAbsent(ctx context.Context, att attachments.Attachment) (attachments.Attachment, error) {
	m.rows[att.ID] = att
	return att, nil
}

func (m *memoryAtts) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]attachments.Attachment, error) {
	return nil, nil
}

func (m *memoryAtts) ListByOwner(ctx context.Context, ownerID int64, fields ...attachments.Field) ([]attachments.Attachment, error) {
	var out []attachments.Attachment
	for _, att := range m.rows {
		if att.OwnerID != nil && *att.OwnerID == ownerID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (m *memoryAtts) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.rows, id)
	return nil
}

func (m *memoryAtts) DeleteByOwner(ctx context.Context, ownerID int64, fields ...attachments.Field) ([]attachments.Attachment, error) {
	var out []attachments.Attachment
	for id, att := range m.rows {
		if att.OwnerID != nil && *att.OwnerID == ownerID {
			out = append(out, att)
			delete(m.rows, id)
		}
	}
	return out, nil
}

type fakeDocs struct{}

func (fakeDocs) DocumentExists(ctx context.Context, id uuid.UUID) (bool, error) { return true, nil }

type fakeOrgs struct{}

func (fakeOrgs) OrganizationExists(ctx context.Context, id int64) (bool, error) { return true, nil }

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
	atts := &memoryAtts{rows: make(map[uuid.UUID]attachments.Attachment)}
	coord := lifecycle.NewCoordinator(
		scope.NewResolver(fakeOrgs{}, engine),
		engine,
		guard.NewChecker(guard.DefaultRegistry(), &fakeProber{children: children}),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return NewService(store, coord, attachments.NewResolver(atts, fakeDocs{}), atts)
}

func TestDeleteCitedInstrumentConflicts(t *testing.T) {
	store := newMemoryStore()
	inst, _ := store.Create(context.Background(), Instrument{OrganizationID: 1, Name: "Manometer"})
	svc := newService(store, map[string][]int64{"report_instruments": {inst.ID}})
	member := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	err := svc.Delete(context.Background(), member, inst.ID)
	var conflict *guard.Conflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []ability.ResourceKind{ability.KindReport}, conflict.Blocking)

	_, getErr := store.Get(context.Background(), inst.ID)
	require.NoError(t, getErr)
}

func TestDeleteUncitedInstrumentSucceeds(t *testing.T) {
	store := newMemoryStore()
	inst, _ := store.Create(context.Background(), Instrument{OrganizationID: 1, Name: "Manometer"})
	svc := newService(store, nil)
	member := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	require.NoError(t, svc.Delete(context.Background(), member, inst.ID))
	_, err := store.Get(context.Background(), inst.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
