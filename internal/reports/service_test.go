package reports

import (
	"context"
	"io"
	"log/slog"
	"sync"
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
	rows   map[int64]Report
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[int64]Report)}
}

func (m *memoryStore) Create(ctx context.Context, rep Report) (Report, error) {
	m.nextID++
	rep.ID = m.nextID
	m.rows[rep.ID] = rep
	return rep, nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (Report, error) {
	rep, ok := m.rows[id]
	if !ok {
		return Report{}, shared.ErrNotFound
	}
	return rep, nil
}

func (m *memoryStore) List(ctx context.Context, orgID int64, limit, offset int) ([]Report, int, error) {
	var out []Report
	for _, rep := range m.rows {
		if rep.OrganizationID == orgID {
			out = append(out, rep)
		}
	}
	return out, len(out), nil
}

func (m *memoryStore) Update(ctx context.Context, id int64, rep Report) (Report, error) {
	existing, ok := m.rows[id]
	if !ok {
		return Report{}, shared.ErrNotFound
	}
	rep.ID = id
	rep.OrganizationID = existing.OrganizationID
	rep.CreatedBy = existing.CreatedBy
	m.rows[id] = rep
	return rep, nil
}

func (m *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memoryAtts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]attachments.Attachment
}

func newMemoryAtts() *memoryAtts {
	return &memoryAtts{rows: make(map[uuid.UUID]attachments.Attachment)}
}

func (m *memoryAtts) Get(ctx context.Context, id uuid.UUID) (attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	att, ok := m.rows[id]
	if !ok {
		return attachments.Attachment{}, attachments.ErrNotFound
	}
	return att, nil
}

func (m *memoryAtts) FindBySlot(ctx context.Context, documentID uuid.UUID, field attachments.Field, ownerID *int64) (attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, att := range m.rows {
		if att.DocumentID == documentID && att.FieldName == field && sameOwner(att.OwnerID, ownerID) {
			return att, nil
		}
	}
	return attachments.Attachment{}, attachments.ErrNotFound
}

func (m *memoryAtts) CreateIfAbsent(ctx context.Context, att attachments.Attachment) (attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.DocumentID == att.DocumentID && existing.FieldName == att.FieldName && sameOwner(existing.OwnerID, att.OwnerID) {
			return existing, nil
		}
	}
	m.rows[att.ID] = att
	return att, nil
}

func (m *memoryAtts) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attachments.Attachment
	for _, att := range m.rows {
		if att.DocumentID == documentID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (m *memoryAtts) ListByOwner(ctx context.Context, ownerID int64, fields ...attachments.Field) ([]attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attachments.Attachment
	for _, att := range m.rows {
		if att.OwnerID != nil && *att.OwnerID == ownerID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (m *memoryAtts) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return attachments.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryAtts) DeleteByOwner(ctx context.Context, ownerID int64, fields ...attachments.Field) ([]attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attachments.Attachment
	for id, att := range m.rows {
		if att.OwnerID != nil && *att.OwnerID == ownerID {
			out = append(out, att)
			delete(m.rows, id)
		}
	}
	return out, nil
}

func (m *memoryAtts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func sameOwner(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type fakeDocs struct {
	existing map[uuid.UUID]bool
}

func (f *fakeDocs) DocumentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.existing[id], nil
}

type fakeClients struct {
	orgs map[int64]int64
}

func (f *fakeClients) ClientOrganization(ctx context.Context, clientID int64) (int64, error) {
	orgID, ok := f.orgs[clientID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return orgID, nil
}

type fakeOrgs struct{}

func (fakeOrgs) OrganizationExists(ctx context.Context, id int64) (bool, error) { return true, nil }

type fakeProber struct{}

func (fakeProber) HasChildren(ctx context.Context, edge guard.Edge, parentID int64) (bool, error) {
	return false, nil
}

type recordingReconciler struct {
	mu   sync.Mutex
	seen []uuid.UUID
}

func (r *recordingReconciler) Reconcile(ctx context.Context, ids []uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ids...)
}

func orgPtr(id int64) *int64 { return &id }

type fixture struct {
	store *memoryStore
	atts  *memoryAtts
	docs  *fakeDocs
	rec   *recordingReconciler
	svc   *Service
}

func newFixture(clientOrgs map[int64]int64) *fixture {
	store := newMemoryStore()
	atts := newMemoryAtts()
	docs := &fakeDocs{existing: make(map[uuid.UUID]bool)}
	rec := &recordingReconciler{}
	engine := ability.NewEngine()
	coord := lifecycle.NewCoordinator(
		scope.NewResolver(fakeOrgs{}, engine),
		engine,
		guard.NewChecker(guard.DefaultRegistry(), fakeProber{}),
		rec,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return &fixture{
		store: store,
		atts:  atts,
		docs:  docs,
		rec:   rec,
		svc:   NewService(store, &fakeClients{orgs: clientOrgs}, coord, attachments.NewResolver(atts, docs), atts),
	}
}

func member() ability.Actor {
	return ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}
}

func TestCreateResolvesSectionAttachments(t *testing.T) {
	f := newFixture(map[int64]int64{7: 1})
	docID := uuid.New()
	f.docs.existing[docID] = true

	rep, err := f.svc.Create(context.Background(), member(), nil, Input{
		ClientID: 7,
		Title:    "Boiler annual",
		Attachments: map[attachments.Field]uuid.UUID{
			attachments.FieldOperatorCertification: docID,
			attachments.FieldReportSignature:       docID,
		},
	})
	require.NoError(t, err)

	// One document attached to two sections yields two slot rows, both
	// pointing at the same document.
	_, sections, err := f.svc.Get(context.Background(), member(), rep.ID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	for _, attID := range sections {
		att, err := f.atts.Get(context.Background(), attID)
		require.NoError(t, err)
		require.Equal(t, docID, att.DocumentID)
	}
}

func TestCreateForeignClientForbidden(t *testing.T) {
	f := newFixture(map[int64]int64{7: 2})
	_, err := f.svc.Create(context.Background(), member(), nil, Input{ClientID: 7, Title: "Boiler annual"})
	require.ErrorIs(t, err, lifecycle.ErrForbidden)
	require.Empty(t, f.store.rows)
}

func TestCreateRejectsNonSectionField(t *testing.T) {
	f := newFixture(map[int64]int64{7: 1})
	_, err := f.svc.Create(context.Background(), member(), nil, Input{
		ClientID: 7,
		Title:    "Boiler annual",
		Attachments: map[attachments.Field]uuid.UUID{
			attachments.FieldEquipmentPhoto: uuid.New(),
		},
	})
	require.ErrorIs(t, err, attachments.ErrUnknownField)
}

func TestUpdateReplacingCertificateReconcilesOldDocument(t *testing.T) {
	f := newFixture(map[int64]int64{7: 1})
	oldDoc, newDoc := uuid.New(), uuid.New()
	f.docs.existing[oldDoc] = true
	f.docs.existing[newDoc] = true

	rep, err := f.svc.Create(context.Background(), member(), nil, Input{
		ClientID: 7,
		Title:    "Boiler annual",
		Attachments: map[attachments.Field]uuid.UUID{
			attachments.FieldOperatorCertification: oldDoc,
		},
	})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), member(), rep.ID, Input{
		ClientID: 7,
		Title:    "Boiler annual",
		Attachments: map[attachments.Field]uuid.UUID{
			attachments.FieldOperatorCertification: newDoc,
		},
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{oldDoc}, f.rec.seen)

	_, sections, err := f.svc.Get(context.Background(), member(), rep.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	att, err := f.atts.Get(context.Background(), sections[attachments.FieldOperatorCertification])
	require.NoError(t, err)
	require.Equal(t, newDoc, att.DocumentID)
}

func TestUpdateResubmittingSameCandidateIsIdempotent(t *testing.T) {
	f := newFixture(map[int64]int64{7: 1})
	docID := uuid.New()
	f.docs.existing[docID] = true

	rep, err := f.svc.Create(context.Background(), member(), nil, Input{
		ClientID: 7,
		Title:    "Boiler annual",
		Attachments: map[attachments.Field]uuid.UUID{
			attachments.FieldOperatorCertification: docID,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.atts.count())

	// Re-saving with the same document id resolves to the existing row.
	_, err = f.svc.Update(context.Background(), member(), rep.ID, Input{
		ClientID: 7,
		Title:    "Boiler annual",
		Attachments: map[attachments.Field]uuid.UUID{
			attachments.FieldOperatorCertification: docID,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.atts.count())
	require.Empty(t, f.rec.seen)
}

func TestDeleteCollectsSectionDocumentsForCleanup(t *testing.T) {
	f := newFixture(map[int64]int64{7: 1})
	docID := uuid.New()
	f.docs.existing[docID] = true

	rep, err := f.svc.Create(context.Background(), member(), nil, Input{
		ClientID: 7,
		Title:    "Boiler annual",
		Attachments: map[attachments.Field]uuid.UUID{
			attachments.FieldReportSignature: docID,
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), member(), rep.ID))
	require.Equal(t, []uuid.UUID{docID}, f.rec.seen)
	require.Equal(t, 0, f.atts.count())
}
