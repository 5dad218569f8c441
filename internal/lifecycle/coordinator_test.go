package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/documents"
	"github.com/inspectra-app/inspectra/internal/guard"
	"github.com/inspectra-app/inspectra/internal/platform/blob"
	"github.com/inspectra-app/inspectra/internal/scope"
)

func orgPtr(id int64) *int64 { return &id }

type fakeOrgLookup struct {
	existing map[int64]bool
}

func (f *fakeOrgLookup) OrganizationExists(ctx context.Context, id int64) (bool, error) {
	return f.existing[id], nil
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

type recordingReconciler struct {
	mu   sync.Mutex
	seen [][]uuid.UUID
}

func (r *recordingReconciler) Reconcile(ctx context.Context, ids []uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ids)
}

func newTestCoordinator(orgs map[int64]bool, children map[string][]int64, rec Reconciler) *Coordinator {
	engine := ability.NewEngine()
	return NewCoordinator(
		scope.NewResolver(&fakeOrgLookup{existing: orgs}, engine),
		engine,
		guard.NewChecker(guard.DefaultRegistry(), &fakeProber{children: children}),
		rec,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestExecuteForbiddenBeforeMutation(t *testing.T) {
	rec := &recordingReconciler{}
	coord := newTestCoordinator(map[int64]bool{1: true, 2: true}, nil, rec)
	actor := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	mutated := false
	// A tenant asking for another tenant's scope is silently rebound to its
	// home org; a member attempting an admin-only operation is refused.
	_, err := coord.Execute(context.Background(), Request{
		Actor:     actor,
		Action:    ability.ActionDelete,
		Kind:      ability.KindOrganization,
		ScopeFree: true,
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			mutated = true
			return Result{}, nil
		},
	})
	require.ErrorIs(t, err, ErrForbidden)
	require.False(t, mutated)
	require.Empty(t, rec.seen)
}

func TestExecuteScopeErrorBeforeMutation(t *testing.T) {
	coord := newTestCoordinator(map[int64]bool{1: true}, nil, &recordingReconciler{})
	admin := ability.Actor{ID: 2, Role: ability.RoleAdmin, Status: ability.StatusActive}

	_, err := coord.Execute(context.Background(), Request{
		Actor:          admin,
		Action:         ability.ActionUpdate,
		Kind:           ability.KindReport,
		RequestedOrgID: orgPtr(9),
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			t.Fatal("mutate must not run")
			return Result{}, nil
		},
	})
	require.ErrorIs(t, err, scope.ErrOrganizationNotFound)
}

func TestExecuteConflictBlocksDelete(t *testing.T) {
	coord := newTestCoordinator(map[int64]bool{1: true}, map[string][]int64{"reports": {7}}, &recordingReconciler{})
	actor := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	_, err := coord.Execute(context.Background(), Request{
		Actor:       actor,
		Action:      ability.ActionDelete,
		Kind:        ability.KindClient,
		ResourceID:  7,
		GuardDelete: true,
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			t.Fatal("mutate must not run")
			return Result{}, nil
		},
	})
	var conflict *guard.Conflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []ability.ResourceKind{ability.KindReport}, conflict.Blocking)
}

func TestExecuteLogsRejectionStage(t *testing.T) {
	var buf strings.Builder
	engine := ability.NewEngine()
	coord := NewCoordinator(
		scope.NewResolver(&fakeOrgLookup{existing: map[int64]bool{1: true}}, engine),
		engine,
		guard.NewChecker(guard.DefaultRegistry(), &fakeProber{children: map[string][]int64{"reports": {7}}}),
		&recordingReconciler{},
		slog.New(slog.NewTextHandler(&buf, nil)),
	)
	member := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	_, err := coord.Execute(context.Background(), Request{
		Actor:     member,
		Action:    ability.ActionDelete,
		Kind:      ability.KindOrganization,
		ScopeFree: true,
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			return Result{}, nil
		},
	})
	require.ErrorIs(t, err, ErrForbidden)
	require.Contains(t, buf.String(), "stage="+string(StageAuthorizing))

	buf.Reset()
	_, err = coord.Execute(context.Background(), Request{
		Actor:       member,
		Action:      ability.ActionDelete,
		Kind:        ability.KindClient,
		ResourceID:  7,
		GuardDelete: true,
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			return Result{}, nil
		},
	})
	var conflict *guard.Conflict
	require.ErrorAs(t, err, &conflict)
	require.Contains(t, buf.String(), "stage="+string(StageValidating))

	buf.Reset()
	_, err = coord.Execute(context.Background(), Request{
		Actor:  member,
		Action: ability.ActionUpdate,
		Kind:   ability.KindClient,
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			return Result{}, errors.New("constraint violation")
		},
	})
	require.Error(t, err)
	require.Contains(t, buf.String(), "stage="+string(StageMutating))
}

func TestExecuteResolvesScopeAndMutates(t *testing.T) {
	rec := &recordingReconciler{}
	coord := newTestCoordinator(map[int64]bool{1: true, 5: true}, nil, rec)
	admin := ability.Actor{ID: 2, Role: ability.RoleAdmin, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	replaced := uuid.New()
	var mutatedOrg int64
	res, err := coord.Execute(context.Background(), Request{
		Actor:          admin,
		Action:         ability.ActionUpdate,
		Kind:           ability.KindEquipment,
		RequestedOrgID: orgPtr(5),
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			mutatedOrg = orgID
			return Result{ReplacedDocuments: []uuid.UUID{replaced}}, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), mutatedOrg)
	require.Equal(t, []uuid.UUID{replaced}, res.ReplacedDocuments)
	require.Len(t, rec.seen, 1)
	require.Equal(t, []uuid.UUID{replaced}, rec.seen[0])
}

func TestExecuteMutationErrorSkipsReconcile(t *testing.T) {
	rec := &recordingReconciler{}
	coord := newTestCoordinator(map[int64]bool{1: true}, nil, rec)
	actor := ability.Actor{ID: 1, Role: ability.RoleMember, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	boom := errors.New("write failed")
	_, err := coord.Execute(context.Background(), Request{
		Actor:  actor,
		Action: ability.ActionUpdate,
		Kind:   ability.KindReport,
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			return Result{ReplacedDocuments: []uuid.UUID{uuid.New()}}, boom
		},
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, rec.seen)
}

// Reaper fixtures.

type memDocs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]documents.Document
}

func (m *memDocs) Get(ctx context.Context, id uuid.UUID) (documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.rows[id]
	if !ok {
		return documents.Document{}, documents.ErrNotFound
	}
	return doc, nil
}

func (m *memDocs) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return documents.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memRefs struct {
	byDoc map[uuid.UUID][]attachments.Attachment
}

func (m *memRefs) ListByDocument(ctx context.Context, id uuid.UUID) ([]attachments.Attachment, error) {
	return m.byDoc[id], nil
}

type memQueue struct {
	enqueued []uuid.UUID
}

func (m *memQueue) EnqueueCleanup(ctx context.Context, id uuid.UUID) error {
	m.enqueued = append(m.enqueued, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReaperDeletesOrphanBlobThenMetadata(t *testing.T) {
	docID := uuid.New()
	store := blob.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "org/1/old", strings.NewReader("bytes")))

	docs := &memDocs{rows: map[uuid.UUID]documents.Document{
		docID: {ID: docID, OrganizationID: 1, StorageKey: "org/1/old"},
	}}
	reaper := NewDocumentReaper(docs, &memRefs{}, store, &memQueue{}, testLogger())

	reaper.Reconcile(context.Background(), []uuid.UUID{docID})

	require.False(t, store.Has("org/1/old"))
	_, err := docs.Get(context.Background(), docID)
	require.ErrorIs(t, err, documents.ErrNotFound)
}

func TestReaperKeepsReferencedDocuments(t *testing.T) {
	docID := uuid.New()
	store := blob.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "org/1/live", strings.NewReader("bytes")))

	docs := &memDocs{rows: map[uuid.UUID]documents.Document{
		docID: {ID: docID, OrganizationID: 1, StorageKey: "org/1/live"},
	}}
	refs := &memRefs{byDoc: map[uuid.UUID][]attachments.Attachment{
		docID: {{ID: uuid.New(), DocumentID: docID, FieldName: attachments.FieldOperatorCertification}},
	}}
	reaper := NewDocumentReaper(docs, refs, store, &memQueue{}, testLogger())

	reaper.Reconcile(context.Background(), []uuid.UUID{docID})

	require.True(t, store.Has("org/1/live"))
	_, err := docs.Get(context.Background(), docID)
	require.NoError(t, err)
}

func TestReaperBlobFailureKeepsMetadataAndQueuesRetry(t *testing.T) {
	docID := uuid.New()
	store := blob.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "org/1/stuck", strings.NewReader("bytes")))
	store.FailDelete["org/1/stuck"] = true

	docs := &memDocs{rows: map[uuid.UUID]documents.Document{
		docID: {ID: docID, OrganizationID: 1, StorageKey: "org/1/stuck"},
	}}
	queue := &memQueue{}
	reaper := NewDocumentReaper(docs, &memRefs{}, store, queue, testLogger())

	reaper.Reconcile(context.Background(), []uuid.UUID{docID})

	// Metadata survives until the blob is confirmed gone; a retry is queued.
	_, err := docs.Get(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{docID}, queue.enqueued)
}

func TestMutationCommitSurvivesReconcileFailure(t *testing.T) {
	// End to end: replacing a document commits even when the blob store is
	// down for the old object.
	docID := uuid.New()
	store := blob.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "org/1/old", strings.NewReader("bytes")))
	store.FailDelete["org/1/old"] = true

	docs := &memDocs{rows: map[uuid.UUID]documents.Document{
		docID: {ID: docID, OrganizationID: 1, StorageKey: "org/1/old"},
	}}
	queue := &memQueue{}
	reaper := NewDocumentReaper(docs, &memRefs{}, store, queue, testLogger())

	engine := ability.NewEngine()
	coord := NewCoordinator(
		scope.NewResolver(&fakeOrgLookup{existing: map[int64]bool{1: true}}, engine),
		engine,
		guard.NewChecker(guard.DefaultRegistry(), &fakeProber{}),
		reaper,
		testLogger(),
	)
	actor := ability.Actor{ID: 1, Role: ability.RoleEngineer, HomeOrganizationID: orgPtr(1), Status: ability.StatusActive}

	committed := false
	_, err := coord.Execute(context.Background(), Request{
		Actor:  actor,
		Action: ability.ActionUpdate,
		Kind:   ability.KindBomb,
		Mutate: func(ctx context.Context, orgID int64) (Result, error) {
			committed = true
			return Result{ReplacedDocuments: []uuid.UUID{docID}}, nil
		},
	})
	require.NoError(t, err)
	require.True(t, committed)
	require.Equal(t, []uuid.UUID{docID}, queue.enqueued)
}
