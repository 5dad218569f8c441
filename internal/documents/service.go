package documents

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/platform/blob"
	"github.com/inspectra-app/inspectra/internal/scope"
)

// Store is the persistence surface the service needs; satisfied by
// *Repository and by in-memory fakes in tests.
type Store interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	List(ctx context.Context, orgID int64, limit, offset int) ([]Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service pairs document metadata with blob storage. It scopes directly
// through the resolver and engine rather than the coordinator, which sits
// above this package.
type Service struct {
	store  Store
	blobs  blob.Store
	scopes *scope.Resolver
	engine *ability.Engine
}

// NewService constructs a Service.
func NewService(store Store, blobs blob.Store, scopes *scope.Resolver, engine *ability.Engine) *Service {
	return &Service{store: store, blobs: blobs, scopes: scopes, engine: engine}
}

// Upload stores the blob first, then the metadata row, so a metadata row
// never points at a missing object. A failed insert leaves a dangling blob,
// which the orphan sweep picks up.
func (s *Service) Upload(ctx context.Context, actor ability.Actor, requestedOrg *int64, fileName, contentType string, size int64, content io.Reader) (Document, error) {
	orgID, err := s.scopes.Resolve(ctx, actor, requestedOrg, ability.ActionCreate, ability.KindDocument)
	if err != nil {
		return Document{}, err
	}

	id := uuid.New()
	key := fmt.Sprintf("org/%d/%s", orgID, id)

	if err := s.blobs.Put(ctx, key, content); err != nil {
		return Document{}, fmt.Errorf("documents: store blob: %w", err)
	}

	doc, err := s.store.Create(ctx, Document{
		ID:             id,
		OrganizationID: orgID,
		StorageKey:     key,
		FileName:       fileName,
		ContentType:    contentType,
		Size:           size,
		OwnerID:        actor.ID,
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get fetches document metadata within the actor's scope.
func (s *Service) Get(ctx context.Context, actor ability.Actor, id uuid.UUID) (Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !s.engine.Can(actor, ability.ActionRead, ability.InOrganization(ability.KindDocument, doc.OrganizationID)) {
		return Document{}, scope.ErrForbidden
	}
	return doc, nil
}

// List returns documents for the resolved organization.
func (s *Service) List(ctx context.Context, actor ability.Actor, requestedOrg *int64, limit, offset int) ([]Document, error) {
	orgID, err := s.scopes.Resolve(ctx, actor, requestedOrg, ability.ActionRead, ability.KindDocument)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.List(ctx, orgID, limit, offset)
}

// Open streams the stored blob for a document the actor can read.
func (s *Service) Open(ctx context.Context, actor ability.Actor, id uuid.UUID) (Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return Document{}, nil, err
	}
	rc, err := s.blobs.Open(ctx, doc.StorageKey)
	if err != nil {
		return Document{}, nil, err
	}
	return doc, rc, nil
}
