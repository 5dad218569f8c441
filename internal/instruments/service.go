package instruments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, in Instrument) (Instrument, error)
	Get(ctx context.Context, id int64) (Instrument, error)
	List(ctx context.Context, orgID int64, limit, offset int) ([]Instrument, int, error)
	Update(ctx context.Context, id int64, in Instrument) (Instrument, error)
	Delete(ctx context.Context, id int64) error
}

// Service applies instrument business rules through the lifecycle
// coordinator. The delete path runs the dependency guard: report rows
// citing an instrument block its removal.
type Service struct {
	store    Store
	coord    *lifecycle.Coordinator
	resolver *attachments.Resolver
	atts     attachments.Repository
}

// NewService constructs a Service.
func NewService(store Store, coord *lifecycle.Coordinator, resolver *attachments.Resolver, atts attachments.Repository) *Service {
	return &Service{store: store, coord: coord, resolver: resolver, atts: atts}
}

// Input carries caller-editable instrument fields. CertCandidate is an
// attachment id or a document id; nil leaves the certificate alone.
type Input struct {
	Name           string
	SerialNo       string
	Model          string
	CalibrationDue *time.Time
	CertCandidate  *uuid.UUID
}

// Create adds an instrument in the resolved organization.
func (s *Service) Create(ctx context.Context, actor ability.Actor, requestedOrg *int64, in Input) (Instrument, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Instrument{}, errors.New("instruments: name required")
	}

	var created Instrument
	_, err := s.coord.Execute(ctx, lifecycle.Request{
		Actor:          actor,
		Action:         ability.ActionCreate,
		Kind:           ability.KindInstrument,
		RequestedOrgID: requestedOrg,
		Mutate: func(ctx context.Context, orgID int64) (lifecycle.Result, error) {
			inst := Instrument{
				OrganizationID: orgID,
				Name:           in.Name,
				SerialNo:       in.SerialNo,
				Model:          in.Model,
				CalibrationDue: in.CalibrationDue,
			}
			var err error
			created, err = s.store.Create(ctx, inst)
			if err != nil {
				return lifecycle.Result{}, err
			}
			if in.CertCandidate != nil {
				attID, err := s.resolver.Resolve(ctx, *in.CertCandidate, attachments.FieldInstrumentCalibrationCert, &created.ID)
				if err != nil {
					return lifecycle.Result{}, err
				}
				created.CalibrationAttachmentID = &attID
				created, err = s.store.Update(ctx, created.ID, created)
				if err != nil {
					return lifecycle.Result{}, err
				}
			}
			return lifecycle.Result{}, nil
		},
	})
	if err != nil {
		return Instrument{}, err
	}
	return created, nil
}

// Get fetches one instrument within the actor's scope.
func (s *Service) Get(ctx context.Context, actor ability.Actor, id int64) (Instrument, error) {
	inst, err := s.store.Get(ctx, id)
	if err != nil {
		return Instrument{}, err
	}
	if !s.coord.Engine().Can(actor, ability.ActionRead, ability.InOrganization(ability.KindInstrument, inst.OrganizationID)) {
		return Instrument{}, lifecycle.ErrForbidden
	}
	return inst, nil
}

// List returns instruments for the resolved organization.
func (s *Service) List(ctx context.Context, actor ability.Actor, requestedOrg *int64, page shared.Pagination) ([]Instrument, shared.Pagination, error) {
	orgID, err := s.coord.ResolveScope(ctx, actor, requestedOrg, ability.ActionRead, ability.KindInstrument)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.store.List(ctx, orgID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Update rewrites instrument details; a changed certificate drops the
// superseded attachment row so its document can be reconciled.
func (s *Service) Update(ctx context.Context, actor ability.Actor, id int64, in Input) (Instrument, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return Instrument{}, err
	}

	var updated Instrument
	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionUpdate,
		Kind:         ability.KindInstrument,
		SubjectOrgID: &existing.OrganizationID,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			inst := existing
			inst.Name = in.Name
			inst.SerialNo = in.SerialNo
			inst.Model = in.Model
			inst.CalibrationDue = in.CalibrationDue

			var result lifecycle.Result
			if in.CertCandidate != nil {
				attID, err := s.resolver.Resolve(ctx, *in.CertCandidate, attachments.FieldInstrumentCalibrationCert, &id)
				if err != nil {
					return lifecycle.Result{}, err
				}
				if existing.CalibrationAttachmentID != nil && *existing.CalibrationAttachmentID != attID {
					old, err := s.atts.Get(ctx, *existing.CalibrationAttachmentID)
					if err != nil && !errors.Is(err, attachments.ErrNotFound) {
						return lifecycle.Result{}, err
					}
					if err == nil {
						if err := s.atts.Delete(ctx, old.ID); err != nil {
							return lifecycle.Result{}, err
						}
						result.ReplacedDocuments = append(result.ReplacedDocuments, old.DocumentID)
					}
				}
				inst.CalibrationAttachmentID = &attID
			}

			var err error
			updated, err = s.store.Update(ctx, id, inst)
			return result, err
		},
	})
	if err != nil {
		return Instrument{}, err
	}
	return updated, nil
}

// Delete removes an instrument unless reports still cite it.
func (s *Service) Delete(ctx context.Context, actor ability.Actor, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionDelete,
		Kind:         ability.KindInstrument,
		SubjectOrgID: &existing.OrganizationID,
		ResourceID:   id,
		GuardDelete:  true,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			if err := s.store.Delete(ctx, id); err != nil {
				return lifecycle.Result{}, err
			}
			removed, err := s.atts.DeleteByOwner(ctx, id, attachments.FieldInstrumentCalibrationCert)
			if err != nil {
				return lifecycle.Result{}, err
			}
			var result lifecycle.Result
			for _, att := range removed {
				result.ReplacedDocuments = append(result.ReplacedDocuments, att.DocumentID)
			}
			return result, nil
		},
	})
	return err
}
