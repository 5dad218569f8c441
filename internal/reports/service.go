package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, rep Report) (Report, error)
	Get(ctx context.Context, id int64) (Report, error)
	List(ctx context.Context, orgID int64, limit, offset int) ([]Report, int, error)
	Update(ctx context.Context, id int64, rep Report) (Report, error)
	Delete(ctx context.Context, id int64) error
}

// ClientLookup verifies that the cited client belongs to the report's
// organization before a report is written.
type ClientLookup interface {
	ClientOrganization(ctx context.Context, clientID int64) (int64, error)
}

// Service applies report business rules through the lifecycle coordinator.
// Section attachment candidates route through the resolver so one uploaded
// document re-used across sections never duplicates.
type Service struct {
	store    Store
	clients  ClientLookup
	coord    *lifecycle.Coordinator
	resolver *attachments.Resolver
	atts     attachments.Repository
}

// NewService constructs a Service.
func NewService(store Store, clients ClientLookup, coord *lifecycle.Coordinator, resolver *attachments.Resolver, atts attachments.Repository) *Service {
	return &Service{store: store, clients: clients, coord: coord, resolver: resolver, atts: atts}
}

// Input carries caller-editable report fields. Attachments maps section
// slots to candidate ids, each an attachment id or a document id.
type Input struct {
	ClientID      int64
	Title         string
	Kind          string
	Payload       json.RawMessage
	InstrumentIDs []int64
	Attachments   map[attachments.Field]uuid.UUID
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("reports: title required")
	}
	if in.ClientID == 0 {
		return errors.New("reports: client required")
	}
	for field := range in.Attachments {
		if !SectionField(field) {
			return fmt.Errorf("%w: %q", attachments.ErrUnknownField, field)
		}
	}
	return nil
}

// Create adds a report in the resolved organization. The cited client must
// belong to the same organization.
func (s *Service) Create(ctx context.Context, actor ability.Actor, requestedOrg *int64, in Input) (Report, error) {
	if err := in.validate(); err != nil {
		return Report{}, err
	}

	var created Report
	_, err := s.coord.Execute(ctx, lifecycle.Request{
		Actor:          actor,
		Action:         ability.ActionCreate,
		Kind:           ability.KindReport,
		RequestedOrgID: requestedOrg,
		Mutate: func(ctx context.Context, orgID int64) (lifecycle.Result, error) {
			clientOrg, err := s.clients.ClientOrganization(ctx, in.ClientID)
			if err != nil {
				return lifecycle.Result{}, err
			}
			if clientOrg != orgID {
				return lifecycle.Result{}, lifecycle.ErrForbidden
			}

			created, err = s.store.Create(ctx, Report{
				OrganizationID: orgID,
				ClientID:       in.ClientID,
				Title:          in.Title,
				Kind:           in.Kind,
				Payload:        in.Payload,
				InstrumentIDs:  in.InstrumentIDs,
				CreatedBy:      actor.ID,
			})
			if err != nil {
				return lifecycle.Result{}, err
			}
			for field, candidate := range in.Attachments {
				if _, err := s.resolver.Resolve(ctx, candidate, field, &created.ID); err != nil {
					return lifecycle.Result{}, err
				}
			}
			return lifecycle.Result{}, nil
		},
	})
	if err != nil {
		return Report{}, err
	}
	return created, nil
}

// Get fetches one report within the actor's scope.
func (s *Service) Get(ctx context.Context, actor ability.Actor, id int64) (Report, SectionAttachments, error) {
	rep, err := s.store.Get(ctx, id)
	if err != nil {
		return Report{}, nil, err
	}
	if !s.coord.Engine().Can(actor, ability.ActionRead, ability.InOrganization(ability.KindReport, rep.OrganizationID)) {
		return Report{}, nil, lifecycle.ErrForbidden
	}
	sections, err := s.sectionAttachments(ctx, id)
	if err != nil {
		return Report{}, nil, err
	}
	return rep, sections, nil
}

// List returns reports for the resolved organization.
func (s *Service) List(ctx context.Context, actor ability.Actor, requestedOrg *int64, page shared.Pagination) ([]Report, shared.Pagination, error) {
	orgID, err := s.coord.ResolveScope(ctx, actor, requestedOrg, ability.ActionRead, ability.KindReport)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.store.List(ctx, orgID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Update rewrites a report. Section slots whose resolved attachment
// changed drop the superseded row, and the displaced documents are
// reconciled after the commit.
func (s *Service) Update(ctx context.Context, actor ability.Actor, id int64, in Input) (Report, error) {
	if err := in.validate(); err != nil {
		return Report{}, err
	}
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}

	var updated Report
	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionUpdate,
		Kind:         ability.KindReport,
		SubjectOrgID: &existing.OrganizationID,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			clientOrg, err := s.clients.ClientOrganization(ctx, in.ClientID)
			if err != nil {
				return lifecycle.Result{}, err
			}
			if clientOrg != existing.OrganizationID {
				return lifecycle.Result{}, lifecycle.ErrForbidden
			}

			previous, err := s.sectionAttachments(ctx, id)
			if err != nil {
				return lifecycle.Result{}, err
			}

			var result lifecycle.Result
			for field, candidate := range in.Attachments {
				attID, err := s.resolver.Resolve(ctx, candidate, field, &id)
				if err != nil {
					return lifecycle.Result{}, err
				}
				oldID, had := previous[field]
				if !had || oldID == attID {
					continue
				}
				old, err := s.atts.Get(ctx, oldID)
				if err != nil {
					if errors.Is(err, attachments.ErrNotFound) {
						continue
					}
					return lifecycle.Result{}, err
				}
				if err := s.atts.Delete(ctx, old.ID); err != nil {
					return lifecycle.Result{}, err
				}
				result.ReplacedDocuments = append(result.ReplacedDocuments, old.DocumentID)
			}

			updated, err = s.store.Update(ctx, id, Report{
				ClientID:      in.ClientID,
				Title:         in.Title,
				Kind:          in.Kind,
				Payload:       in.Payload,
				InstrumentIDs: in.InstrumentIDs,
			})
			return result, err
		},
	})
	if err != nil {
		return Report{}, err
	}
	return updated, nil
}

// Delete removes a report, its instrument citations, and its section
// attachments; the attached documents are reconciled after the commit.
func (s *Service) Delete(ctx context.Context, actor ability.Actor, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionDelete,
		Kind:         ability.KindReport,
		SubjectOrgID: &existing.OrganizationID,
		ResourceID:   id,
		GuardDelete:  true,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			if err := s.store.Delete(ctx, id); err != nil {
				return lifecycle.Result{}, err
			}
			removed, err := s.atts.DeleteByOwner(ctx, id, sectionFields...)
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

func (s *Service) sectionAttachments(ctx context.Context, reportID int64) (SectionAttachments, error) {
	rows, err := s.atts.ListByOwner(ctx, reportID, sectionFields...)
	if err != nil {
		return nil, err
	}
	out := make(SectionAttachments, len(rows))
	for _, att := range rows {
		out[att.FieldName] = att.ID
	}
	return out, nil
}
