package reports

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/auth"
	"github.com/inspectra-app/inspectra/internal/httperr"
	"github.com/inspectra-app/inspectra/internal/platform/httpx"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Handler serves report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler builds a Handler instance. idem may be nil, which disables
// Idempotency-Key handling on submission.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idem: idem, validate: validator.New()}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type reportRequest struct {
	ClientID      int64             `json:"clientId" validate:"required"`
	Title         string            `json:"title" validate:"required"`
	Kind          string            `json:"kind"`
	Payload       json.RawMessage   `json:"payload"`
	InstrumentIDs []int64           `json:"instrumentIds"`
	Attachments   map[string]string `json:"attachments"`
}

type reportResponse struct {
	ID             int64                `json:"id"`
	OrganizationID int64                `json:"organizationId"`
	ClientID       int64                `json:"clientId"`
	Title          string               `json:"title"`
	Kind           string               `json:"kind"`
	Payload        json.RawMessage      `json:"payload,omitempty"`
	InstrumentIDs  []int64              `json:"instrumentIds,omitempty"`
	Attachments    map[string]uuid.UUID `json:"attachments,omitempty"`
	CreatedBy      int64                `json:"createdBy"`
	CreatedAt      time.Time            `json:"createdAt"`
}

type reportListResponse struct {
	Items      []reportResponse  `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func toResponse(rep Report, sections SectionAttachments) reportResponse {
	out := reportResponse{
		ID:             rep.ID,
		OrganizationID: rep.OrganizationID,
		ClientID:       rep.ClientID,
		Title:          rep.Title,
		Kind:           rep.Kind,
		Payload:        rep.Payload,
		InstrumentIDs:  rep.InstrumentIDs,
		CreatedBy:      rep.CreatedBy,
		CreatedAt:      rep.CreatedAt,
	}
	if len(sections) > 0 {
		out.Attachments = make(map[string]uuid.UUID, len(sections))
		for field, id := range sections {
			out.Attachments[string(field)] = id
		}
	}
	return out
}

func (r reportRequest) input() (Input, error) {
	in := Input{
		ClientID:      r.ClientID,
		Title:         r.Title,
		Kind:          r.Kind,
		Payload:       r.Payload,
		InstrumentIDs: r.InstrumentIDs,
	}
	if len(r.Attachments) > 0 {
		in.Attachments = make(map[attachments.Field]uuid.UUID, len(r.Attachments))
		for field, candidate := range r.Attachments {
			id, err := uuid.Parse(candidate)
			if err != nil {
				return Input{}, err
			}
			in.Attachments[attachments.Field(field)] = id
		}
	}
	return in, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	items, page, err := h.service.List(r.Context(), actor, httpx.QueryOrg(r), httpx.QueryPage(r))
	if err != nil {
		h.logger.Error("list reports", slog.Any("error", err))
		httperr.Respond(w, err)
		return
	}
	out := make([]reportResponse, 0, len(items))
	for _, rep := range items {
		out = append(out, toResponse(rep, nil))
	}
	httpx.JSON(w, http.StatusOK, reportListResponse{Items: out, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req reportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Attachment", "attachment candidates must be document or attachment ids")
		return
	}
	idemKey := r.Header.Get("Idempotency-Key")
	if h.idem != nil && idemKey != "" {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "reports"); err != nil {
			httperr.Respond(w, err)
			return
		}
	}
	rep, err := h.service.Create(r.Context(), actor, httpx.QueryOrg(r), in)
	if err != nil {
		// Release the key so the client may retry after a failure.
		if h.idem != nil && idemKey != "" {
			if derr := h.idem.Delete(r.Context(), idemKey); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(rep, nil))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "report id must be numeric")
		return
	}
	rep, sections, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(rep, sections))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "report id must be numeric")
		return
	}
	var req reportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Attachment", "attachment candidates must be document or attachment ids")
		return
	}
	rep, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(rep, nil))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "report id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httperr.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
