package equipment

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/auth"
	"github.com/inspectra-app/inspectra/internal/httperr"
	"github.com/inspectra-app/inspectra/internal/platform/httpx"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Handler serves equipment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers equipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/maintenance", h.listMaintenance)
	r.Post("/{id}/maintenance", h.addMaintenance)
}

type equipmentRequest struct {
	Name         string  `json:"name" validate:"required"`
	SerialNo     string  `json:"serialNo"`
	Manufacturer string  `json:"manufacturer"`
	Location     string  `json:"location"`
	Photo        *string `json:"photo" validate:"omitempty,uuid4"`
}

type equipmentResponse struct {
	ID                int64      `json:"id"`
	OrganizationID    int64      `json:"organizationId"`
	Name              string     `json:"name"`
	SerialNo          string     `json:"serialNo"`
	Manufacturer      string     `json:"manufacturer"`
	Location          string     `json:"location"`
	PhotoAttachmentID *uuid.UUID `json:"photoAttachmentId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type equipmentListResponse struct {
	Items      []equipmentResponse `json:"items"`
	Pagination shared.Pagination   `json:"pagination"`
}

type maintenanceRequest struct {
	PerformedAt time.Time `json:"performedAt" validate:"required"`
	Notes       string    `json:"notes" validate:"required"`
}

type maintenanceResponse struct {
	ID          int64     `json:"id"`
	EquipmentID int64     `json:"equipmentId"`
	PerformedBy int64     `json:"performedBy"`
	PerformedAt time.Time `json:"performedAt"`
	Notes       string    `json:"notes"`
}

func toResponse(eq Equipment) equipmentResponse {
	return equipmentResponse{
		ID:                eq.ID,
		OrganizationID:    eq.OrganizationID,
		Name:              eq.Name,
		SerialNo:          eq.SerialNo,
		Manufacturer:      eq.Manufacturer,
		Location:          eq.Location,
		PhotoAttachmentID: eq.PhotoAttachmentID,
		CreatedAt:         eq.CreatedAt,
	}
}

func (r equipmentRequest) input() (Input, error) {
	in := Input{
		Name:         r.Name,
		SerialNo:     r.SerialNo,
		Manufacturer: r.Manufacturer,
		Location:     r.Location,
	}
	if r.Photo != nil {
		id, err := uuid.Parse(*r.Photo)
		if err != nil {
			return Input{}, err
		}
		in.PhotoCandidate = &id
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
		h.logger.Error("list equipment", slog.Any("error", err))
		httperr.Respond(w, err)
		return
	}
	out := make([]equipmentResponse, 0, len(items))
	for _, eq := range items {
		out = append(out, toResponse(eq))
	}
	httpx.JSON(w, http.StatusOK, equipmentListResponse{Items: out, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req equipmentRequest
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
		httpx.Problem(w, http.StatusBadRequest, "Invalid Photo", "photo must be a document or attachment id")
		return
	}
	eq, err := h.service.Create(r.Context(), actor, httpx.QueryOrg(r), in)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(eq))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "equipment id must be numeric")
		return
	}
	eq, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(eq))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "equipment id must be numeric")
		return
	}
	var req equipmentRequest
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
		httpx.Problem(w, http.StatusBadRequest, "Invalid Photo", "photo must be a document or attachment id")
		return
	}
	eq, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(eq))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "equipment id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httperr.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMaintenance(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "equipment id must be numeric")
		return
	}
	entries, err := h.service.ListMaintenance(r.Context(), actor, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	out := make([]maintenanceResponse, 0, len(entries))
	for _, m := range entries {
		out = append(out, maintenanceResponse{
			ID:          m.ID,
			EquipmentID: m.EquipmentID,
			PerformedBy: m.PerformedBy,
			PerformedAt: m.PerformedAt,
			Notes:       m.Notes,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) addMaintenance(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "equipment id must be numeric")
		return
	}
	var req maintenanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.AddMaintenance(r.Context(), actor, id, DailyMaintenance{
		PerformedAt: req.PerformedAt,
		Notes:       req.Notes,
	})
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, maintenanceResponse{
		ID:          entry.ID,
		EquipmentID: entry.EquipmentID,
		PerformedBy: entry.PerformedBy,
		PerformedAt: entry.PerformedAt,
		Notes:       entry.Notes,
	})
}
