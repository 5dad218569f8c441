package instruments

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

// Handler serves instrument endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers instrument routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type instrumentRequest struct {
	Name           string     `json:"name" validate:"required"`
	SerialNo       string     `json:"serialNo"`
	Model          string     `json:"model"`
	CalibrationDue *time.Time `json:"calibrationDue"`
	Certificate    *string    `json:"certificate" validate:"omitempty,uuid4"`
}

type instrumentResponse struct {
	ID                      int64      `json:"id"`
	OrganizationID          int64      `json:"organizationId"`
	Name                    string     `json:"name"`
	SerialNo                string     `json:"serialNo"`
	Model                   string     `json:"model"`
	CalibrationDue          *time.Time `json:"calibrationDue,omitempty"`
	CalibrationAttachmentID *uuid.UUID `json:"calibrationAttachmentId,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
}

type instrumentListResponse struct {
	Items      []instrumentResponse `json:"items"`
	Pagination shared.Pagination    `json:"pagination"`
}

func toResponse(in Instrument) instrumentResponse {
	return instrumentResponse{
		ID:                      in.ID,
		OrganizationID:          in.OrganizationID,
		Name:                    in.Name,
		SerialNo:                in.SerialNo,
		Model:                   in.Model,
		CalibrationDue:          in.CalibrationDue,
		CalibrationAttachmentID: in.CalibrationAttachmentID,
		CreatedAt:               in.CreatedAt,
	}
}

func (r instrumentRequest) input() (Input, error) {
	in := Input{
		Name:           r.Name,
		SerialNo:       r.SerialNo,
		Model:          r.Model,
		CalibrationDue: r.CalibrationDue,
	}
	if r.Certificate != nil {
		id, err := uuid.Parse(*r.Certificate)
		if err != nil {
			return Input{}, err
		}
		in.CertCandidate = &id
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
		h.logger.Error("list instruments", slog.Any("error", err))
		httperr.Respond(w, err)
		return
	}
	out := make([]instrumentResponse, 0, len(items))
	for _, in := range items {
		out = append(out, toResponse(in))
	}
	httpx.JSON(w, http.StatusOK, instrumentListResponse{Items: out, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req instrumentRequest
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
		httpx.Problem(w, http.StatusBadRequest, "Invalid Certificate", "certificate must be a document or attachment id")
		return
	}
	inst, err := h.service.Create(r.Context(), actor, httpx.QueryOrg(r), in)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(inst))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "instrument id must be numeric")
		return
	}
	inst, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inst))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "instrument id must be numeric")
		return
	}
	var req instrumentRequest
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
		httpx.Problem(w, http.StatusBadRequest, "Invalid Certificate", "certificate must be a document or attachment id")
		return
	}
	inst, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inst))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "instrument id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httperr.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
