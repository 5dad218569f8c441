package orgs

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inspectra-app/inspectra/internal/auth"
	"github.com/inspectra-app/inspectra/internal/httperr"
	"github.com/inspectra-app/inspectra/internal/platform/httpx"
)

// Handler serves organization endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type organizationRequest struct {
	Name           string `json:"name" validate:"required"`
	RegistrationNo string `json:"registrationNo"`
	Address        string `json:"address"`
}

type organizationResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	RegistrationNo string `json:"registrationNo"`
	Address        string `json:"address"`
}

func toResponse(org Organization) organizationResponse {
	return organizationResponse{ID: org.ID, Name: org.Name, RegistrationNo: org.RegistrationNo, Address: org.Address}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	items, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.logger.Error("list organizations", slog.Any("error", err))
		httperr.Respond(w, err)
		return
	}
	out := make([]organizationResponse, 0, len(items))
	for _, org := range items {
		out = append(out, toResponse(org))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req organizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	org, err := h.service.Create(r.Context(), actor, Organization{
		Name:           req.Name,
		RegistrationNo: req.RegistrationNo,
		Address:        req.Address,
	})
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(org))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "organization id must be numeric")
		return
	}
	org, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(org))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "organization id must be numeric")
		return
	}
	var req organizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	org, err := h.service.Update(r.Context(), actor, id, Organization{
		Name:           req.Name,
		RegistrationNo: req.RegistrationNo,
		Address:        req.Address,
	})
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(org))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "organization id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httperr.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
