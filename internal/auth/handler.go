package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/httperr"
	"github.com/inspectra-app/inspectra/internal/platform/httpx"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Handler serves login, logout and the identity summary.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	engine   *ability.Engine
	validate *validator.Validate
}

// NewHandler builds a Handler instance. The session manager is only needed
// for explicit destroys; creation and refresh ride the middleware commit.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, engine *ability.Engine) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions, engine: engine, validate: validator.New()}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "email or password incorrect")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httperr.Respond(w, err)
		return
	}

	// The session middleware commits on first write, so setting the user
	// here is enough for the cookie to go out with this response.
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))

	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessions.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

type permissionEntry struct {
	Kind   ability.ResourceKind `json:"kind"`
	Action ability.Action       `json:"action"`
}

// Me describes the signed-in actor and the permissions it holds against its
// home organization. Mounted behind RequireActor.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}

	rules := h.engine.Allowed(actor, actor.HomeOrganizationID)
	perms := make([]permissionEntry, 0, len(rules))
	for _, rule := range rules {
		perms = append(perms, permissionEntry{Kind: rule.Kind, Action: rule.Action})
	}
	// Ruleset iteration order is not stable.
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Kind != perms[j].Kind {
			return perms[i].Kind < perms[j].Kind
		}
		return perms[i].Action < perms[j].Action
	})

	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":             actor.ID,
		"role":           actor.Role,
		"organizationId": actor.HomeOrganizationID,
		"permissions":    perms,
	})
}
