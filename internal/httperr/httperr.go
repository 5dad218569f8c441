// Package httperr translates engine and domain errors into RFC7807 problem
// responses. It sits above the domain packages so internal/platform/httpx
// stays a leaf.
package httperr

import (
	"errors"
	"net/http"

	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/guard"
	"github.com/inspectra-app/inspectra/internal/platform/blob"
	"github.com/inspectra-app/inspectra/internal/platform/httpx"
	"github.com/inspectra-app/inspectra/internal/scope"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Respond maps err to a problem response. Scope and authorization failures
// are distinct classes; dependency conflicts carry the blocking child kinds
// so the UI can name them without another query.
func Respond(w http.ResponseWriter, err error) {
	var conflict *guard.Conflict
	switch {
	case errors.As(err, &conflict):
		kinds := make([]string, len(conflict.Blocking))
		labels := make([]string, len(conflict.Blocking))
		for i, kind := range conflict.Blocking {
			kinds[i] = string(kind)
			labels[i] = guard.Label(kind)
		}
		httpx.ProblemWith(w, http.StatusConflict, "Dependency Conflict", conflict.Error(), map[string]any{
			"resource":       string(conflict.Kind),
			"blockingKinds":  kinds,
			"blockingLabels": labels,
		})
	case errors.Is(err, scope.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to perform this action")
	case errors.Is(err, scope.ErrOrganizationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Organization Not Found", err.Error())
	case errors.Is(err, scope.ErrNoOrganization), errors.Is(err, scope.ErrMustSelectOrganization):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Scope Required", err.Error())
	case errors.Is(err, attachments.ErrDocumentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Document Not Found", err.Error())
	case errors.Is(err, attachments.ErrUnknownField):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Attachment Field", err.Error())
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, attachments.ErrNotFound),
		errors.Is(err, blob.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
