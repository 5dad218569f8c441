package httperr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/guard"
	"github.com/inspectra-app/inspectra/internal/httperr"
	"github.com/inspectra-app/inspectra/internal/platform/blob"
	"github.com/inspectra-app/inspectra/internal/scope"
	"github.com/inspectra-app/inspectra/internal/shared"
)

func respond(err error) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	httperr.Respond(res, err)
	return res
}

func TestRespondStatusClasses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", scope.ErrForbidden, http.StatusForbidden},
		{"wrapped forbidden", fmt.Errorf("delete client: %w", scope.ErrForbidden), http.StatusForbidden},
		{"organization not found", scope.ErrOrganizationNotFound, http.StatusNotFound},
		{"no organization", scope.ErrNoOrganization, http.StatusUnprocessableEntity},
		{"must select organization", scope.ErrMustSelectOrganization, http.StatusUnprocessableEntity},
		{"document candidate missing", attachments.ErrDocumentNotFound, http.StatusNotFound},
		{"unknown attachment field", attachments.ErrUnknownField, http.StatusBadRequest},
		{"row missing", shared.ErrNotFound, http.StatusNotFound},
		{"attachment missing", attachments.ErrNotFound, http.StatusNotFound},
		{"blob missing", blob.ErrNotFound, http.StatusNotFound},
		{"duplicate request", shared.ErrIdempotencyConflict, http.StatusConflict},
		{"bad credentials", shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.status, respond(tc.err).Code)
		})
	}
}

func TestRespondConflictCarriesBlockingKinds(t *testing.T) {
	conflict := &guard.Conflict{
		Kind:     ability.KindClient,
		Blocking: []ability.ResourceKind{ability.KindReport},
	}

	res := respond(fmt.Errorf("delete client: %w", conflict))
	require.Equal(t, http.StatusConflict, res.Code)

	var body struct {
		Extensions struct {
			Resource       string   `json:"resource"`
			BlockingKinds  []string `json:"blockingKinds"`
			BlockingLabels []string `json:"blockingLabels"`
		} `json:"extensions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "Client", body.Extensions.Resource)
	require.Equal(t, []string{"Report"}, body.Extensions.BlockingKinds)
	require.Equal(t, []string{guard.Label(ability.KindReport)}, body.Extensions.BlockingLabels)
}
