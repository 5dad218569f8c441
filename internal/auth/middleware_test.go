package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/auth"
	"github.com/inspectra-app/inspectra/internal/shared"
)

func TestRequireActorRejectsAnonymous(t *testing.T) {
	mw := auth.NewMiddleware(auth.NewService(&stubStore{}), testLogger())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an actor")
	})

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	res := httptest.NewRecorder()
	mw.RequireActor(next).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireActorLoadsActor(t *testing.T) {
	store := &stubStore{users: map[string]auth.User{
		"eng@acme.test": {
			ID:             7,
			Email:          "eng@acme.test",
			Role:           ability.RoleEngineer,
			OrganizationID: orgPtr(3),
			IsActive:       true,
		},
	}}
	mw := auth.NewMiddleware(auth.NewService(store), testLogger())

	var seen ability.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFromContext(r.Context())
		require.True(t, ok)
		seen = actor
	})

	sess := &shared.Session{}
	sess.SetUser("7")
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	mw.RequireActor(next).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, int64(7), seen.ID)
	require.Equal(t, ability.RoleEngineer, seen.Role)
	require.Equal(t, int64(3), *seen.HomeOrganizationID)
}

func TestRequireActorRejectsDeactivatedAccount(t *testing.T) {
	store := &stubStore{users: map[string]auth.User{
		"gone@acme.test": {ID: 9, Email: "gone@acme.test", Role: ability.RoleEngineer, IsActive: false},
	}}
	mw := auth.NewMiddleware(auth.NewService(store), testLogger())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for a deactivated account")
	})

	sess := &shared.Session{}
	sess.SetUser("9")
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	mw.RequireActor(next).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}
