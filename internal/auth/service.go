package auth

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// ErrNoActor means the session carries no authenticated user.
var ErrNoActor = errors.New("auth: no authenticated actor")

// UserStore is the persistence surface the service needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
}

// Service wraps authentication and identity resolution.
type Service struct {
	store UserStore
}

// NewService constructs a new Service.
func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// Authenticate validates email/password credentials. Inactive accounts fail
// the same way as bad credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ResolveActor turns a session into the canonical actor for the request.
// Inactive accounts are rejected here, before anything reaches the engine.
func (s *Service) ResolveActor(ctx context.Context, sess *shared.Session) (ability.Actor, error) {
	if sess == nil || sess.User() == "" {
		return ability.Actor{}, ErrNoActor
	}
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return ability.Actor{}, ErrNoActor
	}
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return ability.Actor{}, ErrNoActor
	}
	if !user.IsActive {
		return ability.Actor{}, ErrNoActor
	}
	return user.Actor(), nil
}
