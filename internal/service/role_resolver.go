package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"account-service/internal/repository"
)

type RoleCache interface {
	Get(ctx context.Context, userID uuid.UUID) (string, error)
	Set(ctx context.Context, userID uuid.UUID, role string) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// RoleResolver reads the current role of a user, cache first. Roles in
// access tokens can be stale for up to the token lifetime, so authorization
// decisions go through here instead.
type RoleResolver struct {
	users repository.UserRepository
	cache RoleCache
}

func NewRoleResolver(users repository.UserRepository, cache RoleCache) *RoleResolver {
	return &RoleResolver{users: users, cache: cache}
}

func (r *RoleResolver) Resolve(ctx context.Context, userID uuid.UUID) (string, error) {
	if r.cache != nil {
		if role, err := r.cache.Get(ctx, userID); err == nil && role != "" {
			return role, nil
		}
	}

	role, err := r.users.FindRole(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, role); err != nil {
			slog.WarnContext(ctx, "Failed to cache role", "user_id", userID, "error", err)
		}
	}
	return role, nil
}

// Authorize returns ErrForbidden unless the user holds one of roles.
func (r *RoleResolver) Authorize(ctx context.Context, userID uuid.UUID, roles ...string) error {
	role, err := r.Resolve(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !slices.Contains(roles, role) {
		return ErrForbidden
	}
	return nil
}

func (r *RoleResolver) Invalidate(ctx context.Context, userID uuid.UUID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate cached role", "user_id", userID, "error", err)
	}
}
