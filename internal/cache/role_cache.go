package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	roleKeyPrefix = "role:"
	RoleTTL       = 5 * time.Minute
)

// RoleCache keeps the current role of a user for RoleTTL so role checks do
// not hit the database on every request.
type RoleCache struct {
	client Client
	ttl    time.Duration
}

func NewRoleCache(client Client) *RoleCache {
	return &RoleCache{client: client, ttl: RoleTTL}
}

func (c *RoleCache) Get(ctx context.Context, userID uuid.UUID) (string, error) {
	return c.client.Get(ctx, roleKeyPrefix+userID.String())
}

func (c *RoleCache) Set(ctx context.Context, userID uuid.UUID, role string) error {
	return c.client.Set(ctx, roleKeyPrefix+userID.String(), role, c.ttl)
}

func (c *RoleCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, roleKeyPrefix+userID.String())
}
