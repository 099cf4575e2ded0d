package service

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

// WithUserID attaches the authenticated user to ctx so events can be
// attributed to them.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
