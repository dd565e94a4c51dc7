package userctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const accountKey ctxKey = "account_id"

// Create a new context with authenticated account id
func New(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey, accountID)
}

// Extract authenticated account id from the context
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey).(uuid.UUID)
	return id, ok
}
