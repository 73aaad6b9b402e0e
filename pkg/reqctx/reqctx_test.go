package reqctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type claims struct {
	id      uuid.UUID
	expired bool
}

func (c claims) GetUserID() uuid.UUID     { return c.id }
func (c claims) GetSessionID() *uuid.UUID { return nil }
func (c claims) GetTokenType() string     { return "access" }
func (c claims) IsExpired() bool          { return c.expired }

func TestRequestMeta(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestIDFromContext(ctx))

	ctx = WithRequestMeta(ctx, &RequestMeta{RequestID: "abc"})
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestClaims(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsAuthenticated(ctx))
	_, ok := UserIDFromContext(ctx)
	assert.False(t, ok)

	id := uuid.New()
	ctx = WithClaims(ctx, claims{id: id})
	assert.True(t, IsAuthenticated(ctx))
	got, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	assert.False(t, IsAuthenticated(WithClaims(context.Background(), claims{id: id, expired: true})))
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "", IdempotencyKeyFromContext(context.Background()))
	assert.Equal(t, "k1", IdempotencyKeyFromContext(WithIdempotencyKey(context.Background(), "k1")))
}
