package requestmeta

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, IdempotencyKey(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithIdempotencyKey(ctx, "idem-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "idem-1", IdempotencyKey(ctx))
}

func TestIdempotencyKeyFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/orders", nil)
	assert.Empty(t, IdempotencyKeyFromRequest(r))

	r.Header.Set(HeaderXIdempotencyKey, " legacy ")
	assert.Equal(t, "legacy", IdempotencyKeyFromRequest(r))

	r.Header.Set(HeaderIdempotencyKey, "current")
	assert.Equal(t, "current", IdempotencyKeyFromRequest(r))
}
