package ports

import (
	"context"
	"time"

	"warehouse-channel-sync/internal/domain"
)

// ConnectSessionStore keeps pending OAuth sessions keyed by their state token
type ConnectSessionStore interface {
	Put(ctx context.Context, session *domain.ConnectSession, ttl time.Duration) error

	// Take returns and removes the session in one step. A missing, consumed or
	// expired state returns (nil, nil).
	Take(ctx context.Context, state string) (*domain.ConnectSession, error)
}

// RunGuard admits one holder per key at a time
type RunGuard interface {
	// TryAcquire returns a release token, or ok=false when the key is already held
	TryAcquire(ctx context.Context, key string) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error

	// Extend renews the lease held by token. It returns ok=false when the lock
	// expired or passed to another holder.
	Extend(ctx context.Context, key, token string) (ok bool, err error)
}

// IdempotencyStore remembers processed delivery ids
type IdempotencyStore interface {
	// MarkProcessed records key and reports whether this is its first delivery
	MarkProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes the marker so a redelivery is processed again
	Forget(ctx context.Context, key string) error
}
