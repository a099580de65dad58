package presence

import (
	"context"
	"sync"

	id "gatewarden/pkg/domain"
)

// KeyedLock serializes toggles per identity. The single-process variant
// lives here; multi-instance deployments use the Redis variant so two gates
// scanning the same scholar still serialize.
type KeyedLock interface {
	// Acquire blocks until the identity's lock is held or ctx is done.
	// The returned release function must be called exactly once.
	Acquire(ctx context.Context, identityID id.IdentityID) (release func(), err error)
}

// LocalLock is the in-process KeyedLock. Mutexes are created on first use
// and never reclaimed; the scholar population is small and bounded.
type LocalLock struct {
	locks sync.Map // id.IdentityID -> *sync.Mutex
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(ctx context.Context, identityID id.IdentityID) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, _ := l.locks.LoadOrStore(identityID, &sync.Mutex{})
	mu := entry.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock, nil
}
