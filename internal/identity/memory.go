package identity

import (
	"context"
	"sort"
	"sync"

	id "gatewarden/pkg/domain"
)

// MemoryDirectory is a seedable in-process Directory. It stands in for the
// identity collaborator in development and tests.
type MemoryDirectory struct {
	mu         sync.RWMutex
	identities map[id.IdentityID]Identity
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{identities: make(map[id.IdentityID]Identity)}
}

// Put seeds or replaces an identity record.
func (d *MemoryDirectory) Put(identity Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[identity.ID] = identity
}

func (d *MemoryDirectory) Get(_ context.Context, identityID id.IdentityID) (Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	identity, ok := d.identities[identityID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}

func (d *MemoryDirectory) ListDayScholars(_ context.Context) ([]Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	scholars := make([]Identity, 0)
	for _, identity := range d.identities {
		if identity.DayScholar && identity.Active {
			scholars = append(scholars, identity)
		}
	}
	sort.Slice(scholars, func(i, j int) bool {
		return scholars[i].Name < scholars[j].Name
	})
	return scholars, nil
}
