package store

import (
	"context"
	"sync"
	"time"

	"gatewarden/internal/credential/models"
	id "gatewarden/pkg/domain"
)

// MemoryStore is the in-process Store used in development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]models.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{credentials: make(map[id.CredentialID]models.Credential)}
}

func (s *MemoryStore) Create(_ context.Context, credential models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[credential.ID]; exists {
		return ErrDuplicateKey
	}
	for _, existing := range s.credentials {
		if existing.Kind == credential.Kind && existing.NaturalKey == credential.NaturalKey {
			return ErrDuplicateKey
		}
	}
	s.credentials[credential.ID] = credential
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, credentialID id.CredentialID) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[credentialID]
	if !ok {
		return models.Credential{}, ErrNotFound
	}
	return credential, nil
}

func (s *MemoryStore) FindActiveByID(_ context.Context, credentialID id.CredentialID, kind id.Kind) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[credentialID]
	if !ok || !credential.Active || credential.Kind != kind {
		return models.Credential{}, ErrNotFound
	}
	return credential, nil
}

func (s *MemoryStore) FindActiveByPlate(_ context.Context, plate string) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, credential := range s.credentials {
		if credential.Kind == id.KindVehicle && credential.Active && credential.NaturalKey == plate {
			return credential, nil
		}
	}
	return models.Credential{}, ErrNotFound
}

func (s *MemoryStore) SaveIssuance(_ context.Context, credentialID id.CredentialID, hash string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[credentialID]
	if !ok {
		return ErrNotFound
	}
	if credential.VerificationHash != "" {
		return ErrAlreadyIssued
	}
	credential.VerificationHash = hash
	credential.IssuedAt = issuedAt
	s.credentials[credentialID] = credential
	return nil
}

func (s *MemoryStore) CountActiveByKind(_ context.Context) (map[id.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.Kind]int)
	for _, credential := range s.credentials {
		if credential.Active {
			counts[credential.Kind]++
		}
	}
	return counts, nil
}

// MarkStolen flips the stolen flag. The flag belongs to the owning
// collaborator; this setter exists for seeding and tests only.
func (s *MemoryStore) MarkStolen(credentialID id.CredentialID, stolen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credential, ok := s.credentials[credentialID]; ok {
		credential.Stolen = stolen
		s.credentials[credentialID] = credential
	}
}

// Deactivate clears the active flag, same caveat as MarkStolen.
func (s *MemoryStore) Deactivate(credentialID id.CredentialID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credential, ok := s.credentials[credentialID]; ok {
		credential.Active = false
		s.credentials[credentialID] = credential
	}
}
