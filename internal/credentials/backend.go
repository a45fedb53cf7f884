package credentials

import (
	"context"
	"sync"

	"github.com/textbot/internal/actions"
)

// Backend persists credentials keyed by (user, action kind). Put must be atomic per key.
type Backend interface {
	Get(ctx context.Context, user actions.UserID, kind actions.Kind) (Credential, error)
	Put(ctx context.Context, user actions.UserID, kind actions.Kind, cred Credential) error
}

type memoryKey struct {
	user actions.UserID
	kind actions.Kind
}

// MemoryBackend keeps credentials in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	creds map[memoryKey]Credential
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{creds: make(map[memoryKey]Credential)}
}

func (m *MemoryBackend) Get(_ context.Context, user actions.UserID, kind actions.Kind) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[memoryKey{user, kind}]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

func (m *MemoryBackend) Put(_ context.Context, user actions.UserID, kind actions.Kind, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[memoryKey{user, kind}] = cred
	return nil
}
