package transfer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/core-coin/offramp/internal/models"
)

// Locker serializes transfers per wallet session.
type Locker interface {
	// TryLock acquires key without blocking. It reports false when key is already held.
	TryLock(key string) (bool, error)
	Unlock(key string) error
}

// SessionKey is the lock name of a wallet session.
func SessionKey(address common.Address) string {
	return "wallet:" + strings.ToLower(address.Hex())
}

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (m *MemoryLocker) TryLock(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; ok {
		return false, nil
	}
	m.held[key] = struct{}{}
	return true, nil
}

func (m *MemoryLocker) Unlock(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.held, key)
	return nil
}

// RepositoryLocker keeps locks as rows so several instances sharing a database
// never drive the same wallet at once. Rows expire after ttl in case an instance dies
// while holding one.
type RepositoryLocker struct {
	repo       models.Repository
	instanceID string
	ttl        time.Duration
}

func NewRepositoryLocker(repo models.Repository, instanceID string, ttl time.Duration) *RepositoryLocker {
	return &RepositoryLocker{repo: repo, instanceID: instanceID, ttl: ttl}
}

func (r *RepositoryLocker) TryLock(key string) (bool, error) {
	acquired, err := r.repo.AcquireSessionLock(key, r.instanceID, r.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	return acquired, nil
}

func (r *RepositoryLocker) Unlock(key string) error {
	if err := r.repo.ReleaseSessionLock(key, r.instanceID); err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}
