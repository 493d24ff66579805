package repository

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/core-coin/offramp/internal/models"
)

// MemoryDB is a process-local Repository used when postgres is not configured.
// Its lock semantics match PostgresDB.
type MemoryDB struct {
	mu          sync.Mutex
	now         func() time.Time
	transfers   map[string]models.TransferRecord
	withdrawals map[string]models.WithdrawalRecord
	locks       map[string]models.SessionLock
	nextID      int64
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		now:         time.Now,
		transfers:   make(map[string]models.TransferRecord),
		withdrawals: make(map[string]models.WithdrawalRecord),
		locks:       make(map[string]models.SessionLock),
	}
}

func (m *MemoryDB) SaveTransfer(record *models.TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[record.ID] = *record
	return nil
}

func (m *MemoryDB) GetTransfer(id string) (*models.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.transfers[id]
	if !ok {
		return nil, models.ErrTransferNotFound
	}
	return &record, nil
}

func (m *MemoryDB) ListTransfersByAddress(address string, limit int) ([]*models.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []*models.TransferRecord
	for _, r := range m.transfers {
		if strings.EqualFold(r.FromAddress, address) {
			record := r
			records = append(records, &record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt > records[j].CreatedAt })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryDB) AddWithdrawal(record *models.WithdrawalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	record.ID = m.nextID
	m.withdrawals[record.TransferID] = *record
	return nil
}

func (m *MemoryDB) GetWithdrawalByTransferID(transferID string) (*models.WithdrawalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.withdrawals[transferID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *MemoryDB) AcquireSessionLock(name, instanceID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().Unix()
	if held, ok := m.locks[name]; ok && held.ExpiresAt >= now {
		return false, nil
	}
	m.locks[name] = models.SessionLock{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now,
		ExpiresAt:  now + int64(ttl.Seconds()),
	}
	return true, nil
}

func (m *MemoryDB) ReleaseSessionLock(name, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.locks[name]; ok && held.InstanceID == instanceID {
		delete(m.locks, name)
	}
	return nil
}

func (m *MemoryDB) RemoveExpiredSessionLocks(timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, lock := range m.locks {
		if lock.ExpiresAt < timestamp {
			delete(m.locks, name)
		}
	}
	return nil
}

var _ models.Repository = (*MemoryDB)(nil)
