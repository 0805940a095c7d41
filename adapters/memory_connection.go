package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

// MemoryConnectionRepository is an in-memory implementation of ConnectionRepository.
// Records are lost on restart.
type MemoryConnectionRepository struct {
	mu      sync.RWMutex
	records map[string]*entities.ConnectionRecord
}

var _ repositories.ConnectionRepository = (*MemoryConnectionRepository)(nil)

// NewMemoryConnectionRepository creates a new in-memory connection repository
func NewMemoryConnectionRepository() *MemoryConnectionRepository {
	return &MemoryConnectionRepository{
		records: make(map[string]*entities.ConnectionRecord),
	}
}

// Save implements ConnectionRepository interface
func (m *MemoryConnectionRepository) Save(ctx context.Context, record *entities.ConnectionRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}

	// Generate ID if not provided
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	m.records[record.ID] = &stored
	return nil
}

// GetByID implements ConnectionRepository interface
func (m *MemoryConnectionRepository) GetByID(ctx context.Context, id string) (*entities.ConnectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.records[id]
	if !exists {
		return nil, repositories.ErrRecordNotFound
	}

	result := *record
	return &result, nil
}

// ListRecent implements ConnectionRepository interface
func (m *MemoryConnectionRepository) ListRecent(ctx context.Context, limit int) ([]*entities.ConnectionRecord, error) {
	m.mu.RLock()
	result := make([]*entities.ConnectionRecord, 0, len(m.records))
	for _, record := range m.records {
		r := *record
		result = append(result, &r)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteEndedBefore implements ConnectionRepository interface
func (m *MemoryConnectionRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, record := range m.records {
		if record.EndedAt != nil && record.EndedAt.Before(cutoff) {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count returns the number of stored records
func (m *MemoryConnectionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
