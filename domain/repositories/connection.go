package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/transcribe-relay/domain/entities"
)

// ErrRecordNotFound is returned when a connection record does not exist
var ErrRecordNotFound = errors.New("connection record not found")

// ConnectionRepository stores connection records
type ConnectionRepository interface {
	// Save inserts or replaces the record with the same ID
	Save(ctx context.Context, record *entities.ConnectionRecord) error
	GetByID(ctx context.Context, id string) (*entities.ConnectionRecord, error)
	// ListRecent returns up to limit records, newest first
	ListRecent(ctx context.Context, limit int) ([]*entities.ConnectionRecord, error)
	// DeleteEndedBefore removes closed records that ended before cutoff
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
