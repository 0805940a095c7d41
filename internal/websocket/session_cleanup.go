package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

const (
	defaultCleanupInterval = 30 * time.Minute
	initialCleanupDelay    = 1 * time.Minute
)

// RecordCleanupService periodically deletes old connection records
type RecordCleanupService struct {
	records   repositories.ConnectionRepository
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewRecordCleanupService creates a cleanup service that keeps records for
// retention after they end.
func NewRecordCleanupService(records repositories.ConnectionRepository, retention time.Duration, logger *zap.Logger) *RecordCleanupService {
	return &RecordCleanupService{
		records:   records,
		retention: retention,
		interval:  defaultCleanupInterval,
		logger:    logger,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *RecordCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Record cleanup service started", zap.Duration("retention", s.retention))
}

// Stop gracefully stops the cleanup service
func (s *RecordCleanupService) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info("Record cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *RecordCleanupService) cleanupLoop() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	initialTimer := time.NewTimer(initialCleanupDelay)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runCleanup()
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup deletes records that ended before the retention window
func (s *RecordCleanupService) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.records.DeleteEndedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to delete expired connection records", zap.Error(err))
		return
	}

	s.logger.Info("Record cleanup completed",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff))
}
