package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service writes audit entries asynchronously through a worker pool. Callers
// treat it as fire-and-forget: a full buffer or a failing recorder never
// blocks or fails the access decision that produced the entry.
type Service struct {
	recorder    Recorder
	logger      *zap.Logger
	entryChan   chan *Entry
	workerCount int
	bufferSize  int
	enabled     bool
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	Enabled     bool
	BufferSize  int // Size of the entry buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// NewService creates a new audit Service instance
func NewService(recorder Recorder, logger *zap.Logger, config Config) *Service {
	return &Service{
		recorder:    recorder,
		logger:      logger,
		entryChan:   make(chan *Entry, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		enabled:     config.Enabled,
	}
}

// Enabled reports whether granted decisions should be recorded. Denied
// decisions are always recorded.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize),
		zap.Bool("enabled", s.enabled))

	return nil
}

// Stop gracefully stops the service, waiting for pending entries to drain.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	// Flip before closing so late Submit calls drop instead of hitting a
	// closed channel.
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_entries", len(s.entryChan)))

	close(s.entryChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Submit enqueues an entry without blocking. When the buffer is full the
// entry is dropped with a warning; the caller's decision is not affected.
func (s *Service) Submit(entry *Entry) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.logger.Warn("audit entry submitted before service start, dropping",
			zap.String("username", entry.Username),
			zap.String("outcome", string(entry.Outcome)))
		return
	}
	s.mu.Unlock()

	select {
	case s.entryChan <- entry:
	default:
		s.logger.Warn("audit entry buffer full, dropping entry",
			zap.String("username", entry.Username),
			zap.Strings("actions", entry.Actions),
			zap.String("outcome", string(entry.Outcome)))
	}
}

// worker drains entries from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for entry := range s.entryChan {
		if err := s.record(entry); err != nil {
			s.logger.Error("failed to record audit entry",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("username", entry.Username),
				zap.String("outcome", string(entry.Outcome)))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) record(entry *Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.recorder.Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int
	PendingEntries int
	WorkerCount    int
	Started        bool
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingEntries: len(s.entryChan),
		WorkerCount:    s.workerCount,
		Started:        s.started,
	}
}
