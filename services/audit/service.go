package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/sorobai/backend/internal/prompt"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
	"go.uber.org/zap"
)

// Entry is one request log record waiting to be persisted
type Entry struct {
	Request *models.ChatRequest
}

// AuditService persists request logs in the background so answers are never
// held up by the store
type AuditService struct {
	repo        repositories.ChatRequestRepository
	logger      *zap.Logger
	entries     chan *Entry
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	dropped     atomic.Int64
	mu          sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the entry buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  256,
		WorkerCount: 4,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repositories.ChatRequestRepository, logger *zap.Logger, config Config) *AuditService {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		repo:        repo,
		logger:      logger,
		entries:     make(chan *Entry, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
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
	s.logger.Info("started request log",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop closes the buffer and waits for pending entries to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	s.logger.Info("stopping request log", zap.Int("pending_entries", len(s.entries)))
	close(s.entries)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("request log stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues a request log without blocking. A full buffer drops the entry.
func (s *AuditService) Record(req *models.ChatRequest) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.entries <- &Entry{Request: sanitize(req)}:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("request log buffer full, dropping entry",
			zap.String("request_id", req.RequestID),
			zap.String("status", string(req.Status)))
		return fmt.Errorf("audit buffer full")
	}
}

// sanitize copies the request with secrets in the query masked
func sanitize(req *models.ChatRequest) *models.ChatRequest {
	c := *req
	c.Query = prompt.Redact(req.Query)
	return &c
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("request log worker started", zap.Int("worker_id", id))

	for entry := range s.entries {
		if err := s.persist(entry); err != nil {
			s.logger.Error("failed to persist request log",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", entry.Request.RequestID))
		}
	}

	s.logger.Debug("request log worker stopped", zap.Int("worker_id", id))
}

// persist writes one entry. A Stop that times out cancels writes in flight.
func (s *AuditService) persist(entry *Entry) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.repo.Create(ctx, entry.Request); err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingEntries: len(s.entries),
		WorkerCount:    s.workerCount,
		Dropped:        s.dropped.Load(),
		Started:        s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int   `json:"buffer_size"`
	PendingEntries int   `json:"pending_entries"`
	WorkerCount    int   `json:"worker_count"`
	Dropped        int64 `json:"dropped"`
	Started        bool  `json:"started"`
}
