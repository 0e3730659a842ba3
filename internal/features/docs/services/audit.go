package services

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"the-keep/internal/core"
	"the-keep/internal/features/docs/models"
	"the-keep/internal/static"
)

// AuditService writes document access records to the database. Records
// are queued on a fixed-size channel and flushed by a single writer
// goroutine so that serving never blocks on the database; when the queue
// is full, records are dropped and counted.
type AuditService struct {
	db      *core.Database
	logger  *core.Logger
	queue   chan models.AccessRecord
	stopped chan struct{}
	dropped atomic.Int64
}

// NewAuditService creates a new audit service with the given queue size.
func NewAuditService(db *core.Database, logger *core.Logger, bufferSize int) *AuditService {
	return &AuditService{
		db:      db,
		logger:  logger,
		queue:   make(chan models.AccessRecord, bufferSize),
		stopped: make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (s *AuditService) Start(ctx context.Context) error {
	go s.run()
	s.logger.Info("Access audit started", "buffer_size", cap(s.queue))
	return nil
}

// Stop closes the queue and waits for queued records to be flushed.
// Callers must stop routing requests through Record before calling Stop.
func (s *AuditService) Stop(ctx context.Context) error {
	close(s.queue)

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit flush interrupted: %w", ctx.Err())
	}
}

// Record queues one access for persistence. It never blocks: if the
// queue is full the record is dropped.
func (s *AuditService) Record(r *http.Request, access static.Access) {
	record := models.AccessRecord{
		ID:         uuid.New().String(),
		Mount:      access.Mount,
		Path:       access.Path,
		Method:     access.Method,
		Status:     access.Status,
		Bytes:      access.Bytes,
		DurationMS: access.Duration.Milliseconds(),
		RemoteAddr: access.RemoteAddr,
		CreatedAt:  time.Now().UTC(),
	}

	select {
	case s.queue <- record:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("Access audit queue full, dropping records", "dropped_total", n)
		}
	}
}

// Dropped returns the number of records dropped because the queue was full.
func (s *AuditService) Dropped() int64 {
	return s.dropped.Load()
}

func (s *AuditService) run() {
	defer close(s.stopped)

	for record := range s.queue {
		if err := s.insert(record); err != nil {
			s.logger.Error("Failed to persist access record", "error", err, "mount", record.Mount)
		}
	}
}

func (s *AuditService) insert(record models.AccessRecord) error {
	query := `
		INSERT INTO docs_access_log (id, mount, path, method, status, bytes, duration_ms, remote_addr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecWithTimeout(context.Background(), query,
		record.ID,
		record.Mount,
		record.Path,
		record.Method,
		record.Status,
		record.Bytes,
		record.DurationMS,
		record.RemoteAddr,
		record.CreatedAt,
	)
	return err
}

// RecentAccesses returns the newest access records, optionally filtered
// by mount name.
func (s *AuditService) RecentAccesses(ctx context.Context, mount string, limit int) ([]models.AccessRecord, error) {
	query := `
		SELECT id, mount, path, method, status, bytes, duration_ms, remote_addr, created_at
		FROM docs_access_log
		WHERE (? = '' OR mount = ?)
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	ctx, cancel := s.db.WithQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, mount, mount, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query access log: %w", err)
	}
	defer rows.Close()

	var records []models.AccessRecord
	for rows.Next() {
		var record models.AccessRecord
		err := rows.Scan(
			&record.ID,
			&record.Mount,
			&record.Path,
			&record.Method,
			&record.Status,
			&record.Bytes,
			&record.DurationMS,
			&record.RemoteAddr,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Summary aggregates the access log since the given time.
func (s *AuditService) Summary(ctx context.Context, since time.Time) (*models.AccessSummary, error) {
	query := `
		SELECT status / 100, COUNT(*), COALESCE(SUM(bytes), 0)
		FROM docs_access_log
		WHERE created_at >= ?
		GROUP BY status / 100
	`

	ctx, cancel := s.db.WithQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate access log: %w", err)
	}
	defer rows.Close()

	summary := &models.AccessSummary{
		Since:   since.UTC(),
		Dropped: s.dropped.Load(),
	}

	for rows.Next() {
		var class int
		var count, bytes int64
		if err := rows.Scan(&class, &count, &bytes); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}

		summary.Total += count
		summary.Bytes += bytes
		switch class {
		case 2, 3:
			summary.Served += count
		case 4:
			summary.Denied += count
		case 5:
			summary.Failed += count
		}
	}

	return summary, rows.Err()
}
