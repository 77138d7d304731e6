package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
	"github.com/picketapp/picket/internal/auth/store"
	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/picketapp/picket/pkg/idx"
)

// DefaultAuditQueueSize bounds the audit channel. When the queue is
// full new events are dropped and counted rather than blocking the
// request path.
const DefaultAuditQueueSize = 1024

// AuditService records authentication events without ever slowing down
// or failing the request that produced them. Log enqueues; a single
// worker goroutine encrypts the identifying fields, hashes the device
// id, buckets the timestamp to the hour and writes the row.
type AuditService struct {
	store  store.Store
	cipher *cryptox.FieldCipher
	logger *slog.Logger

	queue   chan domain.AuditEntry
	done    chan struct{}
	once    sync.Once
	dropped int64
	mu      sync.Mutex // guards dropped
}

func NewAuditService(st store.Store, cipher *cryptox.FieldCipher, logger *slog.Logger, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = DefaultAuditQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuditService{
		store:  st,
		cipher: cipher,
		logger: logger,
		queue:  make(chan domain.AuditEntry, queueSize),
		done:   make(chan struct{}),
	}
	go s.worker()
	return s
}

// Log enqueues an entry. It never returns an error and never blocks:
// when the queue is full the event is dropped and counted.
func (s *AuditService) Log(entry domain.AuditEntry) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	select {
	case s.queue <- entry:
	default:
		s.mu.Lock()
		s.dropped++
		n := s.dropped
		s.mu.Unlock()
		s.logger.Warn("audit queue full, event dropped",
			"action", string(entry.Action), "dropped_total", n)
	}
}

// Dropped returns how many events have been discarded due to a full queue.
func (s *AuditService) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops accepting events and drains everything already queued.
func (s *AuditService) Close() {
	s.once.Do(func() {
		close(s.queue)
		<-s.done
	})
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.queue {
		if err := s.persist(context.Background(), entry); err != nil {
			s.logger.Error("audit event write failed",
				"action", string(entry.Action), "error", err)
		}
	}
}

func (s *AuditService) persist(ctx context.Context, entry domain.AuditEntry) error {
	event := domain.AuditEvent{
		ID:         idx.New().String(),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Platform:   entry.Platform,
		Success:    entry.Success,
		Reason:     entry.Reason,
		OccurredAt: entry.OccurredAt.UTC().Truncate(time.Hour),
	}

	var err error
	if entry.UserID != "" {
		if event.UserID, err = s.cipher.Encrypt(entry.UserID); err != nil {
			return err
		}
	}
	if entry.Username != "" {
		if event.Username, err = s.cipher.Encrypt(entry.Username); err != nil {
			return err
		}
	}
	if entry.Metadata != "" {
		if event.Metadata, err = s.cipher.Encrypt(entry.Metadata); err != nil {
			return err
		}
	}
	if entry.DeviceID != "" {
		event.DeviceHash = cryptox.FingerprintToken(entry.DeviceID)
	}

	return s.store.AuditEvents().CreateAuditEvent(ctx, event)
}

// QueryLogs returns decrypted events for the admin endpoints. A field
// that fails to authenticate comes back as FieldResult{OK: false} and
// the query keeps going; one corrupt row must not hide the rest.
func (s *AuditService) QueryLogs(ctx context.Context, f domain.AuditFilter) ([]domain.DecryptedEvent, error) {
	events, err := s.store.AuditEvents().ListAuditEvents(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DecryptedEvent, 0, len(events))
	for _, e := range events {
		out = append(out, domain.DecryptedEvent{
			ID:         e.ID,
			Action:     e.Action,
			UserID:     s.decryptField(e.UserID),
			Username:   s.decryptField(e.Username),
			Metadata:   s.decryptField(e.Metadata),
			DeviceHash: e.DeviceHash,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Platform:   e.Platform,
			Success:    e.Success,
			Reason:     e.Reason,
			OccurredAt: e.OccurredAt,
		})
	}
	return out, nil
}

func (s *AuditService) decryptField(f cryptox.EncryptedField) domain.FieldResult {
	if f.IsZero() {
		return domain.FieldResult{OK: true}
	}
	value, err := s.cipher.Decrypt(f)
	if err != nil {
		return domain.FieldResult{OK: false}
	}
	return domain.FieldResult{Value: value, OK: true}
}

// Stats aggregates event counts per action and platform over the last
// windowDays. Encrypted columns are never read.
func (s *AuditService) Stats(ctx context.Context, windowDays int) ([]domain.ActionStats, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	return s.store.AuditEvents().AuditStats(ctx, since)
}

// Cleanup enforces the 30 day retention window.
func (s *AuditService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-domain.AuditRetention)
	return s.store.AuditEvents().DeleteAuditEventsBefore(ctx, cutoff)
}
