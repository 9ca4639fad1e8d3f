package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/metrics"
	"github.com/BradenHooton/sentinel/internal/models"
)

const defaultPersistTimeout = 5 * time.Second

// SecurityEventLog writes every event to the structured log immediately and
// persists it to the store in the background. Persistence failures are logged
// and counted, never returned.
type SecurityEventLog struct {
	repo           SecurityEventRepository
	metrics        metrics.Recorder
	logger         *slog.Logger
	persistTimeout time.Duration
	wg             sync.WaitGroup
}

func NewSecurityEventLog(repo SecurityEventRepository, recorder metrics.Recorder, logger *slog.Logger) *SecurityEventLog {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &SecurityEventLog{
		repo:           repo,
		metrics:        recorder,
		logger:         logger,
		persistTimeout: defaultPersistTimeout,
	}
}

// Append records event. It returns before the store write completes; the
// write outlives cancellation of ctx.
func (l *SecurityEventLog) Append(ctx context.Context, event *models.SecurityEvent) {
	if event == nil {
		return
	}

	l.logger.Log(ctx, levelFor(event.Type), "security event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.Any("account_id", event.AccountID),
		slog.Any("ip_address", event.IPAddress),
		slog.Any("details", event.Details),
		slog.Time("timestamp", event.Timestamp),
	)

	if l.repo == nil {
		return
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.persistTimeout)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()

		if err := l.repo.Create(persistCtx, event); err != nil {
			l.metrics.RecordSecurityEventDropped()
			l.logger.Error("failed to persist security event",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", string(event.Type)),
				slog.Any("error", err),
			)
		}
	}()
}

// Wait blocks until every pending store write has finished
func (l *SecurityEventLog) Wait() {
	l.wg.Wait()
}

// ListForAccount returns an account's events, newest first. A log without a
// store has nothing to list.
func (l *SecurityEventLog) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error) {
	if l.repo == nil {
		return []*models.SecurityEvent{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return l.repo.ListByAccount(ctx, accountID, limit, offset)
}

func levelFor(t models.EventType) slog.Level {
	switch t {
	case models.EventFailedLogin, models.EventAccountLocked:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
