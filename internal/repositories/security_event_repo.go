package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityEventRepository stores the append-only security event log
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{pool: db.Pool}
}

func scanSecurityEventRow(row rowScanner) (*models.SecurityEvent, error) {
	var event models.SecurityEvent
	var eventType string
	var raw []byte

	err := row.Scan(
		&event.ID, &eventType, &event.AccountID, &event.IPAddress,
		&event.UserAgent, &raw, &event.Timestamp,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	event.Type = models.EventType(eventType)
	details, err := models.DecodeEventDetails(event.Type, raw)
	if err != nil {
		return nil, err
	}
	event.Details = details

	return &event, nil
}

func scanSecurityEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)

	for rows.Next() {
		event, err := scanSecurityEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode %s details: %w", event.Type, err)
	}

	query := `
		INSERT INTO security_events (id, event_type, account_id, ip_address, user_agent, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		event.ID, string(event.Type), event.AccountID, event.IPAddress,
		event.UserAgent, details, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create security event: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListByAccount returns an account's events, newest first
func (r *SecurityEventRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, event_type, account_id::text, ip_address, user_agent, details, occurred_at
		FROM security_events
		WHERE account_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanSecurityEventRows(rows)
}

// DeleteOlderThan purges events that occurred before cutoff
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM security_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete security events: %w", err)
	}

	return result.RowsAffected(), nil
}
