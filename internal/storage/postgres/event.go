package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"events_syncer/internal/domain"
)

type EventStore struct {
	db *sqlx.DB
}

func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

// UpsertBatch mirrors the merged events of a guild. Rows are never deleted,
// matching the document, which only ever grows.
func (s *EventStore) UpsertBatch(ctx context.Context, guildID string, events []domain.Event) error {
	query := `
		INSERT INTO events (
			guild_id, event_id, name, event_date, description, location, section
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (guild_id, event_id) DO UPDATE SET
			name = EXCLUDED.name,
			event_date = EXCLUDED.event_date,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			section = EXCLUDED.section,
			updated_at = NOW()`

	exec := executor(ctx, s.db)
	for _, e := range events {
		_, err := exec.ExecContext(ctx, query,
			guildID,
			e.ID,
			e.Name,
			e.Date,
			e.Description,
			e.Location,
			string(e.Section),
		)
		if err != nil {
			return fmt.Errorf("upsert event %s: %w", e.ID, err)
		}
	}

	return nil
}

// ListByGuild returns a guild's archived events ordered by date.
func (s *EventStore) ListByGuild(ctx context.Context, guildID string) ([]domain.Event, error) {
	var rows []eventRow
	query := `
		SELECT event_id, name, event_date, description, location, section
		FROM events
		WHERE guild_id = $1
		ORDER BY event_date, event_id`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows, query, guildID); err != nil {
		return nil, err
	}

	events := make([]domain.Event, len(rows))
	for i, r := range rows {
		events[i] = r.toDomain()
	}
	return events, nil
}
