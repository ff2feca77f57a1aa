package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"events_syncer/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, guildID string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT id, guild_id, last_synced_at, last_commit_sha, total_runs
		FROM sync_state
		WHERE guild_id = $1`

	err := sqlx.GetContext(ctx, executor(ctx, s.db), &state, query, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		// Return empty state for new guilds
		return &domain.SyncState{GuildID: guildID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (guild_id, last_synced_at, last_commit_sha, total_runs)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			last_commit_sha = EXCLUDED.last_commit_sha,
			total_runs = EXCLUDED.total_runs`

	_, err := executor(ctx, s.db).ExecContext(ctx, query,
		state.GuildID,
		state.LastSyncedAt,
		state.LastCommitSHA,
		state.TotalRuns,
	)
	return err
}
