package domain

import "time"

// SyncStats holds statistics about a sync run.
type SyncStats struct {
	GuildID     string
	Fetched     int
	FetchFailed bool
	Stored      int
	Created     int
	Updated     int
	Moved       int
	Unchanged   int
	Upcoming    int
	Past        int
	Published   int
	Errors      int
	CommitSHA   string
	Duration    time.Duration
}

// SyncState is the archived per-guild record of past runs.
type SyncState struct {
	ID            int64     `db:"id"`
	GuildID       string    `db:"guild_id"`
	LastSyncedAt  time.Time `db:"last_synced_at"`
	LastCommitSHA string    `db:"last_commit_sha"`
	TotalRuns     int64     `db:"total_runs"`
}
