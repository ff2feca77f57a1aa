package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"events_syncer/internal/domain"
	"events_syncer/internal/merge"
)

// Archive groups the optional postgres collaborators.
type Archive struct {
	Events    EventStore
	SyncState SyncStateStore
	TxManager TransactionManager
}

type SyncService struct {
	source    Source
	documents DocumentStore
	codec     Codec
	merger    Merger
	publisher Publisher
	archive   *Archive
	exporter  Exporter
	logger    *slog.Logger
}

// NewSyncService wires a sync run. publisher, archive and exporter may be nil.
func NewSyncService(
	source Source,
	documents DocumentStore,
	codec Codec,
	merger Merger,
	publisher Publisher,
	archive *Archive,
	exporter Exporter,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		source:    source,
		documents: documents,
		codec:     codec,
		merger:    merger,
		publisher: publisher,
		archive:   archive,
		exporter:  exporter,
		logger:    logger.With("source", source.ID(), "guild_id", source.GuildID()),
	}
}

// Sync runs fetch, read, decode, merge, encode and write. Nothing is written
// unless every step before the write succeeds. A failed fetch is logged and
// treated as an empty fetch so stored events are kept.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	startTime := time.Now()
	s.logger.Info("starting sync", "source_name", s.source.Name())

	stats := &domain.SyncStats{GuildID: s.source.GuildID()}

	fetched, err := s.source.FetchEvents(ctx)
	if err != nil {
		s.logger.Error("fetch failed, keeping stored events", "error", err)
		stats.FetchFailed = true
		fetched = nil
	}
	stats.Fetched = len(fetched)

	s.logger.Info("fetched events from source", "count", stats.Fetched)

	content, version, err := s.documents.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := s.codec.Decode(content)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	stats.Stored = len(doc.Upcoming) + len(doc.Past)

	result := s.merger.Merge(doc.FrontMatter, fetched, doc.Upcoming, doc.Past)
	events := result.Events()

	stats.Created = result.Count(domain.ChangeCreated)
	stats.Updated = result.Count(domain.ChangeUpdated)
	stats.Moved = result.Count(domain.ChangeMoved)
	stats.Unchanged = result.Count(domain.ChangeUnchanged)
	for _, e := range events {
		if e.Section == domain.SectionUpcoming {
			stats.Upcoming++
		} else {
			stats.Past++
		}
	}

	rendered := s.codec.Encode(result.FrontMatter, events)
	if s.codec.Encode(doc.FrontMatter, events) == content {
		s.logger.Info("events unchanged, updating publish date only")
	}

	sha, err := s.documents.Write(ctx, rendered, version)
	if err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	stats.CommitSHA = sha

	s.publish(ctx, result, stats)
	s.record(ctx, events, stats)

	if s.exporter != nil {
		if err := s.exporter.Export(events); err != nil {
			s.logger.Error("export failed", "error", err)
			stats.Errors++
		}
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("sync completed",
		"fetched", stats.Fetched,
		"fetch_failed", stats.FetchFailed,
		"created", stats.Created,
		"updated", stats.Updated,
		"moved", stats.Moved,
		"unchanged", stats.Unchanged,
		"upcoming", stats.Upcoming,
		"past", stats.Past,
		"published", stats.Published,
		"errors", stats.Errors,
		"commit", stats.CommitSHA,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *SyncService) publish(ctx context.Context, result merge.Result, stats *domain.SyncStats) {
	if s.publisher == nil {
		return
	}

	for i := range result.Entries {
		entry := &result.Entries[i]
		if entry.Change == domain.ChangeUnchanged {
			continue
		}
		if err := s.publisher.Publish(ctx, stats.GuildID, &entry.Event, entry.Change); err != nil {
			s.logger.Warn("publish failed", "event_id", entry.Event.ID, "error", err)
			stats.Errors++
			continue
		}
		stats.Published++
	}
}

// record archives the run. The document is already written, so failures
// here are counted and logged only.
func (s *SyncService) record(ctx context.Context, events []domain.Event, stats *domain.SyncStats) {
	if s.archive == nil {
		return
	}

	err := s.archive.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.archive.Events.UpsertBatch(txCtx, stats.GuildID, events); err != nil {
			return fmt.Errorf("upsert events: %w", err)
		}

		state, err := s.archive.SyncState.Get(txCtx, stats.GuildID)
		if err != nil {
			return fmt.Errorf("get sync state: %w", err)
		}

		state.GuildID = stats.GuildID
		state.LastSyncedAt = time.Now()
		state.LastCommitSHA = stats.CommitSHA
		state.TotalRuns++

		if err := s.archive.SyncState.Update(txCtx, state); err != nil {
			return fmt.Errorf("update sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("archive failed", "error", err)
		stats.Errors++
	}
}
