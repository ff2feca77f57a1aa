package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"events_syncer/internal/domain"
	"events_syncer/internal/merge"
)

type Source interface {
	ID() string
	Name() string
	GuildID() string
	FetchEvents(ctx context.Context) ([]domain.Event, error)
}

type DocumentStore interface {
	Read(ctx context.Context) (content string, version string, err error)
	Write(ctx context.Context, content, version string) (commitSHA string, err error)
}

type Codec interface {
	Decode(text string) (domain.Document, error)
	Encode(frontMatter string, events []domain.Event) string
}

type Merger interface {
	Merge(frontMatter string, fetched, upcoming, past []domain.Event) merge.Result
}

type Publisher interface {
	Publish(ctx context.Context, guildID string, event *domain.Event, change domain.Change) error
	Close() error
}

type EventStore interface {
	UpsertBatch(ctx context.Context, guildID string, events []domain.Event) error
}

type SyncStateStore interface {
	Get(ctx context.Context, guildID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Exporter interface {
	Export(events []domain.Event) error
}
