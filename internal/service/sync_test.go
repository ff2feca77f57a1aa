package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"events_syncer/internal/domain"
	"events_syncer/internal/markdown"
	"events_syncer/internal/merge"
	"events_syncer/internal/service/mocks"
)

const storedDocument = `---
title: Events
publishDate: 2023-01-02T00:00:00Z
---

# Upcoming Events



# Past Events

## Kickoff
ID: 1
Date: Jan 01, 2023
Description:
First meetup.
Location: general
`

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	documents *mocks.MockDocumentStore
	publisher *mocks.MockPublisher
	events    *mocks.MockEventStore
	syncState *mocks.MockSyncStateStore
	txManager *mocks.MockTransactionManager
	exporter  *mocks.MockExporter

	codec  *markdown.Codec
	merger *merge.Engine
	now    time.Time
	logger *slog.Logger
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.documents = mocks.NewMockDocumentStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.events = mocks.NewMockEventStore(s.ctrl)
	s.syncState = mocks.NewMockSyncStateStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.exporter = mocks.NewMockExporter(s.ctrl)

	s.now = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	s.codec = markdown.New()
	s.merger = merge.New(time.UTC, func() time.Time { return s.now })
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().ID().Return("discord").AnyTimes()
	s.source.EXPECT().Name().Return("Discord Scheduled Events").AnyTimes()
	s.source.EXPECT().GuildID().Return("42").AnyTimes()
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) newService(publisher Publisher, archive *Archive, exporter Exporter) *SyncService {
	return NewSyncService(s.source, s.documents, s.codec, s.merger, publisher, archive, exporter, s.logger)
}

func (s *SyncServiceTestSuite) expectWrite(written *string) {
	s.documents.EXPECT().Write(gomock.Any(), gomock.Any(), "blob-1").DoAndReturn(
		func(ctx context.Context, content, version string) (string, error) {
			*written = content
			return "commit-1", nil
		},
	)
}

func (s *SyncServiceTestSuite) TestSync_FetchFailureKeepsStoredEvents() {
	ctx := context.Background()

	s.source.EXPECT().FetchEvents(ctx).Return(nil, fmt.Errorf("%w: unexpected status: 502", domain.ErrFetchFailure))
	s.documents.EXPECT().Read(ctx).Return(storedDocument, "blob-1", nil)

	var written string
	s.expectWrite(&written)

	stats, err := s.newService(nil, nil, nil).Sync(ctx)

	s.Require().NoError(err)
	s.True(stats.FetchFailed)
	s.Equal(0, stats.Fetched)
	s.Equal(1, stats.Past)
	s.Equal("commit-1", stats.CommitSHA)

	doc, err := s.codec.Decode(written)
	s.Require().NoError(err)
	s.Empty(doc.Upcoming)
	s.Require().Len(doc.Past, 1)
	s.Equal("1", doc.Past[0].ID)
	s.Contains(doc.FrontMatter, "publishDate: 2024-03-10T08:00:00Z")
}

func (s *SyncServiceTestSuite) TestSync_NewUpcomingEvent() {
	ctx := context.Background()

	fetched := []domain.Event{{
		ID:          "2",
		Name:        "Game Night",
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Bring snacks.",
		Location:    "voice-lounge",
		Section:     domain.SectionUpcoming,
	}}

	s.source.EXPECT().FetchEvents(ctx).Return(fetched, nil)
	s.documents.EXPECT().Read(ctx).Return(storedDocument, "blob-1", nil)

	var written string
	s.expectWrite(&written)

	s.publisher.EXPECT().Publish(ctx, "42", gomock.Any(), domain.ChangeCreated).DoAndReturn(
		func(ctx context.Context, guildID string, event *domain.Event, change domain.Change) error {
			s.Equal(fetched[0], *event)
			return nil
		},
	)

	stats, err := s.newService(s.publisher, nil, nil).Sync(ctx)

	s.Require().NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Created)
	s.Equal(1, stats.Unchanged)
	s.Equal(1, stats.Published)

	doc, err := s.codec.Decode(written)
	s.Require().NoError(err)
	s.Require().Len(doc.Upcoming, 1)
	s.Equal(fetched[0], doc.Upcoming[0])
	s.Require().Len(doc.Past, 1)
	s.Equal(1, strings.Count(written, "ID: 2\n"))
}

func (s *SyncServiceTestSuite) TestSync_MalformedDocumentAbortsBeforeWrite() {
	ctx := context.Background()

	s.source.EXPECT().FetchEvents(ctx).Return(nil, nil)
	s.documents.EXPECT().Read(ctx).Return("---\ntitle: x\n---\n\n# Upcoming Events\n\n", "blob-1", nil)

	stats, err := s.newService(s.publisher, nil, s.exporter).Sync(ctx)

	s.Error(err)
	s.Nil(stats)
	s.True(errors.Is(err, domain.ErrMalformedDocument))
	s.Contains(err.Error(), "decode document")
}

func (s *SyncServiceTestSuite) TestSync_DocumentNotFound() {
	ctx := context.Background()

	s.source.EXPECT().FetchEvents(ctx).Return(nil, nil)
	s.documents.EXPECT().Read(ctx).Return("", "", domain.ErrDocumentNotFound)

	_, err := s.newService(nil, nil, nil).Sync(ctx)

	s.ErrorIs(err, domain.ErrDocumentNotFound)
}

func (s *SyncServiceTestSuite) TestSync_WriteConflictSkipsSideEffects() {
	ctx := context.Background()

	s.source.EXPECT().FetchEvents(ctx).Return(nil, nil)
	s.documents.EXPECT().Read(ctx).Return(storedDocument, "blob-1", nil)
	s.documents.EXPECT().Write(ctx, gomock.Any(), "blob-1").Return("", domain.ErrWriteConflict)

	archive := &Archive{Events: s.events, SyncState: s.syncState, TxManager: s.txManager}
	_, err := s.newService(s.publisher, archive, s.exporter).Sync(ctx)

	s.ErrorIs(err, domain.ErrWriteConflict)
	s.Contains(err.Error(), "write document")
}

func (s *SyncServiceTestSuite) TestSync_PublishesOnlyChanges() {
	ctx := context.Background()

	doc := strings.Replace(storedDocument, "# Upcoming Events\n\n", `# Upcoming Events

## Yesterday
ID: 3
Date: Mar 09, 2024
Description:
d
Location: l
`, 1)

	s.source.EXPECT().FetchEvents(ctx).Return(nil, nil)
	s.documents.EXPECT().Read(ctx).Return(doc, "blob-1", nil)

	var written string
	s.expectWrite(&written)

	s.publisher.EXPECT().Publish(ctx, "42", gomock.Any(), domain.ChangeMoved).Return(errors.New("channel closed"))

	stats, err := s.newService(s.publisher, nil, nil).Sync(ctx)

	s.Require().NoError(err)
	s.Equal(1, stats.Moved)
	s.Equal(0, stats.Published)
	s.Equal(1, stats.Errors)
	s.Equal(2, stats.Past)
}

func (s *SyncServiceTestSuite) TestSync_ArchivesAndExports() {
	ctx := context.Background()

	s.source.EXPECT().FetchEvents(ctx).Return(nil, nil)
	s.documents.EXPECT().Read(ctx).Return(storedDocument, "blob-1", nil)

	var written string
	s.expectWrite(&written)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.events.EXPECT().UpsertBatch(ctx, "42", gomock.Len(1)).Return(nil)
	s.syncState.EXPECT().Get(ctx, "42").Return(&domain.SyncState{GuildID: "42", TotalRuns: 4}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, state *domain.SyncState) error {
			s.Equal(int64(5), state.TotalRuns)
			s.Equal("commit-1", state.LastCommitSHA)
			return nil
		},
	)
	s.exporter.EXPECT().Export(gomock.Len(1)).Return(nil)

	archive := &Archive{Events: s.events, SyncState: s.syncState, TxManager: s.txManager}
	stats, err := s.newService(nil, archive, s.exporter).Sync(ctx)

	s.Require().NoError(err)
	s.Equal(0, stats.Errors)
}

func (s *SyncServiceTestSuite) TestSync_ArchiveFailureIsNotFatal() {
	ctx := context.Background()

	s.source.EXPECT().FetchEvents(ctx).Return(nil, nil)
	s.documents.EXPECT().Read(ctx).Return(storedDocument, "blob-1", nil)

	var written string
	s.expectWrite(&written)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.events.EXPECT().UpsertBatch(ctx, "42", gomock.Any()).Return(errors.New("connection refused"))

	archive := &Archive{Events: s.events, SyncState: s.syncState, TxManager: s.txManager}
	stats, err := s.newService(nil, archive, nil).Sync(ctx)

	s.Require().NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal("commit-1", stats.CommitSHA)
}

func (s *SyncServiceTestSuite) TestSync_UnchangedEventsUpdatePublishDateOnly() {
	ctx := context.Background()

	s.source.EXPECT().FetchEvents(ctx).Return([]domain.Event{{
		ID:          "1",
		Name:        "Kickoff",
		Date:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "First meetup.",
		Location:    "general",
		Section:     domain.SectionPast,
	}}, nil)
	s.documents.EXPECT().Read(ctx).Return(storedDocument, "blob-1", nil)

	var written string
	s.expectWrite(&written)

	var logs bytes.Buffer
	svc := NewSyncService(s.source, s.documents, s.codec, s.merger, nil, nil, nil, slog.New(slog.NewJSONHandler(&logs, nil)))

	stats, err := svc.Sync(ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.Unchanged)
	s.Equal(0, stats.Created+stats.Updated+stats.Moved)

	s.Contains(logs.String(), "updating publish date only")
	s.Equal(strings.Replace(storedDocument, "publishDate: 2023-01-02T00:00:00Z", "publishDate: 2024-03-10T08:00:00Z", 1), written)
}
