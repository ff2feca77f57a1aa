package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"events_syncer/internal/domain"
)

const (
	SourceID   = "discord"
	SourceName = "Discord Scheduled Events"

	UnknownChannel = "Unknown Channel"
	NoLocation     = "No location"
)

// Start times without an offset are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Config holds Discord source configuration.
type Config struct {
	BaseURL  string
	BotToken string
	GuildID  string
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
}

// Source reads a guild's scheduled events from the Discord REST API.
type Source struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	guildID    string
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

// New creates a new Discord source.
func New(cfg Config, logger *slog.Logger) *Source {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		botToken: cfg.BotToken,
		guildID:  cfg.GuildID,
		location: loc,
		now:      now,
		logger:   logger.With("source", SourceID, "guild_id", cfg.GuildID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// GuildID returns the guild whose events are fetched.
func (s *Source) GuildID() string {
	return s.guildID
}

// FetchEvents returns the guild's scheduled events. Channel lookup failures
// degrade to UnknownChannel; only a failed events request is an error, and it
// wraps domain.ErrFetchFailure.
func (s *Source) FetchEvents(ctx context.Context) ([]domain.Event, error) {
	url := fmt.Sprintf("%s/guilds/%s/scheduled-events", s.baseURL, s.guildID)

	var raw []ScheduledEvent
	if err := s.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetchFailure, err)
	}

	s.logger.Debug("fetched scheduled events", "count", len(raw))

	return s.transform(ctx, raw), nil
}

func (s *Source) transform(ctx context.Context, raw []ScheduledEvent) []domain.Event {
	today := domain.Date(s.now().In(s.location))
	channels := make(map[string]string)
	events := make([]domain.Event, 0, len(raw))

	for _, e := range raw {
		if e.Status != StatusScheduled {
			s.logger.Debug("skipping event", "event_id", e.ID, "status", e.Status)
			continue
		}

		start, err := parseStartTime(e.ScheduledStartTime)
		if err != nil {
			s.logger.Warn("failed to parse start time",
				"event_id", e.ID,
				"scheduled_start_time", e.ScheduledStartTime,
				"error", err,
			)
			continue
		}
		date := domain.Date(start.In(s.location))

		location := NoLocation
		if e.ChannelID != nil && *e.ChannelID != "" {
			name, ok := channels[*e.ChannelID]
			if !ok {
				name = s.channelName(ctx, *e.ChannelID)
				channels[*e.ChannelID] = name
			}
			location = name
		}

		var description string
		if e.Description != nil {
			description = strings.TrimSpace(*e.Description)
		}

		events = append(events, domain.Event{
			ID:          e.ID,
			Name:        strings.TrimSpace(e.Name),
			Date:        date,
			Description: description,
			Location:    location,
			Section:     domain.SectionFor(date, today),
		})
	}

	return events
}

func (s *Source) channelName(ctx context.Context, channelID string) string {
	var ch Channel
	url := fmt.Sprintf("%s/channels/%s", s.baseURL, channelID)
	if err := s.getJSON(ctx, url, &ch); err != nil {
		s.logger.Error("failed to fetch channel name", "channel_id", channelID, "error", err)
		return UnknownChannel
	}
	if ch.Name == "" {
		return UnknownChannel
	}
	return ch.Name
}

func (s *Source) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+s.botToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "EventsSyncer/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func parseStartTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
