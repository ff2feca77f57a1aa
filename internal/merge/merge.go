package merge

import (
	"regexp"
	"time"

	"events_syncer/internal/domain"
)

// PublishDateLayout is the front matter publishDate format.
const PublishDateLayout = "2006-01-02T15:04:05Z"

var publishDatePattern = regexp.MustCompile(`(?m)^publishDate:.*$`)

// Entry is a merged event and how it differs from the stored document.
type Entry struct {
	Event  domain.Event
	Change domain.Change
}

type Result struct {
	FrontMatter string
	Entries     []Entry
}

// Events returns the merged events in document order.
func (r Result) Events() []domain.Event {
	events := make([]domain.Event, len(r.Entries))
	for i, e := range r.Entries {
		events[i] = e.Event
	}
	return events
}

// Count returns how many entries carry change.
func (r Result) Count(change domain.Change) int {
	n := 0
	for _, e := range r.Entries {
		if e.Change == change {
			n++
		}
	}
	return n
}

type Engine struct {
	location *time.Location
	now      func() time.Time
}

// New returns an engine that decides "today" in location.
func New(location *time.Location, now func() time.Time) *Engine {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{location: location, now: now}
}

// Merge combines stored and fetched events keyed by ID. A fetched event
// replaces the stored one entirely. Stored events keep their position;
// fetched-only events are appended in fetch order. Every section is
// recomputed from the date, and publishDate is set to now.
func (e *Engine) Merge(frontMatter string, fetched, upcoming, past []domain.Event) Result {
	now := e.now()
	today := domain.Date(now.In(e.location))

	var order []string
	merged := make(map[string]domain.Event)
	stored := make(map[string]domain.Event)
	refreshed := make(map[string]bool)

	put := func(ev domain.Event) {
		if _, ok := merged[ev.ID]; !ok {
			order = append(order, ev.ID)
		}
		merged[ev.ID] = ev
	}

	for _, list := range [][]domain.Event{upcoming, past} {
		for _, ev := range list {
			stored[ev.ID] = ev
			ev.Section = domain.SectionFor(ev.Date, today)
			put(ev)
		}
	}

	for _, ev := range fetched {
		refreshed[ev.ID] = true
		put(ev)
	}

	entries := make([]Entry, 0, len(order))
	for _, id := range order {
		ev := merged[id]
		ev.Section = domain.SectionFor(ev.Date, today)

		change := domain.ChangeUnchanged
		prev, wasStored := stored[id]
		switch {
		case !wasStored:
			change = domain.ChangeCreated
		case refreshed[id] && !sameContent(prev, ev):
			change = domain.ChangeUpdated
		case prev.Section != ev.Section:
			change = domain.ChangeMoved
		}

		entries = append(entries, Entry{Event: ev, Change: change})
	}

	return Result{
		FrontMatter: StampPublishDate(frontMatter, now),
		Entries:     entries,
	}
}

// StampPublishDate rewrites the publishDate line of frontMatter to t in UTC,
// appending the line when it is missing.
func StampPublishDate(frontMatter string, t time.Time) string {
	line := "publishDate: " + t.UTC().Format(PublishDateLayout)
	if publishDatePattern.MatchString(frontMatter) {
		return publishDatePattern.ReplaceAllLiteralString(frontMatter, line)
	}
	if frontMatter != "" && frontMatter[len(frontMatter)-1] != '\n' {
		frontMatter += "\n"
	}
	return frontMatter + line + "\n"
}

func sameContent(a, b domain.Event) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Date.Equal(b.Date) &&
		a.Description == b.Description &&
		a.Location == b.Location
}
