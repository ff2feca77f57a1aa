package ics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"events_syncer/internal/domain"
)

func sampleEvents() []domain.Event {
	return []domain.Event{
		{ID: "100", Name: "Game Night", Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Description: "Bring snacks", Location: "voice-lounge", Section: domain.SectionUpcoming},
		{ID: "1", Name: "Kickoff", Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Location: "general", Section: domain.SectionPast},
	}
}

func TestRender(t *testing.T) {
	exporter := New("", "Community Events")
	exporter.now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }

	out := exporter.Render(sampleEvents())

	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240315")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240316")

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "100@events_syncer", events[0].Id())
	assert.Equal(t, "Game Night", events[0].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "voice-lounge", events[0].GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Nil(t, events[1].GetProperty(ical.ComponentPropertyDescription))
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ics")

	require.NoError(t, New(path, "").Export(sampleEvents()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")
	assert.Equal(t, 2, strings.Count(string(data), "BEGIN:VEVENT"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
