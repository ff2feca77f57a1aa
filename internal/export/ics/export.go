// Package ics writes the merged events as an iCalendar feed of all-day
// events.
package ics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"

	"events_syncer/internal/domain"
)

const productID = "-//events_syncer//Community Events//EN"

type Exporter struct {
	path    string
	calName string
	now     func() time.Time
}

func New(path, calName string) *Exporter {
	return &Exporter{path: path, calName: calName, now: time.Now}
}

// Render serializes events. UIDs are stable across runs so calendar clients
// update entries in place.
func (e *Exporter) Render(events []domain.Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if e.calName != "" {
		cal.SetXWRCalName(e.calName)
	}

	stamp := e.now().UTC()
	for _, ev := range events {
		vevent := cal.AddEvent(ev.ID + "@events_syncer")
		vevent.SetDtStampTime(stamp)
		vevent.SetAllDayStartAt(ev.Date)
		vevent.SetAllDayEndAt(ev.Date.AddDate(0, 0, 1))
		vevent.SetSummary(ev.Name)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		vevent.SetLocation(ev.Location)
	}

	return cal.Serialize()
}

// Export writes the feed to the configured path, replacing it atomically.
func (e *Exporter) Export(events []domain.Event) error {
	dir := filepath.Dir(e.path)
	tmp, err := os.CreateTemp(dir, ".events-*.ics")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(e.Render(events)); err != nil {
		tmp.Close()
		return fmt.Errorf("write calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close calendar: %w", err)
	}

	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return fmt.Errorf("replace calendar: %w", err)
	}
	return nil
}
