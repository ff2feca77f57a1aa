package domain

import "time"

type Section string

const (
	SectionUpcoming Section = "upcoming"
	SectionPast     Section = "past"
)

// Change describes what a sync run did to an event.
type Change string

const (
	ChangeCreated   Change = "created"
	ChangeUpdated   Change = "updated"
	ChangeMoved     Change = "moved"
	ChangeUnchanged Change = "unchanged"
)

// Event is one scheduled occurrence as stored in the events document.
type Event struct {
	ID          string
	Name        string
	Date        time.Time // midnight UTC of the calendar date
	Description string
	Location    string
	Section     Section
}

// Date truncates t to its calendar date in t's own location and returns it
// as midnight UTC, so dates compare equal regardless of origin zone.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SectionFor classifies a date against today. Both are calendar dates.
func SectionFor(date, today time.Time) Section {
	if !Date(date).Before(Date(today)) {
		return SectionUpcoming
	}
	return SectionPast
}

// Document is the decoded form of the events markdown file.
type Document struct {
	FrontMatter string
	Upcoming    []Event
	Past        []Event
}
