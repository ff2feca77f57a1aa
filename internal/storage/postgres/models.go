package postgres

import (
	"time"

	"events_syncer/internal/domain"
)

type eventRow struct {
	EventID     string    `db:"event_id"`
	Name        string    `db:"name"`
	EventDate   time.Time `db:"event_date"`
	Description string    `db:"description"`
	Location    string    `db:"location"`
	Section     string    `db:"section"`
}

func (r eventRow) toDomain() domain.Event {
	return domain.Event{
		ID:          r.EventID,
		Name:        r.Name,
		Date:        domain.Date(r.EventDate),
		Description: r.Description,
		Location:    r.Location,
		Section:     domain.Section(r.Section),
	}
}
