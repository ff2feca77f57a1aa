package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"events_syncer/internal/domain"
)

func TestNewEventMessage(t *testing.T) {
	event := &domain.Event{
		ID:          "7",
		Name:        "Workshop",
		Date:        time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		Description: "Intro to Go.",
		Location:    "No location",
		Section:     domain.SectionUpcoming,
	}

	msg := NewEventMessage("42", event, domain.ChangeUpdated)

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "updated", decoded["action"])
	assert.Equal(t, "42", decoded["guild_id"])

	payload, ok := decoded["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "7", payload["id"])
	assert.Equal(t, "2024-04-02", payload["date"])
	assert.Equal(t, "No location", payload["location"])
	assert.Equal(t, "upcoming", payload["section"])
}
