package discord

// StatusScheduled is the API status of an event that has not started,
// been cancelled or completed.
const StatusScheduled = 1

// ScheduledEvent is one entry of GET /guilds/{guild_id}/scheduled-events.
type ScheduledEvent struct {
	ID                 string  `json:"id"`
	GuildID            string  `json:"guild_id"`
	ChannelID          *string `json:"channel_id"`
	Name               string  `json:"name"`
	Description        *string `json:"description"`
	ScheduledStartTime string  `json:"scheduled_start_time"`
	Status             int     `json:"status"`
}

// Channel is the subset of GET /channels/{channel_id} we read.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
