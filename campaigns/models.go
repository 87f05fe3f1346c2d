package campaigns

import (
	"fmt"
	"time"

	"github.com/volatiletech/null"
)

// Status is the lifecycle state of a campaign.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDeleted   Status = "deleted"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled, StatusDeleted:
		return true
	}
	return false
}

var statusTransitions = map[Status][]Status{
	StatusActive:    {StatusCompleted, StatusCancelled, StatusDeleted},
	StatusCancelled: {StatusActive, StatusDeleted},
	StatusCompleted: {StatusDeleted},
}

// CanTransitionTo reports whether the lifecycle state machine allows moving
// from s to next. Deleted is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Campaign pairs a Discord message + emoji with a future reminder time.
// Channel, message and emoji are stored exactly as Discord reports them;
// custom emoji use the "name:id" form. All timestamps are UTC.
type Campaign struct {
	ID        int64       `json:"id"`
	Title     null.String `json:"title"`
	ChannelID string      `json:"channel_id"`
	MessageID string      `json:"message_id"`
	Emoji     string      `json:"emoji"`
	RemindAt  time.Time   `json:"remind_at"`
	CreatedAt time.Time   `json:"created_at"`
	Status    Status      `json:"status"`
}

// DisplayTitle returns the title, or a stable fallback when none was set.
func (c *Campaign) DisplayTitle() string {
	if c.Title.Valid && c.Title.String != "" {
		return c.Title.String
	}
	return fmt.Sprintf("Campaign %d", c.ID)
}

// OptIn records one user's reaction to a campaign's tracked emoji. Inserted
// once per (campaign, user); the username is a best-effort display string
// captured at first tally and never refreshed.
type OptIn struct {
	ID         int64     `json:"id"`
	CampaignID int64     `json:"campaign_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	TalliedAt  time.Time `json:"tallied_at"`
}

// ReminderLog is the audit row for one broadcast attempt, written exactly
// once per send invocation whether it succeeded or not.
type ReminderLog struct {
	ID             int64       `json:"id"`
	CampaignID     int64       `json:"campaign_id"`
	SentAt         time.Time   `json:"sent_at"`
	RecipientCount int         `json:"recipient_count"`
	MessageChunks  int         `json:"message_chunks"`
	Success        bool        `json:"success"`
	ErrorMessage   null.String `json:"error_message"`
}
