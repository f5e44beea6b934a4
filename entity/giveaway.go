package entity

import "time"

type GiveawayStatus string

const (
	StatusActive    GiveawayStatus = "active"
	StatusCompleted GiveawayStatus = "completed"
)

// Giveaway is one entry-collection-and-draw unit. Id is the Telegram
// message id of the announcement, assigned by the platform when the
// giveaway is posted. Status moves active -> completed exactly once.
type Giveaway struct {
	Id        int64          `json:"message_id"`
	ChatId    int64          `json:"chat_id"`
	Title     string         `json:"title"`
	Gift      string         `json:"gift"`
	Place     string         `json:"place"`
	Info      string         `json:"info"`
	Duration  int            `json:"duration"` // minutes; 0 = unlimited
	CreatedAt time.Time      `json:"created_at"`
	EndTime   *time.Time     `json:"end_time,omitempty"` // nil iff Duration == 0
	Status    GiveawayStatus `json:"status"`
}

func (g *Giveaway) Unlimited() bool {
	return g.Duration == 0
}

// Remaining reports time left until EndTime; zero for unlimited or
// already overdue giveaways.
func (g *Giveaway) Remaining(now time.Time) time.Duration {
	if g.EndTime == nil {
		return 0
	}
	d := g.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Overdue reports whether a time-bounded giveaway should already have
// been terminated.
func (g *Giveaway) Overdue(now time.Time) bool {
	return g.EndTime != nil && !now.Before(*g.EndTime)
}
