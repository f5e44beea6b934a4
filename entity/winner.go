package entity

import "time"

// WinnerRecord is one line of the append-only winner history, capped at
// the most recent 100 entries.
type WinnerRecord struct {
	UserId        int64     `json:"user_id"`
	GiveawayTitle string    `json:"giveaway_title"`
	WonAt         time.Time `json:"won_at"`
}

// CompletedGiveaway is an archive entry: the final giveaway snapshot with
// its participant list. The archive keeps the most recent 50 entries.
type CompletedGiveaway struct {
	Giveaway
	Participants []Participant `json:"participants"`
	CompletedAt  time.Time     `json:"completed_at"`
}
