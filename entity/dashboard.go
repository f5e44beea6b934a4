package entity

import "time"

// View types returned by the dashboard API.

type GiveawayView struct {
	Id           int64      `json:"message_id"`
	Title        string     `json:"title"`
	Gift         string     `json:"gift"`
	Duration     int        `json:"duration"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Participants int        `json:"participants"`
	RemainingSec int64      `json:"remaining_sec"`
	Unlimited    bool       `json:"unlimited"`
}

type DashboardData struct {
	ActiveGiveaways   []GiveawayView `json:"active_giveaways"`
	TotalParticipants int            `json:"total_participants"`
}

type AnalyticsView struct {
	TotalUsers          int       `json:"total_users"`
	TotalParticipations int       `json:"total_participations"`
	TotalWins           int       `json:"total_wins"`
	ActiveGiveaways     int       `json:"active_giveaways"`
	CompletedGiveaways  int       `json:"completed_giveaways"`
	ActiveKeys          int       `json:"active_keys"`
	UptimeStart         time.Time `json:"uptime_start"`
}

type PlayerView struct {
	Name           string `json:"name"`
	Points         int    `json:"points"`
	Wins           int    `json:"wins"`
	Participations int    `json:"participations"`
}

type StatusView struct {
	BotRunning      bool  `json:"bot_running"`
	UptimeSec       int64 `json:"uptime_sec"`
	ActiveGiveaways int   `json:"active_giveaways"`
}

type KeyView struct {
	UserId    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"is_active"`
}

// IssuedKey is the /keysystem/generate response; the session id ties the
// call to audit logs.
type IssuedKey struct {
	SessionId string    `json:"session_id"`
	UserId    int64     `json:"user_id"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}
