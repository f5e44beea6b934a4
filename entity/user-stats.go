package entity

import "time"

const (
	PointsPerJoin = 10
	PointsPerWin  = 100
)

// UserStats is the per-user aggregate, created lazily on first
// participation and never deleted. Name holds the last seen display name.
type UserStats struct {
	Name                string    `json:"name"`
	TotalParticipations int       `json:"total_participations"`
	TotalWins           int       `json:"total_wins"`
	FirstJoin           time.Time `json:"first_join"`
	LastActivity        time.Time `json:"last_activity"`
}

func (s *UserStats) Points() int {
	return s.TotalParticipations*PointsPerJoin + s.TotalWins*PointsPerWin
}

// WinRate returns wins as a percentage of participations.
func (s *UserStats) WinRate() float64 {
	if s.TotalParticipations == 0 {
		return 0
	}
	return float64(s.TotalWins) / float64(s.TotalParticipations) * 100
}
