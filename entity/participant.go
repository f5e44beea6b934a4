package entity

import "time"

// Participant is one user's entry in a giveaway. The owning giveaway id
// is the map key in the snapshot, not a field. (giveaway, user) is unique.
type Participant struct {
	UserId   int64     `json:"user_id"`
	UserName string    `json:"user_name"`
	JoinedAt time.Time `json:"joined_at"`
}
