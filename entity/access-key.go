package entity

import "time"

// AccessKey gates giveaway-creation and related commands. At most one key
// exists per user id; issuing a new one replaces the old. The token is an
// opaque random string, not a security boundary: presenting it transfers
// ownership (see keys.Manager.Redeem).
type AccessKey struct {
	Key         string    `json:"key"`
	UserName    string    `json:"user_name"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"is_active"`
}

func (k *AccessKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

func (k *AccessKey) Valid(now time.Time) bool {
	return k.Active && !k.Expired(now)
}
