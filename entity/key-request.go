package entity

import (
	"net/http"

	"giveabot/lib/validate"
)

// KeyRequest is the body of the key admin endpoints.
type KeyRequest struct {
	UserId   int64  `json:"user_id" validate:"required"`
	UserName string `json:"user_name" validate:"max=128"`
}

func (k *KeyRequest) Bind(_ *http.Request) error {
	return validate.Struct(k)
}
