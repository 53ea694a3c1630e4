// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const (
	MaxUserNameLen = 36
	MaxRoomNameLen = 64
)

var (
	ErrNameTooLong = errors.New("name too long")
	ErrNameEmpty   = errors.New("name empty")
)

// UserName is the display identifier of a participant. It is unique
// across the process while its session is registered.
type UserName string

// NewUserName is a tiny helper to avoid ad-hoc conversions in adapters.
func NewUserName(raw string) (UserName, error) {
	if err := checkName(raw, MaxUserNameLen); err != nil {
		return "", err
	}
	return UserName(raw), nil
}

func checkName(raw string, limit int) error {
	if len(raw) == 0 {
		return ErrNameEmpty
	}
	if len(raw) > limit {
		return ErrNameTooLong
	}
	return nil
}
