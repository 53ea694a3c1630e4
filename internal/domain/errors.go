package domain

import "errors"

var (
	ErrDuplicateName = errors.New("name already in use")
	ErrPeerNotFound  = errors.New("peer not found")
	ErrRoomNotFound  = errors.New("room not found")
)
