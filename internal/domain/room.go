package domain

type RoomName string

func NewRoomName(raw string) (RoomName, error) {
	if err := checkName(raw, MaxRoomNameLen); err != nil {
		return "", err
	}
	return RoomName(raw), nil
}
