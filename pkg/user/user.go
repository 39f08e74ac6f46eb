package user

import (
	"time"
)

type User struct {
	ID             int64
	Username       string
	Password       []byte
	DisplayName    string
	About          string
	FollowerCount  int64
	ProfilePicture string
	Created        time.Time
	Updated        time.Time
}
