package session

import "time"

// Session is the server-side session record. The ID doubles as the opaque
// bearer token held by the client; no authorization state ever leaves the
// server. Version backs the optimistic check that serializes state
// transitions per session.
type Session struct {
	ID                 string    `gorm:"primaryKey;column:id"`
	OriginalUserID     int64     `gorm:"column:original_user_id;not null;index"`
	ImpersonatedUserID *int64    `gorm:"column:impersonated_user_id"`
	Version            int64     `gorm:"column:version;default:1"`
	CreatedAt          time.Time `gorm:"column:created_at;default:now()"`
	ExpiresAt          time.Time `gorm:"column:expires_at;not null;index"`
}

func (Session) TableName() string {
	return "sessions"
}
