package models

import "time"

const (
	NotificationAttendance = "attendance"
	NotificationComment    = "comment"
	NotificationFollow     = "follow"
	NotificationGroupJoin  = "group_join"
)

// Notification is addressed to UserID about something ActorID did.
type Notification struct {
	ID        int        `gorm:"primaryKey" json:"id"`
	UserID    int        `gorm:"not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	ActorID   int        `gorm:"not null" json:"actor_id"`
	Actor     User       `gorm:"foreignKey:ActorID;constraint:OnDelete:CASCADE" json:"actor"`
	Kind      string     `gorm:"type:varchar(20);not null" json:"kind"`
	PostID    *int       `json:"post_id,omitempty"`
	CommentID *int       `json:"comment_id,omitempty"`
	GroupID   *int       `json:"group_id,omitempty"`
	Message   string     `gorm:"type:varchar(300);not null" json:"message"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index:idx_notifications_user_created,priority:2" json:"created_at"`
}
