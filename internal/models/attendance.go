package models

import "time"

const (
	AttendanceGoing      = "going"
	AttendanceInterested = "interested"
)

// Attendance is a user's RSVP to an event.
type Attendance struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PostID    int       `gorm:"not null;uniqueIndex:idx_attendances_post_user" json:"post_id"`
	Post      Post      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_attendances_post_user;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Status    string    `gorm:"type:varchar(16);not null;default:going" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AttendRequest struct {
	Status string `json:"status" binding:"omitempty,oneof=going interested"`
}
