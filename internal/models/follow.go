package models

import "time"

type Follow struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	FollowerID  int       `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FollowingID int       `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"following_id"`
	Follower    User      `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"follower"`
	Following   User      `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE" json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}
