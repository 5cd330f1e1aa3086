package models

import "time"

const (
	GroupRoleOwner  = "owner"
	GroupRoleMember = "member"
)

type Group struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);unique;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerID     int       `gorm:"not null;index" json:"owner_id"`
	Owner       User      `gorm:"foreignKey:OwnerID" json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type GroupMember struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	GroupID   int       `gorm:"not null;uniqueIndex:idx_group_members_pair" json:"group_id"`
	Group     Group     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_group_members_pair;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Role      string    `gorm:"type:varchar(10);not null;default:member" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description"`
}

type GroupResponse struct {
	Group
	MemberCount int64 `json:"member_count"`
}
