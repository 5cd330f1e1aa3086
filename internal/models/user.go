package models

import "time"

// User never serializes its email; only the owner sees it, through Account.
type User struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(50);unique;not null" json:"username"`
	Email    string `gorm:"type:varchar(100);unique;not null" json:"-"`
	Password string `gorm:"not null" json:"-"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`

	// E.164, used for SMS notifications when set
	Phone string `gorm:"type:varchar(20)" json:"-"`

	AuthProvider string `gorm:"type:varchar(20);default:email" json:"auth_provider"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Avatar   string `json:"avatar"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Bio    *string `json:"bio" binding:"omitempty,max=500"`
	Avatar *string `json:"avatar"`
	Phone  *string `json:"phone" binding:"omitempty,e164"`
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  Account `json:"user"`
}

// Account is a user as seen by themselves.
type Account struct {
	User
	Email string `json:"email"`
}

func (u User) Account() Account {
	return Account{User: u, Email: u.Email}
}

// UserSummary is the public projection used in follower and member lists.
type UserSummary struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
