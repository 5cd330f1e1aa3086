package models

import "time"

// Post is a campus event. The table keeps the name "posts".
type Post struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	AuthorID int    `gorm:"not null;index" json:"author_id"`
	User     User   `gorm:"foreignKey:AuthorID" json:"user"`
	GroupID  *int   `gorm:"index" json:"group_id,omitempty"`
	Group    *Group `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	Title    string     `gorm:"type:varchar(200);not null" json:"title"`
	Body     string     `gorm:"type:text" json:"body"`
	Location string     `gorm:"type:varchar(200)" json:"location"`
	ImageURL string     `json:"image_url"`
	StartsAt time.Time  `gorm:"not null;index" json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Capacity int        `gorm:"not null;default:0;check:capacity >= 0" json:"capacity"` // 0 = unlimited

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateEventRequest struct {
	Title    string     `json:"title" binding:"required,max=200"`
	Body     string     `json:"body"`
	Location string     `json:"location" binding:"max=200"`
	StartsAt time.Time  `json:"starts_at" binding:"required"`
	EndsAt   *time.Time `json:"ends_at"`
	Capacity int        `json:"capacity" binding:"min=0"`
	GroupID  *int       `json:"group_id"`
}

type UpdateEventRequest struct {
	Title    *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Body     *string    `json:"body"`
	Location *string    `json:"location" binding:"omitempty,max=200"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Capacity *int       `json:"capacity" binding:"omitempty,min=0"`
}

// EventResponse is an event plus derived fields.
type EventResponse struct {
	Post
	AttendeeCount int    `json:"attendee_count"`
	MyStatus      string `json:"my_status,omitempty"`
}
