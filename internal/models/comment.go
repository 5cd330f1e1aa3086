package models

import "time"

const MaxCommentLength = 500

// Comment on an event. Upvotes and Downvotes are running totals owned by the
// vote reconciler; nothing else writes them after creation.
type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PostID    int       `gorm:"not null;index" json:"post_id"`
	Post      Post      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AuthorID  int       `gorm:"not null;index" json:"author_id"`
	User      User      `gorm:"foreignKey:AuthorID" json:"user"`
	Text      string    `gorm:"type:varchar(500);not null" json:"text"`
	Upvotes   int       `gorm:"not null;default:0;check:upvotes >= 0" json:"upvotes"`
	Downvotes int       `gorm:"not null;default:0;check:downvotes >= 0" json:"downvotes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

type UpdateCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// CommentResponse adds the viewer's own vote ("up", "down" or empty).
type CommentResponse struct {
	Comment
	MyVote string `json:"my_vote,omitempty"`
}

// CommentVote is one voter's vote on one comment. Absence of a row means no
// vote.
type CommentVote struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	CommentID int       `gorm:"not null;uniqueIndex:idx_comment_votes_comment_user;index:idx_comment_votes_comment_type,priority:1" json:"comment_id"`
	Comment   Comment   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_comment_votes_comment_user" json:"user_id"`
	VoteType  string    `gorm:"type:varchar(4);not null;index:idx_comment_votes_comment_type,priority:2;check:chk_comment_votes_type,vote_type IN ('up','down')" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
