package votes

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/campus-events/backend/internal/models"
)

// GormStore keeps votes in comment_votes and totals on the comments row. Each
// unit of work is a transaction holding SELECT ... FOR UPDATE on the comment.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WithinCommentLock(ctx context.Context, commentID int, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var comment models.Comment
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", commentID).
			Take(&comment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		if err != nil {
			return fmt.Errorf("lock comment: %w", err)
		}

		return fn(&gormTx{db: db, commentID: commentID})
	})
}

type gormTx struct {
	db        *gorm.DB
	commentID int
}

func (t *gormTx) votes(userID int) *gorm.DB {
	return t.db.Model(&models.CommentVote{}).
		Where("comment_id = ? AND user_id = ?", t.commentID, userID)
}

func (t *gormTx) ExistingVote(userID int) (State, error) {
	var vote models.CommentVote
	err := t.votes(userID).Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return None, nil
	}
	if err != nil {
		return "", err
	}
	return State(vote.VoteType), nil
}

func (t *gormTx) InsertVote(userID int, s State) error {
	return t.db.Omit(clause.Associations).Create(&models.CommentVote{
		CommentID: t.commentID,
		UserID:    userID,
		VoteType:  string(s),
	}).Error
}

func (t *gormTx) UpdateVote(userID int, s State) error {
	result := t.votes(userID).Update("vote_type", string(s))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("expected one vote row, updated %d", result.RowsAffected)
	}
	return nil
}

func (t *gormTx) DeleteVote(userID int) error {
	return t.db.
		Where("comment_id = ? AND user_id = ?", t.commentID, userID).
		Delete(&models.CommentVote{}).Error
}

func (t *gormTx) Increment(field Field, by int) error {
	column, err := counterColumn(field)
	if err != nil {
		return err
	}
	return t.db.Model(&models.Comment{}).
		Where("id = ?", t.commentID).
		UpdateColumn(column, gorm.Expr(fmt.Sprintf("GREATEST(%s + ?, 0)", column), by)).Error
}

func (t *gormTx) Read() (Counts, error) {
	var counts Counts
	err := t.db.Model(&models.Comment{}).
		Select("upvotes, downvotes").
		Where("id = ?", t.commentID).
		Scan(&counts).Error
	return counts, err
}

func (t *gormTx) CountVotes() (Counts, error) {
	var counts Counts
	err := t.db.Model(&models.CommentVote{}).
		Select(`COUNT(*) FILTER (WHERE vote_type = 'up') AS upvotes,
			COUNT(*) FILTER (WHERE vote_type = 'down') AS downvotes`).
		Where("comment_id = ?", t.commentID).
		Scan(&counts).Error
	return counts, err
}

func (t *gormTx) SetCounters(c Counts) error {
	return t.db.Model(&models.Comment{}).
		Where("id = ?", t.commentID).
		UpdateColumns(map[string]interface{}{
			"upvotes":   c.Upvotes,
			"downvotes": c.Downvotes,
		}).Error
}

func counterColumn(field Field) (string, error) {
	switch field {
	case FieldUpvotes, FieldDownvotes:
		return string(field), nil
	default:
		return "", fmt.Errorf("%w: counter field %q", ErrInvalidArgument, field)
	}
}
