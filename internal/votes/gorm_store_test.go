package votes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/testutil"
)

func seedComment(t *testing.T, db *gorm.DB, voters int) (models.Comment, []int) {
	t.Helper()

	author := models.User{Username: "author", Email: "author@campus.edu", Password: "x"}
	require.NoError(t, db.Create(&author).Error)

	event := models.Post{AuthorID: author.ID, Title: "Robotics night", StartsAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(&event).Error)

	comment := models.Comment{PostID: event.ID, AuthorID: author.ID, Text: "count me in"}
	require.NoError(t, db.Create(&comment).Error)

	ids := make([]int, voters)
	for i := range ids {
		u := models.User{
			Username: fmt.Sprintf("voter%d", i),
			Email:    fmt.Sprintf("voter%d@campus.edu", i),
			Password: "x",
		}
		require.NoError(t, db.Create(&u).Error)
		ids[i] = u.ID
	}
	return comment, ids
}

func storedVotes(t *testing.T, db *gorm.DB, commentID int) []models.CommentVote {
	t.Helper()
	var rows []models.CommentVote
	require.NoError(t, db.Where("comment_id = ?", commentID).Order("user_id").Find(&rows).Error)
	return rows
}

func storedCounts(t *testing.T, db *gorm.DB, commentID int) Counts {
	t.Helper()
	var c models.Comment
	require.NoError(t, db.First(&c, commentID).Error)
	return Counts{Upvotes: c.Upvotes, Downvotes: c.Downvotes}
}

func TestGormStore_Scenarios(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()
	comment, ids := seedComment(t, db, 2)
	a, b := ids[0], ids[1]
	r := NewReconciler(NewGormStore(db), WithSelfHeal(true))

	got, err := r.Reconcile(ctx, comment.ID, a, Up)
	require.NoError(t, err)
	assert.Equal(t, Counts{Upvotes: 1}, got)

	got, err = r.Reconcile(ctx, comment.ID, b, Down)
	require.NoError(t, err)
	assert.Equal(t, Counts{Upvotes: 1, Downvotes: 1}, got)

	got, err = r.Reconcile(ctx, comment.ID, a, Down)
	require.NoError(t, err)
	assert.Equal(t, Counts{Downvotes: 2}, got)

	got, err = r.Reconcile(ctx, comment.ID, a, None)
	require.NoError(t, err)
	assert.Equal(t, Counts{Downvotes: 1}, got)
	assert.Equal(t, got, storedCounts(t, db, comment.ID))

	rows := storedVotes(t, db, comment.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, b, rows[0].UserID)
	assert.Equal(t, "down", rows[0].VoteType)
}

func TestGormStore_NotFound(t *testing.T) {
	db := testutil.Postgres(t)
	_, ids := seedComment(t, db, 1)
	r := NewReconciler(NewGormStore(db))

	_, err := r.Reconcile(context.Background(), 999999, ids[0], Up)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestGormStore_ClampsAtZero(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()
	comment, ids := seedComment(t, db, 1)
	r := NewReconciler(NewGormStore(db))

	_, err := r.Reconcile(ctx, comment.ID, ids[0], Up)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", comment.ID).
		UpdateColumn("upvotes", 0).Error)

	got, err := r.Reconcile(ctx, comment.ID, ids[0], None)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, got)
}

func TestGormStore_RollsBackOnFailure(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()
	comment, ids := seedComment(t, db, 1)
	store := NewGormStore(db)

	boom := errors.New("injected")
	err := store.WithinCommentLock(ctx, comment.ID, func(tx Tx) error {
		require.NoError(t, tx.InsertVote(ids[0], Up))
		require.NoError(t, tx.Increment(FieldUpvotes, 1))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, storedVotes(t, db, comment.ID))
	assert.Equal(t, Counts{}, storedCounts(t, db, comment.ID))
}

func TestGormStore_ConcurrentVotersConverge(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()
	comment, ids := seedComment(t, db, 20)
	r := NewReconciler(NewGormStore(db), WithSelfHeal(false))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, userID int) {
			defer wg.Done()
			final := Up
			if i%2 == 0 {
				final = Down
			}
			for _, s := range []State{Down, Up, None, final} {
				_, err := r.Reconcile(ctx, comment.ID, userID, s)
				assert.NoError(t, err)
			}
		}(i, id)
	}
	wg.Wait()

	assert.Equal(t, Counts{Upvotes: 10, Downvotes: 10}, storedCounts(t, db, comment.ID))
	assert.Len(t, storedVotes(t, db, comment.ID), 20)
}

func TestGormStore_SelfHeal(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()
	comment, ids := seedComment(t, db, 2)
	r := NewReconciler(NewGormStore(db), WithSelfHeal(true))

	_, err := r.Reconcile(ctx, comment.ID, ids[0], Up)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", comment.ID).
		UpdateColumns(map[string]interface{}{"upvotes": 9, "downvotes": 3}).Error)

	got, err := r.Reconcile(ctx, comment.ID, ids[1], Down)
	require.NoError(t, err)
	assert.Equal(t, Counts{Upvotes: 1, Downvotes: 1}, got)
	assert.Equal(t, got, storedCounts(t, db, comment.ID))
}

func TestGormStore_CascadeOnCommentDelete(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()
	comment, ids := seedComment(t, db, 1)
	r := NewReconciler(NewGormStore(db))

	_, err := r.Reconcile(ctx, comment.ID, ids[0], Up)
	require.NoError(t, err)

	require.NoError(t, db.Delete(&models.Comment{}, comment.ID).Error)
	assert.Empty(t, storedVotes(t, db, comment.ID))
}
