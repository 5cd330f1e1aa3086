package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/votes"
)

type CommentHandler struct {
	db         *gorm.DB
	reconciler *votes.Reconciler
	notifier   Notifier
}

func NewCommentHandler(db *gorm.DB, reconciler *votes.Reconciler, notifier Notifier) *CommentHandler {
	return &CommentHandler{db: db, reconciler: reconciler, notifier: notifier}
}

func validCommentText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(text); n == 0 || n > models.MaxCommentLength {
		return "", apperrors.Validation(fmt.Sprintf("Comment must be between 1 and %d characters", models.MaxCommentLength))
	}
	return text, nil
}

// GetComments returns an event's comments, newest first, with the viewer's
// own vote on each
func (h *CommentHandler) GetComments(c *gin.Context) {
	eventID, err := paramID(c, "id", "event")
	if err != nil {
		respondError(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var event models.Post
	if err := db.Select("id").First(&event, eventID).Error; err != nil {
		respondError(c, lookupError(err, "Event not found", "Failed to load event"))
		return
	}

	var comments []models.Comment
	if err := db.Preload("User").Where("post_id = ?", eventID).Order("created_at desc").Find(&comments).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to fetch comments", err))
		return
	}

	mine := make(map[int]string)
	if viewerID, ok := auth.UserID(c); ok && len(comments) > 0 {
		ids := make([]int, len(comments))
		for i, cm := range comments {
			ids[i] = cm.ID
		}

		var own []models.CommentVote
		if err := db.Where("comment_id IN ? AND user_id = ?", ids, viewerID).Find(&own).Error; err != nil {
			respondError(c, apperrors.Internal("Failed to fetch comments", err))
			return
		}
		for _, v := range own {
			mine[v.CommentID] = v.VoteType
		}
	}

	resp := make([]models.CommentResponse, 0, len(comments))
	for _, cm := range comments {
		resp = append(resp, models.CommentResponse{Comment: cm, MyVote: mine[cm.ID]})
	}
	respondOK(c, http.StatusOK, resp)
}

// CreateComment adds a comment to an event
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, err := paramID(c, "id", "event")
	if err != nil {
		respondError(c, err)
		return
	}

	var input models.CreateCommentRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	text, err := validCommentText(input.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var event models.Post
	if err := db.Select("id", "author_id", "title").First(&event, eventID).Error; err != nil {
		respondError(c, lookupError(err, "Event not found", "Failed to load event"))
		return
	}

	comment := models.Comment{PostID: eventID, AuthorID: userID, Text: text}
	if err := db.Create(&comment).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to create comment", err))
		return
	}

	db.Preload("User").First(&comment, comment.ID)

	h.notifier.Notify(models.Notification{
		UserID:    event.AuthorID,
		ActorID:   userID,
		Kind:      models.NotificationComment,
		PostID:    &event.ID,
		CommentID: &comment.ID,
		Message:   fmt.Sprintf("%s commented on %s", comment.User.Username, event.Title),
	})

	respondOK(c, http.StatusCreated, models.CommentResponse{Comment: comment})
}

// loadOwnedComment fetches the comment and checks the caller wrote it.
func (h *CommentHandler) loadOwnedComment(c *gin.Context) (models.Comment, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return models.Comment{}, false
	}
	commentID, err := paramID(c, "commentId", "comment")
	if err != nil {
		respondError(c, err)
		return models.Comment{}, false
	}

	var comment models.Comment
	if err := h.db.WithContext(c.Request.Context()).First(&comment, commentID).Error; err != nil {
		respondError(c, lookupError(err, "Comment not found", "Failed to load comment"))
		return models.Comment{}, false
	}
	if comment.AuthorID != userID {
		respondError(c, apperrors.Forbidden("You can only modify your own comments"))
		return models.Comment{}, false
	}
	return comment, true
}

// UpdateComment edits the text of the caller's comment
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	comment, ok := h.loadOwnedComment(c)
	if !ok {
		return
	}

	var input models.UpdateCommentRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	text, err := validCommentText(input.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	if err := db.Model(&comment).Update("text", text).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to update comment", err))
		return
	}

	db.Preload("User").First(&comment, comment.ID)
	respondOK(c, http.StatusOK, models.CommentResponse{Comment: comment})
}

// DeleteComment removes the caller's comment and every vote on it
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	comment, ok := h.loadOwnedComment(c)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(&models.Comment{}, comment.ID).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to delete comment", err))
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// parseVoteBody reads {"vote_type": "up" | "down" | null}. The field must be
// present; null clears the vote.
func parseVoteBody(c *gin.Context) (votes.State, error) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		return "", apperrors.Validation("Invalid request body")
	}

	raw, ok := body["vote_type"]
	if !ok {
		return "", apperrors.Validation("vote_type is required")
	}
	if string(raw) == "null" {
		return votes.None, nil
	}

	var voteType string
	if err := json.Unmarshal(raw, &voteType); err != nil {
		return "", apperrors.Validation(`vote_type must be "up", "down" or null`)
	}
	// "none" is spelled null on the wire
	state, err := votes.ParseState(voteType)
	if err != nil || state == votes.None {
		return "", apperrors.Validation(`vote_type must be "up", "down" or null`)
	}
	return state, nil
}

// VoteComment sets the caller's vote on a comment to the requested state and
// returns the comment's totals
func (h *CommentHandler) VoteComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	commentID, err := paramID(c, "commentId", "comment")
	if err != nil {
		respondError(c, err)
		return
	}

	desired, err := parseVoteBody(c)
	if err != nil {
		respondError(c, err)
		return
	}

	counts, err := h.reconciler.Reconcile(c.Request.Context(), commentID, userID, desired)
	switch {
	case errors.Is(err, votes.ErrInvalidArgument):
		respondError(c, apperrors.Validation("Invalid vote"))
		return
	case errors.Is(err, votes.ErrCommentNotFound):
		respondError(c, apperrors.NotFound("Comment not found"))
		return
	case err != nil:
		respondError(c, apperrors.Internal("Failed to record vote", err).
			WithContext("comment_id", commentID))
		return
	}

	respondOK(c, http.StatusOK, counts)
}
