package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/database"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
)

type UserHandler struct {
	db       *gorm.DB
	notifier Notifier
}

func NewUserHandler(db *gorm.DB, notifier Notifier) *UserHandler {
	return &UserHandler{db: db, notifier: notifier}
}

// GetUserProfile returns a user's profile
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, err := paramID(c, "id", "user")
	if err != nil {
		respondError(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		respondError(c, lookupError(err, "User not found", "Failed to load user"))
		return
	}

	// Get follower/following counts
	var followerCount, followingCount, eventCount int64
	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{db.Model(&models.Follow{}).Where("following_id = ?", userID), &followerCount},
		{db.Model(&models.Follow{}).Where("follower_id = ?", userID), &followingCount},
		{db.Model(&models.Post{}).Where("author_id = ?", userID), &eventCount},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dest).Error; err != nil {
			respondError(c, apperrors.Internal("Failed to load profile", err))
			return
		}
	}

	// Check if current user follows this user
	isFollowing := false
	if viewerID, ok := auth.UserID(c); ok && viewerID != userID {
		var n int64
		if err := db.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", viewerID, userID).
			Count(&n).Error; err != nil {
			respondError(c, apperrors.Internal("Failed to load profile", err))
			return
		}
		isFollowing = n > 0
	}

	respondOK(c, http.StatusOK, gin.H{
		"user": gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"bio":        user.Bio,
			"avatar":     user.Avatar,
			"created_at": user.CreatedAt,
		},
		"event_count":     eventCount,
		"follower_count":  followerCount,
		"following_count": followingCount,
		"is_following":    isFollowing,
	})
}

// UpdateUserProfile changes the caller's own bio, avatar or phone
func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	authUserID, ok := currentUser(c)
	if !ok {
		return
	}
	userID, err := paramID(c, "id", "user")
	if err != nil {
		respondError(c, err)
		return
	}

	// Check if user is updating their own profile
	if authUserID != userID {
		respondError(c, apperrors.Forbidden("You can only update your own profile"))
		return
	}

	var input models.UpdateProfileRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		respondError(c, lookupError(err, "User not found", "Failed to load user"))
		return
	}

	if input.Bio != nil {
		user.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.Avatar != nil {
		user.Avatar = strings.TrimSpace(*input.Avatar)
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}

	if err := db.Model(&user).Select("bio", "avatar", "phone").Updates(&user).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to update profile", err))
		return
	}

	respondOK(c, http.StatusOK, user.Account())
}

// FollowUser follows a user
func (h *UserHandler) FollowUser(c *gin.Context) {
	followerID, ok := currentUser(c)
	if !ok {
		return
	}
	followingID, err := paramID(c, "id", "user")
	if err != nil {
		respondError(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var target models.User
	if err := db.Select("id").First(&target, followingID).Error; err != nil {
		respondError(c, lookupError(err, "User not found", "Failed to load user"))
		return
	}

	// Can't follow yourself
	if target.ID == followerID {
		respondError(c, apperrors.Validation("You cannot follow yourself"))
		return
	}

	follow := models.Follow{FollowerID: followerID, FollowingID: followingID}
	if err := db.Omit("Follower", "Following").Create(&follow).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, apperrors.Conflict("Already following this user"))
			return
		}
		respondError(c, apperrors.Internal("Failed to follow user", err))
		return
	}

	h.notifier.Notify(models.Notification{
		UserID:  followingID,
		ActorID: followerID,
		Kind:    models.NotificationFollow,
		Message: fmt.Sprintf("%s started following you", username(c.Request.Context(), h.db, followerID)),
	})

	respondOK(c, http.StatusCreated, gin.H{"message": "Successfully followed user"})
}

// UnfollowUser unfollows a user
func (h *UserHandler) UnfollowUser(c *gin.Context) {
	followerID, ok := currentUser(c)
	if !ok {
		return
	}
	followingID, err := paramID(c, "id", "user")
	if err != nil {
		respondError(c, err)
		return
	}

	err = h.db.WithContext(c.Request.Context()).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to unfollow user", err))
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Successfully unfollowed user"})
}

// GetFollowers returns users following :id
func (h *UserHandler) GetFollowers(c *gin.Context) {
	h.listFollows(c, "follows.follower_id = users.id", "follows.following_id = ?")
}

// GetFollowing returns users :id follows
func (h *UserHandler) GetFollowing(c *gin.Context) {
	h.listFollows(c, "follows.following_id = users.id", "follows.follower_id = ?")
}

func (h *UserHandler) listFollows(c *gin.Context, join, where string) {
	userID, err := paramID(c, "id", "user")
	if err != nil {
		respondError(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var user models.User
	if err := db.Select("id").First(&user, userID).Error; err != nil {
		respondError(c, lookupError(err, "User not found", "Failed to load user"))
		return
	}

	var users []models.User
	err = db.Model(&models.User{}).
		Joins("JOIN follows ON "+join).
		Where(where, userID).
		Order("follows.created_at desc").
		Find(&users).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch users", err))
		return
	}

	resp := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		resp = append(resp, u.Summary())
	}
	respondOK(c, http.StatusOK, resp)
}
