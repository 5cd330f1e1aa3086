package handlers

import (
	"errors"
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

type GroupHandler struct {
	db       *gorm.DB
	notifier Notifier
}

func NewGroupHandler(db *gorm.DB, notifier Notifier) *GroupHandler {
	return &GroupHandler{db: db, notifier: notifier}
}

func (h *GroupHandler) withMemberCounts(db *gorm.DB, groups []models.Group) ([]models.GroupResponse, error) {
	out := make([]models.GroupResponse, 0, len(groups))
	if len(groups) == 0 {
		return out, nil
	}

	ids := make([]int, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}

	var rows []struct {
		GroupID int
		Total   int64
	}
	if err := db.Model(&models.GroupMember{}).
		Select("group_id, COUNT(*) AS total").
		Where("group_id IN ?", ids).
		Group("group_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.GroupID] = r.Total
	}

	for _, g := range groups {
		out = append(out, models.GroupResponse{Group: g, MemberCount: counts[g.ID]})
	}
	return out, nil
}

func (h *GroupHandler) loadGroup(c *gin.Context) (models.Group, bool) {
	groupID, err := paramID(c, "id", "group")
	if err != nil {
		respondError(c, err)
		return models.Group{}, false
	}

	var group models.Group
	if err := h.db.WithContext(c.Request.Context()).Preload("Owner").First(&group, groupID).Error; err != nil {
		respondError(c, lookupError(err, "Group not found", "Failed to load group"))
		return models.Group{}, false
	}
	return group, true
}

// ListGroups returns groups by name with member counts
func (h *GroupHandler) ListGroups(c *gin.Context) {
	limit, offset := pagination(c)
	db := h.db.WithContext(c.Request.Context())

	var groups []models.Group
	if err := db.Preload("Owner").Order("name").Limit(limit).Offset(offset).Find(&groups).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to fetch groups", err))
		return
	}

	resp, err := h.withMemberCounts(db, groups)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch groups", err))
		return
	}
	respondOK(c, http.StatusOK, resp)
}

// CreateGroup creates a group owned by the caller
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input models.CreateGroupRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	name := strings.TrimSpace(input.Name)
	if len(name) < 2 {
		respondError(c, apperrors.Validation("Group name must be at least 2 characters"))
		return
	}

	group := models.Group{Name: name, Description: input.Description, OwnerID: userID}
	db := h.db.WithContext(c.Request.Context())
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner").Create(&group).Error; err != nil {
			return err
		}
		return tx.Omit("Group", "User").Create(&models.GroupMember{
			GroupID: group.ID,
			UserID:  userID,
			Role:    models.GroupRoleOwner,
		}).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, apperrors.Conflict("A group with that name already exists"))
			return
		}
		respondError(c, apperrors.Internal("Failed to create group", err))
		return
	}

	db.Preload("Owner").First(&group, group.ID)
	respondOK(c, http.StatusCreated, models.GroupResponse{Group: group, MemberCount: 1})
}

// GetGroup returns a group with its member count and whether the viewer
// belongs to it
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	db := h.db.WithContext(c.Request.Context())
	resp, err := h.withMemberCounts(db, []models.Group{group})
	if err != nil {
		respondError(c, apperrors.Internal("Failed to load group", err))
		return
	}

	isMember := false
	if viewerID, ok := auth.UserID(c); ok {
		var n int64
		if err := db.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", group.ID, viewerID).
			Count(&n).Error; err != nil {
			respondError(c, apperrors.Internal("Failed to load group", err))
			return
		}
		isMember = n > 0
	}

	respondOK(c, http.StatusOK, gin.H{"group": resp[0], "is_member": isMember})
}

// JoinGroup adds the caller as a member
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	member := models.GroupMember{GroupID: group.ID, UserID: userID, Role: models.GroupRoleMember}
	if err := h.db.WithContext(c.Request.Context()).Omit("Group", "User").Create(&member).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, apperrors.Conflict("Already a member of this group"))
			return
		}
		respondError(c, apperrors.Internal("Failed to join group", err))
		return
	}

	h.notifier.Notify(models.Notification{
		UserID:  group.OwnerID,
		ActorID: userID,
		Kind:    models.NotificationGroupJoin,
		GroupID: &group.ID,
		Message: fmt.Sprintf("%s joined %s", username(c.Request.Context(), h.db, userID), group.Name),
	})

	respondOK(c, http.StatusCreated, gin.H{"group_id": group.ID, "role": member.Role})
}

// LeaveGroup removes the caller from the group. The owner cannot leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var member models.GroupMember
	err := db.Where("group_id = ? AND user_id = ?", group.ID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondOK(c, http.StatusOK, gin.H{"message": "Left group"})
		return
	}
	if err != nil {
		respondError(c, apperrors.Internal("Failed to leave group", err))
		return
	}
	if member.Role == models.GroupRoleOwner {
		respondError(c, apperrors.Validation("The group owner cannot leave the group"))
		return
	}

	if err := db.Delete(&member).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to leave group", err))
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Left group"})
}

// ListMembers returns the members of a group, owner first
func (h *GroupHandler) ListMembers(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	var members []models.GroupMember
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Where("group_id = ?", group.ID).
		Order("CASE WHEN role = 'owner' THEN 0 ELSE 1 END, created_at").
		Find(&members).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch members", err))
		return
	}

	resp := make([]gin.H, 0, len(members))
	for _, m := range members {
		resp = append(resp, gin.H{"user": m.User.Summary(), "role": m.Role, "joined_at": m.CreatedAt})
	}
	respondOK(c, http.StatusOK, resp)
}

// ListGroupEvents returns events posted in the group
func (h *GroupHandler) ListGroupEvents(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	var events []models.Post
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Where("group_id = ?", group.ID).
		Order("starts_at desc").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch events", err))
		return
	}

	viewerID, _ := auth.UserID(c)
	resp, err := decorateEvents(c.Request.Context(), h.db, events, viewerID)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch events", err))
		return
	}
	respondOK(c, http.StatusOK, resp)
}
