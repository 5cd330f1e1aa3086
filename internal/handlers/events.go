package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/storage"
)

type EventHandler struct {
	db             *gorm.DB
	images         storage.ImageStore
	maxUploadBytes int64
	notifier       Notifier
}

func NewEventHandler(db *gorm.DB, images storage.ImageStore, maxUploadBytes int64, notifier Notifier) *EventHandler {
	return &EventHandler{db: db, images: images, maxUploadBytes: maxUploadBytes, notifier: notifier}
}

// decorateEvents adds attendee counts and the viewer's RSVP to each event.
func decorateEvents(ctx context.Context, db *gorm.DB, events []models.Post, viewerID int) ([]models.EventResponse, error) {
	out := make([]models.EventResponse, 0, len(events))
	if len(events) == 0 {
		return out, nil
	}

	ids := make([]int, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	db = db.WithContext(ctx)

	var rows []struct {
		PostID int
		Total  int
	}
	err := db.Model(&models.Attendance{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ? AND status = ?", ids, models.AttendanceGoing).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.Total
	}

	mine := make(map[int]string)
	if viewerID > 0 {
		var own []models.Attendance
		if err := db.Where("post_id IN ? AND user_id = ?", ids, viewerID).Find(&own).Error; err != nil {
			return nil, err
		}
		for _, a := range own {
			mine[a.PostID] = a.Status
		}
	}

	for _, e := range events {
		out = append(out, models.EventResponse{
			Post:          e,
			AttendeeCount: counts[e.ID],
			MyStatus:      mine[e.ID],
		})
	}
	return out, nil
}

func (h *EventHandler) respondEvent(c *gin.Context, status int, event models.Post) {
	viewerID, _ := auth.UserID(c)
	resp, err := decorateEvents(c.Request.Context(), h.db, []models.Post{event}, viewerID)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to load event", err))
		return
	}
	respondOK(c, status, resp[0])
}

// loadOwnedEvent fetches the event and checks the caller wrote it.
func (h *EventHandler) loadOwnedEvent(c *gin.Context) (models.Post, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return models.Post{}, false
	}
	eventID, err := paramID(c, "id", "event")
	if err != nil {
		respondError(c, err)
		return models.Post{}, false
	}

	var event models.Post
	if err := h.db.WithContext(c.Request.Context()).First(&event, eventID).Error; err != nil {
		respondError(c, lookupError(err, "Event not found", "Failed to load event"))
		return models.Post{}, false
	}
	if event.AuthorID != userID {
		respondError(c, apperrors.Forbidden("You can only modify your own events"))
		return models.Post{}, false
	}
	return event, true
}

// ListEvents returns events, latest start first
func (h *EventHandler) ListEvents(c *gin.Context) {
	limit, offset := pagination(c)

	var events []models.Post
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
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

// GetEvent returns a single event by ID
func (h *EventHandler) GetEvent(c *gin.Context) {
	eventID, err := paramID(c, "id", "event")
	if err != nil {
		respondError(c, err)
		return
	}

	var event models.Post
	if err := h.db.WithContext(c.Request.Context()).Preload("User").First(&event, eventID).Error; err != nil {
		respondError(c, lookupError(err, "Event not found", "Failed to load event"))
		return
	}

	h.respondEvent(c, http.StatusOK, event)
}

// CreateEvent creates a new event, optionally inside a group the caller
// belongs to.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input models.CreateEventRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		respondError(c, apperrors.Validation("Title is required"))
		return
	}
	if input.EndsAt != nil && input.EndsAt.Before(input.StartsAt) {
		respondError(c, apperrors.Validation("ends_at must not be before starts_at"))
		return
	}

	db := h.db.WithContext(c.Request.Context())
	if input.GroupID != nil {
		var group models.Group
		if err := db.First(&group, *input.GroupID).Error; err != nil {
			respondError(c, lookupError(err, "Group not found", "Failed to load group"))
			return
		}
		var member int64
		if err := db.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", group.ID, userID).
			Count(&member).Error; err != nil {
			respondError(c, apperrors.Internal("Failed to create event", err))
			return
		}
		if member == 0 {
			respondError(c, apperrors.Forbidden("You must be a member of the group to post events in it"))
			return
		}
	}

	event := models.Post{
		AuthorID: userID,
		GroupID:  input.GroupID,
		Title:    input.Title,
		Body:     input.Body,
		Location: strings.TrimSpace(input.Location),
		StartsAt: input.StartsAt.UTC(),
		EndsAt:   input.EndsAt,
		Capacity: input.Capacity,
	}
	if err := db.Create(&event).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to create event", err))
		return
	}

	// Reload with user information
	db.Preload("User").First(&event, event.ID)

	h.respondEvent(c, http.StatusCreated, event)
}

// UpdateEvent applies a partial update (owner only)
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	event, ok := h.loadOwnedEvent(c)
	if !ok {
		return
	}

	var input models.UpdateEventRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			respondError(c, apperrors.Validation("Title cannot be empty"))
			return
		}
		event.Title = title
	}
	if input.Body != nil {
		event.Body = *input.Body
	}
	if input.Location != nil {
		event.Location = strings.TrimSpace(*input.Location)
	}
	if input.StartsAt != nil {
		event.StartsAt = input.StartsAt.UTC()
	}
	if input.EndsAt != nil {
		event.EndsAt = input.EndsAt
	}
	if input.Capacity != nil {
		event.Capacity = *input.Capacity
	}
	if event.EndsAt != nil && event.EndsAt.Before(event.StartsAt) {
		respondError(c, apperrors.Validation("ends_at must not be before starts_at"))
		return
	}

	db := h.db.WithContext(c.Request.Context())
	if err := db.Omit(clause.Associations).Save(&event).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to update event", err))
		return
	}

	db.Preload("User").First(&event, event.ID)
	h.respondEvent(c, http.StatusOK, event)
}

// DeleteEvent removes the event with its comments, votes and RSVPs
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	event, ok := h.loadOwnedEvent(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Delete(&models.Post{}, event.ID).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to delete event", err))
		return
	}

	h.removeImage(ctx, event.ImageURL)
	respondOK(c, http.StatusOK, gin.H{"message": "Event deleted successfully"})
}

// UploadImage stores the multipart "image" field and sets it on the event
func (h *EventHandler) UploadImage(c *gin.Context) {
	event, ok := h.loadOwnedEvent(c)
	if !ok {
		return
	}
	if h.images == nil {
		respondError(c, apperrors.Internal("Image uploads are not configured", errors.New("no image store")))
		return
	}

	// room for the multipart envelope around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+64<<10)

	header, err := c.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, apperrors.Validation(fmt.Sprintf("Image must be at most %d bytes", h.maxUploadBytes)))
			return
		}
		respondError(c, apperrors.Validation("Image file is required"))
		return
	}
	if header.Size > h.maxUploadBytes {
		respondError(c, apperrors.Validation(fmt.Sprintf("Image must be at most %d bytes", h.maxUploadBytes)))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, apperrors.Internal("Failed to read upload", err))
		return
	}
	defer file.Close()

	img, err := storage.ReadImage(file, h.maxUploadBytes)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		respondError(c, apperrors.Validation(fmt.Sprintf("Image must be at most %d bytes", h.maxUploadBytes)))
		return
	case errors.Is(err, storage.ErrUnsupportedType):
		respondError(c, apperrors.Validation("Image must be a JPEG, PNG, GIF or WebP file"))
		return
	case errors.Is(err, storage.ErrEmpty):
		respondError(c, apperrors.Validation("Image file is empty"))
		return
	case err != nil:
		respondError(c, apperrors.Internal("Failed to read upload", err))
		return
	}

	ctx := c.Request.Context()
	url, err := h.images.Save(ctx, img)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to store image", err))
		return
	}

	previous := event.ImageURL
	if err := h.db.WithContext(ctx).Model(&event).Update("image_url", url).Error; err != nil {
		h.removeImage(ctx, url)
		respondError(c, apperrors.Internal("Failed to update event", err))
		return
	}
	h.removeImage(ctx, previous)

	h.db.WithContext(ctx).Preload("User").First(&event, event.ID)
	h.respondEvent(c, http.StatusOK, event)
}

func (h *EventHandler) removeImage(ctx context.Context, url string) {
	if url == "" || h.images == nil {
		return
	}
	if err := h.images.Delete(ctx, url); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to remove event image")
	}
}

// Attend records the caller's RSVP. Going is refused once the event is at
// capacity.
func (h *EventHandler) Attend(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, err := paramID(c, "id", "event")
	if err != nil {
		respondError(c, err)
		return
	}

	var input models.AttendRequest
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, apperrors.Validation("Status must be going or interested"))
		return
	}
	if input.Status == "" {
		input.Status = models.AttendanceGoing
	}

	var (
		event      models.Post
		attendance models.Attendance
		changed    bool
	)
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, eventID).Error; err != nil {
			return err
		}

		if input.Status == models.AttendanceGoing && event.Capacity > 0 {
			var going int64
			if err := tx.Model(&models.Attendance{}).
				Where("post_id = ? AND status = ? AND user_id <> ?", eventID, models.AttendanceGoing, userID).
				Count(&going).Error; err != nil {
				return err
			}
			if going >= int64(event.Capacity) {
				return apperrors.Conflict("Event is full")
			}
		}

		var previous models.Attendance
		err := tx.Select("status").Where("post_id = ? AND user_id = ?", eventID, userID).Take(&previous).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			changed = true
		case err != nil:
			return err
		default:
			changed = previous.Status != input.Status
		}
		if !changed {
			attendance = models.Attendance{PostID: eventID, UserID: userID, Status: previous.Status}
			return nil
		}

		attendance = models.Attendance{PostID: eventID, UserID: userID, Status: input.Status}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&attendance).Error
	})
	if err != nil {
		if apperrors.Is(err, apperrors.TypeConflict) {
			respondError(c, err)
			return
		}
		respondError(c, lookupError(err, "Event not found", "Failed to save attendance"))
		return
	}

	if changed {
		h.notifier.Notify(models.Notification{
			UserID:  event.AuthorID,
			ActorID: userID,
			Kind:    models.NotificationAttendance,
			PostID:  &event.ID,
			Message: fmt.Sprintf("%s is %s to %s", username(c.Request.Context(), h.db, userID), attendanceVerb(input.Status), event.Title),
		})
	}

	respondOK(c, http.StatusOK, gin.H{"event_id": eventID, "status": attendance.Status})
}

func attendanceVerb(status string) string {
	if status == models.AttendanceInterested {
		return "interested in going"
	}
	return "going"
}

// Unattend removes the caller's RSVP
func (h *EventHandler) Unattend(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
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

	if err := db.Where("post_id = ? AND user_id = ?", eventID, userID).Delete(&models.Attendance{}).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to remove attendance", err))
		return
	}

	respondOK(c, http.StatusOK, gin.H{"event_id": eventID, "status": nil})
}

// ListAttendees returns everyone who RSVP'd
func (h *EventHandler) ListAttendees(c *gin.Context) {
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

	var attendances []models.Attendance
	if err := db.Preload("User").Where("post_id = ?", eventID).Order("created_at").Find(&attendances).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to fetch attendees", err))
		return
	}

	resp := make([]gin.H, 0, len(attendances))
	for _, a := range attendances {
		resp = append(resp, gin.H{"user": a.User.Summary(), "status": a.Status})
	}
	respondOK(c, http.StatusOK, resp)
}

// username returns the display name used in notification messages.
func username(ctx context.Context, db *gorm.DB, userID int) string {
	var user models.User
	if err := db.WithContext(ctx).Select("id", "username").First(&user, userID).Error; err != nil {
		return "Someone"
	}
	return user.Username
}
