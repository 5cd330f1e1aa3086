package handlers

import (
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/notify"
	"github.com/emilythestrangee/campus-events/backend/internal/storage"
	"github.com/emilythestrangee/campus-events/backend/internal/votes"
)

// Notifier queues a notification for background delivery.
type Notifier interface {
	Notify(n models.Notification)
}

type noopNotifier struct{}

func (noopNotifier) Notify(models.Notification) {}

// Deps are the collaborators handlers need.
type Deps struct {
	DB             *gorm.DB
	Tokens         *auth.Manager
	Reconciler     *votes.Reconciler
	Images         storage.ImageStore
	MaxUploadBytes int64
	Notifier       Notifier
	Hub            *notify.Hub
}

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	Event        *EventHandler
	Comment      *CommentHandler
	User         *UserHandler
	Group        *GroupHandler
	Notification *NotificationHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}
	if d.Hub == nil {
		d.Hub = notify.NewHub()
	}

	return &Handler{
		Auth:         NewAuthHandler(d.DB, d.Tokens),
		Event:        NewEventHandler(d.DB, d.Images, d.MaxUploadBytes, d.Notifier),
		Comment:      NewCommentHandler(d.DB, d.Reconciler, d.Notifier),
		User:         NewUserHandler(d.DB, d.Notifier),
		Group:        NewGroupHandler(d.DB, d.Notifier),
		Notification: NewNotificationHandler(d.DB, d.Hub),
	}
}
