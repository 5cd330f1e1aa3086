package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/notify"
)

// streamRecorder lets the test read the body while the handler is still
// writing to it.
type streamRecorder struct {
	*httptest.ResponseRecorder
	mu     sync.Mutex
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(b)
}

func (r *streamRecorder) WriteString(s string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.WriteString(s)
}

func (r *streamRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func (r *streamRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestStream_RelaysHubNotifications(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tokens := auth.NewManager("test-secret", time.Hour)
	hub := notify.NewHub()
	h := NewNotificationHandler(nil, hub)
	h.keepAlive = 20 * time.Millisecond

	r := gin.New()
	r.GET("/notifications/stream", auth.RequireAuth(tokens), h.Stream)

	token, err := tokens.Issue(models.User{ID: 7, Username: "grace"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(rec, req)
	}()

	contains := func(s string) func() bool {
		return func() bool { return strings.Contains(rec.body(), s) }
	}

	require.Eventually(t, func() bool { return hub.Subscribers(7) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, contains("event:ready"), 2*time.Second, 5*time.Millisecond)

	assert.Zero(t, hub.Publish(models.Notification{ID: 1, UserID: 8, Message: "not for grace"}))
	assert.Equal(t, 1, hub.Publish(models.Notification{
		ID:      2,
		UserID:  7,
		ActorID: 3,
		Kind:    models.NotificationFollow,
		Message: "ada started following you",
	}))

	require.Eventually(t, contains("event:notification"), 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, contains("event:ping"), 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the request was cancelled")
	}

	assert.Zero(t, hub.Subscribers(7))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.body()
	assert.Contains(t, body, "ada started following you")
	assert.NotContains(t, body, "not for grace")
}

func TestStream_RequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := notify.NewHub()
	r := gin.New()
	r.GET("/notifications/stream", auth.RequireAuth(auth.NewManager("s", time.Hour)), NewNotificationHandler(nil, hub).Stream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/stream", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, hub.Subscribers(0))
}
