package ratelimit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/testutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.Terminate()
	os.Exit(code)
}

func TestMemoryLimiter_Burst(t *testing.T) {
	l := NewMemoryLimiter(3)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, _ := l.Allow(ctx, "a")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok, "keys are independent")

	// one token every 20s at 3/min
	now = now.Add(21 * time.Second)
	ok, _ = l.Allow(ctx, "a")
	assert.True(t, ok)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	l := NewMemoryLimiter(1)
	now := time.Now()
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "old")
	assert.Equal(t, 1, l.Active())

	now = now.Add(11 * time.Minute)
	_, _ = l.Allow(context.Background(), "new")
	assert.Equal(t, 1, l.Active())
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.allowed, s.err }

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		limiter Limiter
		want    int
	}{
		{"allowed", stubLimiter{allowed: true}, http.StatusOK},
		{"limited", stubLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter down", stubLimiter{err: errors.New("redis gone")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/vote", Middleware(tt.limiter, ByUser("vote")), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/vote", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.1:1234"

	assert.Equal(t, "vote:ip:10.0.0.1", ByUser("vote")(c))

	c.Set(auth.UserIDKey, 12)
	assert.Equal(t, "vote:user:12", ByUser("vote")(c))
}

func TestByUser_KeysOnAuthenticatedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewManager("test-secret", time.Hour)
	token, err := tokens.Issue(models.User{ID: 31})
	require.NoError(t, err)

	var key string
	r := gin.New()
	r.POST("/vote", auth.RequireAuth(tokens), func(c *gin.Context) {
		key = ByUser("vote")(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/vote", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vote:user:31", key)
}

func TestRedisLimiter_Close(t *testing.T) {
	rdb := testutil.Redis(t)
	l := NewRedisLimiter(rdb, 5)

	var closer io.Closer = l
	require.NoError(t, closer.Close())

	_, err := l.Allow(context.Background(), "vote:user:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, goredis.ErrClosed)
}

func TestRedisLimiter(t *testing.T) {
	rdb := testutil.Redis(t)
	l := NewRedisLimiter(rdb, 2)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "vote:user:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "vote:user:1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "vote:user:2")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	ok, err = l.Allow(ctx, "vote:user:1")
	require.NoError(t, err)
	assert.True(t, ok)
}
