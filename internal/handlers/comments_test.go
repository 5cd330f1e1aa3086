package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/votes"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type voteFixture struct {
	router *gin.Engine
	store  *votes.MemoryStore
	tokens *auth.Manager
}

func newVoteFixture(t *testing.T) *voteFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := votes.NewMemoryStore()
	store.AddComment(1)
	tokens := auth.NewManager("test-secret", time.Hour)
	h := NewCommentHandler(nil, votes.NewReconciler(store, votes.WithSelfHeal(true)), noopNotifier{})

	r := gin.New()
	r.POST("/api/comments/:commentId/vote", auth.RequireAuth(tokens), h.VoteComment)
	return &voteFixture{router: r, store: store, tokens: tokens}
}

func (f *voteFixture) vote(t *testing.T, userID int, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, err := f.tokens.Issue(models.User{ID: userID})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeCounts(t *testing.T, env envelope) votes.Counts {
	t.Helper()
	var counts votes.Counts
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	return counts
}

func TestVoteComment_Scenario(t *testing.T) {
	f := newVoteFixture(t)

	steps := []struct {
		body string
		want votes.Counts
	}{
		{`{"vote_type":"up"}`, votes.Counts{Upvotes: 1}},
		{`{"vote_type":"up"}`, votes.Counts{Upvotes: 1}},
		{`{"vote_type":"down"}`, votes.Counts{Downvotes: 1}},
		{`{"vote_type":null}`, votes.Counts{}},
		{`{"vote_type":null}`, votes.Counts{}},
	}
	for _, step := range steps {
		status, env := f.vote(t, 5, "/api/comments/1/vote", step.body)
		require.Equal(t, http.StatusOK, status, step.body)
		assert.True(t, env.Success)
		assert.Equal(t, step.want, decodeCounts(t, env), step.body)
	}
	assert.Equal(t, votes.None, f.store.Vote(1, 5))
}

func TestVoteComment_TwoVoters(t *testing.T) {
	f := newVoteFixture(t)

	_, _ = f.vote(t, 1, "/api/comments/1/vote", `{"vote_type":"up"}`)
	_, _ = f.vote(t, 2, "/api/comments/1/vote", `{"vote_type":"down"}`)
	status, env := f.vote(t, 1, "/api/comments/1/vote", `{"vote_type":null}`)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, votes.Counts{Downvotes: 1}, decodeCounts(t, env))
	assert.Equal(t, votes.Down, f.store.Vote(1, 2))
	assert.Equal(t, 1, f.store.VoteCount(1))
}

func TestVoteComment_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		userID int
		path   string
		body   string
		want   int
	}{
		{"no token", 0, "/api/comments/1/vote", `{"vote_type":"up"}`, http.StatusUnauthorized},
		{"missing field", 1, "/api/comments/1/vote", `{}`, http.StatusBadRequest},
		{"wrong field", 1, "/api/comments/1/vote", `{"vote":"up"}`, http.StatusBadRequest},
		{"none string", 1, "/api/comments/1/vote", `{"vote_type":"none"}`, http.StatusBadRequest},
		{"unknown value", 1, "/api/comments/1/vote", `{"vote_type":"sideways"}`, http.StatusBadRequest},
		{"number", 1, "/api/comments/1/vote", `{"vote_type":1}`, http.StatusBadRequest},
		{"malformed json", 1, "/api/comments/1/vote", `{"vote_type":`, http.StatusBadRequest},
		{"body not object", 1, "/api/comments/1/vote", `"up"`, http.StatusBadRequest},
		{"bad comment id", 1, "/api/comments/abc/vote", `{"vote_type":"up"}`, http.StatusBadRequest},
		{"unknown comment", 1, "/api/comments/99/vote", `{"vote_type":"up"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVoteFixture(t)
			status, env := f.vote(t, tt.userID, tt.path, tt.body)

			assert.Equal(t, tt.want, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
			assert.Equal(t, votes.Counts{}, f.store.Counts(1))
		})
	}
}

func TestVoteComment_StoreFailure(t *testing.T) {
	f := newVoteFixture(t)
	f.store.FailOn(votes.OpIncrement, errors.New("connection reset"))

	status, env := f.vote(t, 3, "/api/comments/1/vote", `{"vote_type":"up"}`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, env.Success)
	assert.NotContains(t, env.Error, "connection reset")
	assert.Equal(t, votes.None, f.store.Vote(1, 3))
}

func TestParseVoteBody_Null(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"vote_type": null, "extra": 1}`))

	state, err := parseVoteBody(c)
	require.NoError(t, err)
	assert.Equal(t, votes.None, state)
}

func TestParseVoteBody_Strings(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := map[string]struct {
		body    string
		want    votes.State
		wantErr bool
	}{
		"up":      {body: `{"vote_type":"up"}`, want: votes.Up},
		"down":    {body: `{"vote_type":"down"}`, want: votes.Down},
		"none":    {body: `{"vote_type":"none"}`, wantErr: true},
		"upper":   {body: `{"vote_type":"UP"}`, wantErr: true},
		"empty":   {body: `{"vote_type":""}`, wantErr: true},
		"missing": {body: `{}`, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			state, err := parseVoteBody(c)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.TypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestValidCommentText(t *testing.T) {
	text, err := validCommentText("  see you there  ")
	require.NoError(t, err)
	assert.Equal(t, "see you there", text)

	_, err = validCommentText("   ")
	assert.Error(t, err)

	_, err = validCommentText(strings.Repeat("é", models.MaxCommentLength))
	assert.NoError(t, err, "limit counts characters, not bytes")

	_, err = validCommentText(strings.Repeat("a", models.MaxCommentLength+1))
	assert.Error(t, err)
}

func TestVoteComment_CancelledRequest(t *testing.T) {
	f := newVoteFixture(t)
	token, err := f.tokens.Issue(models.User{ID: 4})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/comments/1/vote", strings.NewReader(`{"vote_type":"up"}`)).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, votes.None, f.store.Vote(1, 4))
}
