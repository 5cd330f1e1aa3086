package votes

import (
	"context"
	"fmt"
	"sync"
)

// Op names a MemoryStore write that can be made to fail.
type Op string

const (
	OpInsertVote  Op = "insert_vote"
	OpUpdateVote  Op = "update_vote"
	OpDeleteVote  Op = "delete_vote"
	OpIncrement   Op = "increment"
	OpSetCounters Op = "set_counters"
)

// MemoryStore is an in-process Store with the same locking and rollback
// behavior as GormStore. Used by tests and local tooling.
type MemoryStore struct {
	mu       sync.RWMutex
	comments map[int]*memComment
	failures map[Op]error
}

type memComment struct {
	mu     sync.Mutex
	counts Counts
	votes  map[int]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		comments: make(map[int]*memComment),
		failures: make(map[Op]error),
	}
}

// AddComment registers a comment with zero totals.
func (s *MemoryStore) AddComment(commentID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[commentID]; !ok {
		s.comments[commentID] = &memComment{votes: make(map[int]State)}
	}
}

// RemoveComment drops a comment and its votes.
func (s *MemoryStore) RemoveComment(commentID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.comments, commentID)
}

// Counts returns the stored totals of commentID.
func (s *MemoryStore) Counts(commentID int) Counts {
	c := s.comment(commentID)
	if c == nil {
		return Counts{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// Vote returns userID's stored vote on commentID.
func (s *MemoryStore) Vote(commentID, userID int) State {
	c := s.comment(commentID)
	if c == nil {
		return None
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.votes[userID]; ok {
		return v
	}
	return None
}

// VoteCount returns how many vote rows commentID has.
func (s *MemoryStore) VoteCount(commentID int) int {
	c := s.comment(commentID)
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.votes)
}

// Corrupt overwrites the stored totals without touching the votes.
func (s *MemoryStore) Corrupt(commentID int, counts Counts) {
	c := s.comment(commentID)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = counts
}

// FailOn makes every later op return err. A nil err clears the failure.
func (s *MemoryStore) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemoryStore) comment(commentID int) *memComment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.comments[commentID]
}

func (s *MemoryStore) failure(op Op) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[op]
}

func (s *MemoryStore) WithinCommentLock(ctx context.Context, commentID int, fn func(tx Tx) error) error {
	c := s.comment(commentID)
	if c == nil {
		return ErrCommentNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	savedCounts := c.counts
	savedVotes := make(map[int]State, len(c.votes))
	for k, v := range c.votes {
		savedVotes[k] = v
	}

	err := fn(&memTx{store: s, c: c})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		c.counts = savedCounts
		c.votes = savedVotes
		return err
	}
	return nil
}

type memTx struct {
	store *MemoryStore
	c     *memComment
}

func (t *memTx) ExistingVote(userID int) (State, error) {
	if v, ok := t.c.votes[userID]; ok {
		return v, nil
	}
	return None, nil
}

func (t *memTx) InsertVote(userID int, s State) error {
	if err := t.store.failure(OpInsertVote); err != nil {
		return err
	}
	if _, ok := t.c.votes[userID]; ok {
		return fmt.Errorf("duplicate vote for user %d", userID)
	}
	t.c.votes[userID] = s
	return nil
}

func (t *memTx) UpdateVote(userID int, s State) error {
	if err := t.store.failure(OpUpdateVote); err != nil {
		return err
	}
	if _, ok := t.c.votes[userID]; !ok {
		return fmt.Errorf("no vote for user %d", userID)
	}
	t.c.votes[userID] = s
	return nil
}

func (t *memTx) DeleteVote(userID int) error {
	if err := t.store.failure(OpDeleteVote); err != nil {
		return err
	}
	delete(t.c.votes, userID)
	return nil
}

func (t *memTx) Increment(field Field, by int) error {
	if err := t.store.failure(OpIncrement); err != nil {
		return err
	}
	switch field {
	case FieldUpvotes:
		t.c.counts.Upvotes = max(t.c.counts.Upvotes+by, 0)
	case FieldDownvotes:
		t.c.counts.Downvotes = max(t.c.counts.Downvotes+by, 0)
	default:
		return fmt.Errorf("%w: counter field %q", ErrInvalidArgument, field)
	}
	return nil
}

func (t *memTx) Read() (Counts, error) {
	return t.c.counts, nil
}

func (t *memTx) CountVotes() (Counts, error) {
	var counts Counts
	for _, v := range t.c.votes {
		switch v {
		case Up:
			counts.Upvotes++
		case Down:
			counts.Downvotes++
		}
	}
	return counts, nil
}

func (t *memTx) SetCounters(c Counts) error {
	if err := t.store.failure(OpSetCounters); err != nil {
		return err
	}
	t.c.counts = c
	return nil
}
