package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/emilythestrangee/campus-events/backend/internal/logging"
	"github.com/emilythestrangee/campus-events/backend/internal/metrics"
)

// Reconciler is the only writer of comment votes and comment counters.
type Reconciler struct {
	store    Store
	selfHeal bool
}

type Option func(*Reconciler)

// WithSelfHeal makes every reconciliation recount the vote rows and overwrite
// drifted counters.
func WithSelfHeal(enabled bool) Option {
	return func(r *Reconciler) {
		r.selfHeal = enabled
	}
}

func NewReconciler(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile moves userID's vote on commentID to desired and returns the
// comment's totals afterwards. Repeating a call with the same desired state
// changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, commentID, userID int, desired State) (Counts, error) {
	if commentID <= 0 || userID <= 0 || !desired.Valid() {
		return Counts{}, ErrInvalidArgument
	}

	var (
		result     Counts
		transition Transition
	)
	err := r.store.WithinCommentLock(ctx, commentID, func(tx Tx) error {
		existing, err := tx.ExistingVote(userID)
		if err != nil {
			return fmt.Errorf("read vote: %w", err)
		}

		transition = Plan(existing, desired)
		if err := apply(tx, userID, transition); err != nil {
			return err
		}

		counts, err := tx.Read()
		if err != nil {
			return fmt.Errorf("read counters: %w", err)
		}

		if r.selfHeal {
			if counts, err = r.heal(tx, commentID, counts); err != nil {
				return err
			}
		}

		result = counts
		return nil
	})
	if errors.Is(err, ErrCommentNotFound) {
		return Counts{}, ErrCommentNotFound
	}
	if err != nil {
		return Counts{}, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}

	metrics.VotesReconciledTotal.WithLabelValues(transition.String()).Inc()
	return result, nil
}

func apply(tx Tx, userID int, t Transition) error {
	var err error
	switch t.Membership {
	case Insert:
		err = tx.InsertVote(userID, t.Desired)
	case Update:
		err = tx.UpdateVote(userID, t.Desired)
	case Delete:
		err = tx.DeleteVote(userID)
	}
	if err != nil {
		return fmt.Errorf("%s vote: %w", t.Membership, err)
	}

	if t.UpDelta != 0 {
		if err := tx.Increment(FieldUpvotes, t.UpDelta); err != nil {
			return fmt.Errorf("increment upvotes: %w", err)
		}
	}
	if t.DownDelta != 0 {
		if err := tx.Increment(FieldDownvotes, t.DownDelta); err != nil {
			return fmt.Errorf("increment downvotes: %w", err)
		}
	}
	return nil
}

func (r *Reconciler) heal(tx Tx, commentID int, stored Counts) (Counts, error) {
	actual, err := tx.CountVotes()
	if err != nil {
		return Counts{}, fmt.Errorf("count votes: %w", err)
	}
	if actual == stored {
		return stored, nil
	}

	if err := tx.SetCounters(actual); err != nil {
		return Counts{}, fmt.Errorf("repair counters: %w", err)
	}

	logger := logging.WithComment(commentID)
	logger.Warn().
		Int("stored_upvotes", stored.Upvotes).
		Int("stored_downvotes", stored.Downvotes).
		Int("upvotes", actual.Upvotes).
		Int("downvotes", actual.Downvotes).
		Msg("comment vote counters drifted, repaired")
	metrics.CounterDriftRepairedTotal.Inc()

	return actual, nil
}
