package votes

import "context"

// Field selects one of a comment's two counters.
type Field string

const (
	FieldUpvotes   Field = "upvotes"
	FieldDownvotes Field = "downvotes"
)

// CounterStore holds the totals of the comment a Tx is bound to. Decrements
// clamp at zero.
type CounterStore interface {
	Increment(field Field, by int) error
	Read() (Counts, error)
}

// Tx is one unit of work on a single locked comment. Every write made through
// it commits or rolls back together.
type Tx interface {
	CounterStore

	// ExistingVote returns None when the voter has no row.
	ExistingVote(userID int) (State, error)
	InsertVote(userID int, s State) error
	UpdateVote(userID int, s State) error
	DeleteVote(userID int) error

	// CountVotes counts the vote rows by type.
	CountVotes() (Counts, error)
	SetCounters(c Counts) error
}

// Store runs fn while holding exclusive access to commentID. It returns
// ErrCommentNotFound when the comment does not exist, and discards every
// write made through tx when fn returns an error.
type Store interface {
	WithinCommentLock(ctx context.Context, commentID int, fn func(tx Tx) error) error
}
