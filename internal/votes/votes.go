// Package votes reconciles a user's desired vote on a comment with the stored
// vote row and the comment's running totals.
package votes

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrReconciliationFailed = errors.New("vote reconciliation failed")
)

// State is a voter's vote on a comment. None means no vote row exists.
type State string

const (
	None State = "none"
	Up   State = "up"
	Down State = "down"
)

func (s State) Valid() bool {
	return s == None || s == Up || s == Down
}

// ParseState accepts "up", "down" and "none".
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: vote state %q", ErrInvalidArgument, raw)
	}
	return s, nil
}

// Counts are a comment's aggregate totals.
type Counts struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// MembershipOp is the change applied to the vote row.
type MembershipOp int

const (
	Keep MembershipOp = iota
	Insert
	Update
	Delete
)

func (op MembershipOp) String() string {
	switch op {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "keep"
	}
}

// Transition is the full mutation set for moving one voter from Existing to
// Desired.
type Transition struct {
	Existing   State
	Desired    State
	Membership MembershipOp
	UpDelta    int
	DownDelta  int
}

// NoOp reports whether nothing needs to be written.
func (t Transition) NoOp() bool {
	return t.Membership == Keep && t.UpDelta == 0 && t.DownDelta == 0
}

func (t Transition) String() string {
	return string(t.Existing) + "->" + string(t.Desired)
}

// Plan maps (existing, desired) to the mutations that move a voter between
// them. Both states must be valid; anything else yields a no-op.
func Plan(existing, desired State) Transition {
	t := Transition{Existing: existing, Desired: desired}
	if !existing.Valid() || !desired.Valid() || existing == desired {
		return t
	}

	switch existing {
	case None:
		t.Membership = Insert
	case Up:
		t.UpDelta = -1
	case Down:
		t.DownDelta = -1
	}

	switch desired {
	case None:
		t.Membership = Delete
	case Up:
		t.UpDelta++
	case Down:
		t.DownDelta++
	}

	if existing != None && desired != None {
		t.Membership = Update
	}
	return t
}
