package ledger

import (
	"context"
	"time"

	"dompet/internal/tables"
)

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

type OpKind string

// Result is the outcome of one remote call, delivered to the result hook
// and the failure notifier.
type Result struct {
	Kind       OpKind            `json:"kind"`
	Collection tables.Collection `json:"collection"`
	ID         string            `json:"id"`
	UserID     string            `json:"user_id,omitempty"`
	Err        error             `json:"-"`
	Error      string            `json:"error,omitempty"`
	At         time.Time         `json:"at"`
}

// Op tracks a remote call issued by a mutation. The mutation never waits
// for it; callers that care can.
//
// Two ops touching the same record run concurrently and may reach the
// remote store in either order.
type Op struct {
	Kind       OpKind
	Collection tables.Collection
	ID         string

	done chan struct{}
	err  error
}

func newOp(kind OpKind, c tables.Collection, id string) *Op {
	return &Op{Kind: kind, Collection: c, ID: id, done: make(chan struct{})}
}

func (o *Op) finish(err error) {
	o.err = err
	close(o.done)
}

// Done is closed once the remote call has returned.
func (o *Op) Done() <-chan struct{} { return o.done }

// Err returns the remote error once Done is closed, nil before.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Pending reports whether the remote call is still in flight.
func (o *Op) Pending() bool {
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the remote call returns or ctx ends.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll waits for every non-nil op and returns the first remote error.
func WaitAll(ctx context.Context, ops ...*Op) error {
	var first error
	for _, op := range ops {
		if op == nil {
			continue
		}
		if err := op.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
