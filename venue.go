package harmony

import (
	"context"
	"time"
)

type Venue interface {
	// Arrive blocks until the balance rule admits the actor and returns its admission token.
	// If ctx is done while the actor is still queued, the actor leaves the queue and
	// Error with status ErrorStatusCanceled is returned.
	Arrive(ctx context.Context, actor Actor) (*AdmissionToken, error)

	// EnterTable blocks until a table is free and assigns it to the admitted actor.
	EnterTable(ctx context.Context, token *AdmissionToken) (*TableHandle, error)

	// Depart releases the table, removes the actor from the venue and admits
	// whichever queued actors the balance rule now allows. It never blocks.
	Depart(ctx context.Context, token *AdmissionToken, table *TableHandle) error

	// Abandon removes an admitted actor that has not been seated.
	Abandon(ctx context.Context, token *AdmissionToken) error

	// Snapshot returns the current venue state.
	Snapshot() Snapshot
}

type Snapshot struct {
	RedCount     int
	BlueCount    int
	TablesTotal  int
	TablesFree   int
	RedWaiting   int
	BlueWaiting  int
	TableWaiting int
	RedServed    int
	BlueServed   int
}

// Count returns the number of admitted actors of the given color.
func (s Snapshot) Count(c Color) int {
	if c == ColorRed {
		return s.RedCount
	}
	return s.BlueCount
}

// Waiting returns the number of actors of the given color queued for admission.
func (s Snapshot) Waiting(c Color) int {
	if c == ColorRed {
		return s.RedWaiting
	}
	return s.BlueWaiting
}

func (s Snapshot) Served(c Color) int {
	if c == ColorRed {
		return s.RedServed
	}
	return s.BlueServed
}

type EventKind string

const (
	EventKindAdmitted    EventKind = "admitted"
	EventKindQueued      EventKind = "queued"
	EventKindTableQueued EventKind = "table_queued"
	EventKindSeated      EventKind = "seated"
	EventKindDeparted    EventKind = "departed"
	EventKindAbandoned   EventKind = "abandoned"
)

// Event describes one state transition of an actor. Snapshot is the venue state
// right after the transition. Seq increases with every transition of a venue;
// handlers may observe events out of Seq order.
type Event struct {
	Seq      uint64
	Kind     EventKind
	TokenID  string
	Actor    Actor
	Table    int
	Snapshot Snapshot
	Time     time.Time
}

const NoTable = -1
