package harmony

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type TokenState string

const (
	TokenStateWaitingBalance TokenState = "waiting_balance"
	TokenStateAdmitted       TokenState = "admitted"
	TokenStateWaitingTable   TokenState = "waiting_table"
	TokenStateSeated         TokenState = "seated"
	TokenStateDeparted       TokenState = "departed"
	TokenStateAbandoned      TokenState = "abandoned"
)

// AdmissionToken is issued by Arrive and identifies an actor inside the venue.
type AdmissionToken struct {
	id    string
	actor Actor
	owner *Controller
	// closed once the actor is admitted
	admitted chan struct{}
	// closed once the actor is seated
	seated chan struct{}

	// GUARDED_BY(owner.mu)
	state TokenState
	elem  *list.Element
	table *TableHandle
}

func (t *AdmissionToken) ID() string {
	return t.id
}

func (t *AdmissionToken) Actor() Actor {
	return t.actor
}

func (t *AdmissionToken) State() TokenState {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.state
}

// TableHandle is the exclusive claim of one actor on one table.
type TableHandle struct {
	table int
	token *AdmissionToken
	// GUARDED_BY(token.owner.mu)
	released bool
}

func (h *TableHandle) Table() int {
	return h.table
}

// Controller is the in-memory admission controller. All state transitions happen
// under mu; blocked callers wait on per-token channels closed by the transition
// that admits or seats them.
type Controller struct {
	maxWaiting    int
	eventHandlers []func(Event)
	logger        *slog.Logger

	mu sync.Mutex
	// INVARIANT: counts[c] >= 0
	counts  [2]int
	served  [2]int
	waiting [2]*list.List
	tables  *tablePool
	live    map[string]*AdmissionToken
	seq     uint64
}

var _ Venue = (*Controller)(nil)

func NewController(tablesTotal int, opts ...Option) (*Controller, error) {
	if tablesTotal <= 0 {
		return nil, NewError(ErrorStatusCapacityExceeded, fmt.Errorf("tables must be positive, got %d", tablesTotal))
	}
	c := &Controller{
		waiting: [2]*list.List{list.New(), list.New()},
		tables:  newTablePool(tablesTotal),
		live:    make(map[string]*AdmissionToken),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.maxWaiting < 0 {
		return nil, NewError(ErrorStatusInvalidRequest, fmt.Errorf("max waiting must not be negative, got %d", c.maxWaiting))
	}
	return c, nil
}

func (c *Controller) Arrive(ctx context.Context, actor Actor) (*AdmissionToken, error) {
	if actor.ID == "" {
		return nil, NewError(ErrorStatusInvalidRequest, errors.New("missing actor id"))
	}
	if !actor.Color.valid() {
		return nil, NewError(ErrorStatusInvalidRequest, fmt.Errorf("invalid color: %s", actor.Color))
	}

	var events []Event
	c.mu.Lock()
	if _, ok := c.live[actor.ID]; ok {
		c.mu.Unlock()
		return nil, NewError(ErrorStatusInvalidState, fmt.Errorf("actor '%s' is already in the venue", actor.ID))
	}
	queue := c.waiting[actor.Color]
	token := &AdmissionToken{
		id:       uuid.NewString(),
		actor:    actor,
		owner:    c,
		admitted: make(chan struct{}),
		seated:   make(chan struct{}),
	}
	if queue.Len() == 0 && c.admittable(actor.Color) {
		c.live[actor.ID] = token
		events = c.admit(events, token)
		c.mu.Unlock()
		c.dispatch(events)
		return token, nil
	}
	if c.maxWaiting > 0 && queue.Len() >= c.maxWaiting {
		c.mu.Unlock()
		return nil, NewError(ErrorStatusResourceExhausted, fmt.Errorf("%s queue is full (%d)", actor.Color, c.maxWaiting))
	}
	c.live[actor.ID] = token
	token.state = TokenStateWaitingBalance
	token.elem = queue.PushBack(token)
	events = c.appendEvent(events, EventKindQueued, token, NoTable)
	c.mu.Unlock()
	c.dispatch(events)

	select {
	case <-token.admitted:
		return token, nil
	case <-ctx.Done():
	}

	c.mu.Lock()
	select {
	case <-token.admitted:
		// admitted concurrently with the cancellation; the admission stands
		c.mu.Unlock()
		return token, nil
	default:
	}
	queue.Remove(token.elem)
	token.elem = nil
	token.state = TokenStateAbandoned
	delete(c.live, actor.ID)
	events = c.appendEvent(events[:0], EventKindAbandoned, token, NoTable)
	c.mu.Unlock()
	c.dispatch(events)
	return nil, NewError(ErrorStatusCanceled, fmt.Errorf("actor '%s' gave up waiting for admission: %w", actor.ID, ctx.Err()))
}

func (c *Controller) EnterTable(ctx context.Context, token *AdmissionToken) (*TableHandle, error) {
	if err := c.checkOwner(token); err != nil {
		return nil, err
	}

	var events []Event
	c.mu.Lock()
	if token.state != TokenStateAdmitted {
		c.mu.Unlock()
		return nil, NewError(ErrorStatusInvalidState, fmt.Errorf("actor '%s' cannot take a table in state %s", token.actor.ID, token.state))
	}
	if table, ok := c.tables.tryAcquire(); ok {
		events = c.seat(events, token, table)
		handle := token.table
		c.mu.Unlock()
		c.dispatch(events)
		return handle, nil
	}
	token.state = TokenStateWaitingTable
	token.elem = c.tables.enqueue(token)
	events = c.appendEvent(events, EventKindTableQueued, token, NoTable)
	c.mu.Unlock()
	c.dispatch(events)

	select {
	case <-token.seated:
		return c.tableOf(token), nil
	case <-ctx.Done():
	}

	c.mu.Lock()
	select {
	case <-token.seated:
		c.mu.Unlock()
		return c.tableOf(token), nil
	default:
	}
	c.tables.remove(token.elem)
	token.elem = nil
	token.state = TokenStateAdmitted
	c.mu.Unlock()
	return nil, NewError(ErrorStatusCanceled, fmt.Errorf("actor '%s' gave up waiting for a table: %w", token.actor.ID, ctx.Err()))
}

func (c *Controller) Depart(ctx context.Context, token *AdmissionToken, table *TableHandle) error {
	if err := c.checkOwner(token); err != nil {
		return err
	}
	if table == nil {
		return NewError(ErrorStatusInvalidState, errors.New("missing table handle"))
	}

	var events []Event
	c.mu.Lock()
	if token.state != TokenStateSeated {
		c.mu.Unlock()
		return NewError(ErrorStatusInvalidState, fmt.Errorf("actor '%s' cannot depart in state %s", token.actor.ID, token.state))
	}
	if table.token != token || table.released {
		c.mu.Unlock()
		return NewError(ErrorStatusInvalidState, fmt.Errorf("table handle %d is not held by actor '%s'", table.table, token.actor.ID))
	}

	table.released = true
	token.table = nil
	token.state = TokenStateDeparted
	delete(c.live, token.actor.ID)
	c.counts[token.actor.Color]--
	c.served[token.actor.Color]++
	next := c.tables.release(table.table)
	events = c.appendEvent(events, EventKindDeparted, token, table.table)
	if next != nil {
		next.elem = nil
		events = c.seat(events, next, table.table)
	}
	events = c.reevaluate(events)
	c.mu.Unlock()
	c.dispatch(events)
	return nil
}

func (c *Controller) Abandon(ctx context.Context, token *AdmissionToken) error {
	if err := c.checkOwner(token); err != nil {
		return err
	}

	var events []Event
	c.mu.Lock()
	if token.state != TokenStateAdmitted {
		c.mu.Unlock()
		return NewError(ErrorStatusInvalidState, fmt.Errorf("actor '%s' cannot abandon in state %s", token.actor.ID, token.state))
	}
	token.state = TokenStateAbandoned
	delete(c.live, token.actor.ID)
	c.counts[token.actor.Color]--
	events = c.appendEvent(events, EventKindAbandoned, token, NoTable)
	events = c.reevaluate(events)
	c.mu.Unlock()
	c.dispatch(events)
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) checkOwner(token *AdmissionToken) error {
	if token == nil {
		return NewError(ErrorStatusInvalidState, errors.New("missing admission token"))
	}
	if token.owner != c {
		return NewError(ErrorStatusInvalidState, fmt.Errorf("admission token of actor '%s' was issued by another venue", token.actor.ID))
	}
	return nil
}

func (c *Controller) tableOf(token *AdmissionToken) *TableHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token.table
}

// admittable reports whether an actor of the given color may be admitted now:
// either the venue is empty or the color is strictly behind the other one.
func (c *Controller) admittable(color Color) bool {
	if c.counts[ColorRed] == 0 && c.counts[ColorBlue] == 0 {
		return true
	}
	return c.counts[color] < c.counts[color.Other()]
}

func (c *Controller) admit(events []Event, token *AdmissionToken) []Event {
	c.counts[token.actor.Color]++
	token.state = TokenStateAdmitted
	close(token.admitted)
	return c.appendEvent(events, EventKindAdmitted, token, NoTable)
}

func (c *Controller) seat(events []Event, token *AdmissionToken, table int) []Event {
	token.table = &TableHandle{table: table, token: token}
	token.state = TokenStateSeated
	close(token.seated)
	return c.appendEvent(events, EventKindSeated, token, table)
}

// reevaluate admits queued actors, oldest first within a color, until the balance
// rule admits nobody else.
// INVARIANT: on return no queued actor is admittable. A venue that empties therefore has
// at most one non-empty queue, since the other color was strictly behind before.
func (c *Controller) reevaluate(events []Event) []Event {
	for {
		color, ok := c.nextAdmittable()
		if !ok {
			return events
		}
		front := c.waiting[color].Front()
		c.waiting[color].Remove(front)
		token := front.Value.(*AdmissionToken)
		token.elem = nil
		events = c.admit(events, token)
	}
}

func (c *Controller) nextAdmittable() (Color, bool) {
	for _, color := range Colors {
		if c.waiting[color].Len() > 0 && c.admittable(color) {
			return color, true
		}
	}
	return 0, false
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		RedCount:     c.counts[ColorRed],
		BlueCount:    c.counts[ColorBlue],
		TablesTotal:  c.tables.total,
		TablesFree:   c.tables.freeCount(),
		RedWaiting:   c.waiting[ColorRed].Len(),
		BlueWaiting:  c.waiting[ColorBlue].Len(),
		TableWaiting: c.tables.waiters.Len(),
		RedServed:    c.served[ColorRed],
		BlueServed:   c.served[ColorBlue],
	}
}

func (c *Controller) appendEvent(events []Event, kind EventKind, token *AdmissionToken, table int) []Event {
	if len(c.eventHandlers) == 0 && !c.logger.Enabled(context.Background(), slog.LevelDebug) {
		return events
	}
	c.seq++
	return append(events, Event{
		Seq:      c.seq,
		Kind:     kind,
		TokenID:  token.id,
		Actor:    token.actor,
		Table:    table,
		Snapshot: c.snapshot(),
		Time:     time.Now(),
	})
}

func (c *Controller) dispatch(events []Event) {
	for _, ev := range events {
		c.logger.Debug(fmt.Sprintf("%s %s (R=%d, B=%d, free tables=%d)", ev.Actor, ev.Kind, ev.Snapshot.RedCount, ev.Snapshot.BlueCount, ev.Snapshot.TablesFree),
			"token_id", ev.TokenID, "table", ev.Table)
		for _, h := range c.eventHandlers {
			h(ev)
		}
	}
}
