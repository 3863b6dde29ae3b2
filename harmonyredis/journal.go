package harmonyredis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/castaneai/harmony"
)

const (
	defaultJournalBufferSize = 1024
	journalWriteTimeout      = 5 * time.Second
)

// Journal streams venue events to Redis and mirrors the latest snapshot into a hash,
// announcing each mirrored snapshot on a pub/sub channel.
// Handle never blocks the caller; events are written by a single background goroutine.
type Journal struct {
	keyPrefix string
	venueName string
	client    rueidis.Client
	events    chan harmony.Event
	done      chan struct{}
	// last seq mirrored into the state hash, only touched by the writer goroutine
	lastSeq uint64

	mu     sync.RWMutex
	closed bool
}

func NewJournal(keyPrefix, venueName string, client rueidis.Client) *Journal {
	j := &Journal{
		keyPrefix: keyPrefix,
		venueName: venueName,
		client:    client,
		events:    make(chan harmony.Event, defaultJournalBufferSize),
		done:      make(chan struct{}),
	}
	go j.run()
	return j
}

// Handle enqueues ev for writing. It is meant to be passed to harmony.WithEventHandler.
func (j *Journal) Handle(ev harmony.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.events <- ev:
	default:
		slog.Error(fmt.Sprintf("venue event dropped because the journal buffer is full: %s %s", ev.Actor, ev.Kind))
	}
}

// Close stops accepting events and waits until the buffered ones are written.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.events)
	}
	j.mu.Unlock()
	<-j.done
}

func (j *Journal) run() {
	defer close(j.done)
	for ev := range j.events {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		if err := j.write(ctx, ev); err != nil {
			err = fmt.Errorf("failed to write venue event to journal: %w", err)
			slog.Error(err.Error(), "error", err)
		}
		cancel()
	}
}

func (j *Journal) write(ctx context.Context, ev harmony.Event) error {
	stream := redisKeyVenueEventStream(j.keyPrefix, j.venueName)
	xadd := j.client.B().Xadd().Key(stream).Id("*").FieldValue()
	for _, fv := range encodeEvent(ev) {
		xadd = xadd.FieldValue(fv.field, fv.value)
	}
	cmds := []rueidis.Completed{xadd.Build()}

	// events may be handed over out of order; never let an older snapshot win
	mirror := ev.Seq > j.lastSeq
	if mirror {
		hset := j.client.B().Hset().Key(redisKeyVenueState(j.keyPrefix, j.venueName)).FieldValue().
			FieldValue(redisFieldSeq, strconv.FormatUint(ev.Seq, 10))
		for _, fv := range encodeSnapshot(ev.Snapshot) {
			hset = hset.FieldValue(fv.field, fv.value)
		}
		cmds = append(cmds, hset.Build())
		cmds = append(cmds, j.client.B().Publish().
			Channel(redisPubSubChannelVenueState(j.keyPrefix, j.venueName)).
			Message(strconv.FormatUint(ev.Seq, 10)).Build())
	}
	for _, res := range j.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("failed to record event %d (%s %s): %w", ev.Seq, ev.Actor, ev.Kind, err)
		}
	}
	if mirror {
		j.lastSeq = ev.Seq
	}
	return nil
}
