package harmonyredis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/castaneai/harmony"
)

const (
	defaultFollowChannelBufferSize = 1024
)

// JournalEntry is one event read back from the journal stream.
type JournalEntry struct {
	ID    string
	Event harmony.Event
}

// VenueState is the latest snapshot mirrored by a Journal.
type VenueState struct {
	Seq      uint64
	Snapshot harmony.Snapshot
}

type Reader struct {
	keyPrefix string
	venueName string
	client    rueidis.Client
}

func NewReader(keyPrefix, venueName string, client rueidis.Client) *Reader {
	return &Reader{keyPrefix: keyPrefix, venueName: venueName, client: client}
}

// GetState returns the latest mirrored snapshot.
// If nothing has been journaled yet, Error is returned with status: ErrorStatusNotFound.
func (r *Reader) GetState(ctx context.Context) (*VenueState, error) {
	key := redisKeyVenueState(r.keyPrefix, r.venueName)
	fields, err := r.client.Do(ctx, r.client.B().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, harmony.NewError(harmony.ErrorStatusUnknown, fmt.Errorf("failed to get venue state: %w", err))
	}
	if len(fields) == 0 {
		return nil, harmony.NewError(harmony.ErrorStatusNotFound, fmt.Errorf("no state journaled for venue '%s'", r.venueName))
	}
	seq, err := strconv.ParseUint(fields[redisFieldSeq], 10, 64)
	if err != nil {
		return nil, harmony.NewError(harmony.ErrorStatusUnknown, fmt.Errorf("failed to parse venue state seq: %w", err))
	}
	snapshot, err := decodeSnapshot(fields)
	if err != nil {
		return nil, harmony.NewError(harmony.ErrorStatusUnknown, fmt.Errorf("failed to decode venue state: %w", err))
	}
	return &VenueState{Seq: seq, Snapshot: snapshot}, nil
}

// ReadEvents returns up to count events journaled after the entry afterID.
// Use "0" to read from the beginning.
func (r *Reader) ReadEvents(ctx context.Context, afterID string, count int64) ([]JournalEntry, error) {
	if afterID == "" {
		afterID = "0"
	}
	stream := redisKeyVenueEventStream(r.keyPrefix, r.venueName)
	cmd := r.client.B().Xread().Count(count).Streams().Key(stream).Id(afterID).Build()
	reply, err := r.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, harmony.NewError(harmony.ErrorStatusUnknown, fmt.Errorf("failed to read venue events: %w", err))
	}
	return decodeEntries(reply[stream])
}

// Follow streams journaled events as they arrive until ctx is done.
func (r *Reader) Follow(ctx context.Context, afterID string) <-chan JournalEntry {
	if afterID == "" {
		afterID = "0"
	}
	ch := make(chan JournalEntry, defaultFollowChannelBufferSize)
	stream := redisKeyVenueEventStream(r.keyPrefix, r.venueName)
	go func() {
		defer close(ch)
		lastID := afterID
		for {
			if ctx.Err() != nil {
				return
			}
			// https://redis.io/docs/latest/develop/data-types/streams/#listening-for-new-items-with-xread
			cmd := r.client.B().Xread().Block(0).Streams().Key(stream).Id(lastID).Build()
			reply, err := r.client.Do(ctx, cmd).AsXRead()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !rueidis.IsRedisNil(err) {
					err = fmt.Errorf("failed to parse XREAD reply: %w", err)
					slog.Error(err.Error(), "error", err)
					time.Sleep(time.Second)
				}
				continue
			}
			for _, entry := range reply[stream] {
				lastID = entry.ID
				ev, err := decodeEvent(entry.FieldValues)
				if err != nil {
					err = fmt.Errorf("failed to decode venue event '%s': %w", entry.ID, err)
					slog.Error(err.Error(), "error", err)
					continue
				}
				select {
				case ch <- JournalEntry{ID: entry.ID, Event: *ev}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

// WatchState emits the mirrored state whenever a Journal updates it, until ctx is done.
// It returns once the subscription is in place, so no later update goes unnoticed.
// Updates arriving faster than they are consumed are collapsed into the newest state.
func (r *Reader) WatchState(ctx context.Context) (<-chan VenueState, error) {
	dc, release := r.client.Dedicate()
	changed, wait, err := subscribe(ctx, dc, redisPubSubChannelVenueState(r.keyPrefix, r.venueName))
	if err != nil {
		release()
		return nil, harmony.NewError(harmony.ErrorStatusUnknown, err)
	}
	ch := make(chan VenueState, defaultFollowChannelBufferSize)
	go func() {
		defer close(ch)
		defer release()
		var lastSeq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-wait:
				if ctx.Err() == nil {
					err = fmt.Errorf("venue state subscription closed: %w", err)
					slog.Error(err.Error(), "error", err)
				}
				return
			case <-changed:
				state, err := r.GetState(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Error(err.Error(), "error", err)
					continue
				}
				if state.Seq <= lastSeq {
					continue
				}
				lastSeq = state.Seq
				select {
				case ch <- *state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func decodeEntries(entries []rueidis.XRangeEntry) ([]JournalEntry, error) {
	result := make([]JournalEntry, 0, len(entries))
	for _, entry := range entries {
		ev, err := decodeEvent(entry.FieldValues)
		if err != nil {
			return nil, harmony.NewError(harmony.ErrorStatusUnknown, fmt.Errorf("failed to decode venue event '%s': %w", entry.ID, err))
		}
		result = append(result, JournalEntry{ID: entry.ID, Event: *ev})
	}
	return result, nil
}
