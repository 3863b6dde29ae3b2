package harmonyredis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/rueidis"
)

// subscribe delivers a signal on changed whenever a message arrives on pubsubChannelName.
// Signals coalesce: a reader that falls behind sees one pending signal, not one per message.
func subscribe(ctx context.Context, c rueidis.DedicatedClient, pubsubChannelName string) (changed <-chan struct{}, wait <-chan error, err error) {
	subscribed := make(chan struct{})
	var subscribedOnce sync.Once
	signal := make(chan struct{}, 1)
	// > wait channel is guaranteed to be close when the hooks will not be called anymore,
	// > and produce at most one error describing the reason.
	// https://pkg.go.dev/github.com/rueian/rueidis#readme-alternative-pubsub-hooks
	wait = c.SetPubSubHooks(rueidis.PubSubHooks{
		OnMessage: func(msg rueidis.PubSubMessage) {
			if msg.Channel != pubsubChannelName {
				return
			}
			select {
			case signal <- struct{}{}:
			default:
			}
		},
		OnSubscription: func(s rueidis.PubSubSubscription) {
			if s.Kind == "subscribe" && s.Channel == pubsubChannelName {
				subscribedOnce.Do(func() { close(subscribed) })
			}
		},
	})
	cmd := c.B().Subscribe().Channel(pubsubChannelName).Build()
	if err := c.Do(ctx, cmd).Error(); err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to channel '%s': %w", pubsubChannelName, err)
	}

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case err := <-wait:
		return nil, nil, fmt.Errorf("subscription has been closed '%s': %w", pubsubChannelName, err)
	case <-subscribed:
	}
	return signal, wait, nil
}
