package harmonyredis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
)

const (
	testingKeyPrefix = "harmonytest:"
	testingVenueName = "sweet-harmony"
	chanReadTimeout  = 10 * time.Second
)

func newRedisClientWithMiniRedis(t *testing.T) (rueidis.Client, *miniredis.Miniredis) {
	t.Helper()
	r := miniredis.RunT(t)
	t.Cleanup(func() { r.Close() })
	client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{r.Addr()}, DisableCache: true})
	if err != nil {
		t.Fatalf("failed to create redis client: %+v", err)
	}
	t.Cleanup(client.Close)
	return client, r
}

func mustReadChan[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(chanReadTimeout):
		t.Fatalf("timed out waiting for channel")
	}
	panic("unreachable")
}
