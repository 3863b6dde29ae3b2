// Package simulator drives a harmony.Venue with a population of red and blue customers,
// one goroutine per customer.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"golang.org/x/sync/errgroup"

	"github.com/castaneai/harmony"
)

type Config struct {
	RedCustomers  int
	BlueCustomers int
	// StayMin and StayMax bound the time a customer keeps its table.
	StayMin time.Duration
	StayMax time.Duration
	// ArrivalInterval spaces consecutive arrivals.
	ArrivalInterval time.Duration
	// ArrivalRatePerSecond caps arrivals per color. Zero disables the cap.
	ArrivalRatePerSecond int
	// WaitTimeout is how long a customer waits for admission and a table before
	// leaving. Zero means customers wait forever.
	WaitTimeout time.Duration
}

func (c Config) Validate() error {
	if c.RedCustomers < 0 || c.BlueCustomers < 0 {
		return harmony.NewError(harmony.ErrorStatusInvalidRequest, errors.New("customer counts must not be negative"))
	}
	if c.StayMin < 0 || c.StayMax < c.StayMin {
		return harmony.NewError(harmony.ErrorStatusInvalidRequest, fmt.Errorf("invalid stay range [%s, %s]", c.StayMin, c.StayMax))
	}
	if c.ArrivalInterval < 0 || c.WaitTimeout < 0 || c.ArrivalRatePerSecond < 0 {
		return harmony.NewError(harmony.ErrorStatusInvalidRequest, errors.New("intervals and rates must not be negative"))
	}
	return nil
}

type Summary struct {
	RedServed     int
	BlueServed    int
	RedAbandoned  int
	BlueAbandoned int
	// MaxSeated is the highest number of customers seated at the same time.
	MaxSeated int
}

func (s *Summary) Total() int {
	return s.RedServed + s.BlueServed
}

type stats struct {
	served    [2]atomic.Int64
	abandoned [2]atomic.Int64
	seated    atomic.Int64
	maxSeated atomic.Int64
}

func (s *stats) sit() {
	n := s.seated.Add(1)
	for {
		cur := s.maxSeated.Load()
		if n <= cur || s.maxSeated.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Run lets every customer visit the venue once and returns when all of them have left.
func Run(ctx context.Context, venue harmony.Venue, cfg Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var limiter *catrate.Limiter
	if cfg.ArrivalRatePerSecond > 0 {
		limiter = catrate.NewLimiter(map[time.Duration]int{time.Second: cfg.ArrivalRatePerSecond})
	}

	st := &stats{}
	eg, egCtx := errgroup.WithContext(ctx)
	for i, actor := range arrivalOrder(cfg.RedCustomers, cfg.BlueCustomers) {
		if i > 0 && cfg.ArrivalInterval > 0 {
			if err := sleep(egCtx, cfg.ArrivalInterval); err != nil {
				break
			}
		}
		if err := throttle(egCtx, limiter, actor.Color); err != nil {
			break
		}
		eg.Go(func() error {
			return visit(egCtx, venue, actor, cfg, st)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Summary{
		RedServed:     int(st.served[harmony.ColorRed].Load()),
		BlueServed:    int(st.served[harmony.ColorBlue].Load()),
		RedAbandoned:  int(st.abandoned[harmony.ColorRed].Load()),
		BlueAbandoned: int(st.abandoned[harmony.ColorBlue].Load()),
		MaxSeated:     int(st.maxSeated.Load()),
	}, nil
}

// arrivalOrder interleaves the two colors, red first.
func arrivalOrder(reds, blues int) []harmony.Actor {
	actors := make([]harmony.Actor, 0, reds+blues)
	for i := 0; i < reds || i < blues; i++ {
		if i < reds {
			actors = append(actors, harmony.Actor{ID: fmt.Sprintf("red-%d", i+1), Color: harmony.ColorRed})
		}
		if i < blues {
			actors = append(actors, harmony.Actor{ID: fmt.Sprintf("blue-%d", i+1), Color: harmony.ColorBlue})
		}
	}
	return actors
}

func throttle(ctx context.Context, limiter *catrate.Limiter, color harmony.Color) error {
	if limiter == nil {
		return nil
	}
	for {
		next, ok := limiter.Allow(color)
		if ok {
			return nil
		}
		if err := sleep(ctx, time.Until(next)); err != nil {
			return err
		}
	}
}

func visit(ctx context.Context, venue harmony.Venue, actor harmony.Actor, cfg Config, st *stats) error {
	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.WaitTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, cfg.WaitTimeout)
	}
	defer cancel()

	slog.Debug(fmt.Sprintf("%s arrives", actor))
	token, err := venue.Arrive(waitCtx, actor)
	if err != nil {
		if gaveUp(ctx, err) {
			slog.Info(fmt.Sprintf("%s gave up waiting to enter", actor))
			st.abandoned[actor.Color].Add(1)
			return nil
		}
		return fmt.Errorf("%s failed to enter: %w", actor, err)
	}

	table, err := venue.EnterTable(waitCtx, token)
	if err != nil {
		if harmony.ErrorHasStatus(err, harmony.ErrorStatusCanceled) {
			if abandonErr := venue.Abandon(context.WithoutCancel(ctx), token); abandonErr != nil {
				return fmt.Errorf("%s failed to leave: %w", actor, abandonErr)
			}
		}
		if gaveUp(ctx, err) {
			slog.Info(fmt.Sprintf("%s gave up waiting for a table", actor))
			st.abandoned[actor.Color].Add(1)
			return nil
		}
		return fmt.Errorf("%s failed to take a table: %w", actor, err)
	}
	st.sit()
	slog.Debug(fmt.Sprintf("%s sits at table %d", actor, table.Table()))

	stayErr := sleep(ctx, stayDuration(cfg))
	st.seated.Add(-1)
	if err := venue.Depart(context.WithoutCancel(ctx), token, table); err != nil {
		return fmt.Errorf("%s failed to depart: %w", actor, err)
	}
	if stayErr != nil {
		return stayErr
	}
	st.served[actor.Color].Add(1)
	slog.Debug(fmt.Sprintf("%s leaves table %d", actor, table.Table()))
	return nil
}

// gaveUp reports whether err is the customer's own wait timeout rather than a shutdown.
func gaveUp(ctx context.Context, err error) bool {
	return harmony.ErrorHasStatus(err, harmony.ErrorStatusCanceled) && ctx.Err() == nil
}

func stayDuration(cfg Config) time.Duration {
	if cfg.StayMax <= cfg.StayMin {
		return cfg.StayMin
	}
	return cfg.StayMin + rand.N(cfg.StayMax-cfg.StayMin+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
