package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castaneai/harmony"
)

func TestRunServesEveryone(t *testing.T) {
	venue, err := harmony.NewController(2)
	require.NoError(t, err)

	summary, err := Run(t.Context(), venue, Config{
		RedCustomers:  6,
		BlueCustomers: 4,
		StayMin:       time.Millisecond,
		StayMax:       3 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, 6, summary.RedServed)
	require.Equal(t, 4, summary.BlueServed)
	require.Equal(t, 10, summary.Total())
	require.Zero(t, summary.RedAbandoned+summary.BlueAbandoned)
	require.LessOrEqual(t, summary.MaxSeated, 2)
	require.GreaterOrEqual(t, summary.MaxSeated, 1)

	s := venue.Snapshot()
	require.Equal(t, 6, s.RedServed)
	require.Equal(t, 4, s.BlueServed)
	require.Equal(t, 2, s.TablesFree)
}

func TestRunImpatientCustomersLeave(t *testing.T) {
	venue, err := harmony.NewController(1)
	require.NoError(t, err)

	// only reds: whoever enters first blocks the other two until they give up
	summary, err := Run(t.Context(), venue, Config{
		RedCustomers: 3,
		StayMin:      200 * time.Millisecond,
		StayMax:      200 * time.Millisecond,
		WaitTimeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.RedServed)
	require.Equal(t, 2, summary.RedAbandoned)

	s := venue.Snapshot()
	require.Zero(t, s.RedCount)
	require.Zero(t, s.RedWaiting)
}

func TestRunThrottlesArrivals(t *testing.T) {
	venue, err := harmony.NewController(2)
	require.NoError(t, err)

	start := time.Now()
	summary, err := Run(t.Context(), venue, Config{
		RedCustomers:         3,
		ArrivalRatePerSecond: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 3, summary.RedServed)
	// the third red has to wait for the one second window to slide
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestRunCanceled(t *testing.T) {
	venue, err := harmony.NewController(1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = Run(ctx, venue, Config{
		RedCustomers:  2,
		BlueCustomers: 2,
		StayMin:       time.Hour,
		StayMax:       time.Hour,
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// everyone who got in has left again
	s := venue.Snapshot()
	require.Zero(t, s.RedCount+s.BlueCount)
	require.Equal(t, 1, s.TablesFree)
}

func TestConfigValidate(t *testing.T) {
	for _, cfg := range []Config{
		{RedCustomers: -1},
		{StayMin: time.Second, StayMax: time.Millisecond},
		{ArrivalInterval: -time.Second},
		{ArrivalRatePerSecond: -1},
	} {
		err := cfg.Validate()
		require.True(t, harmony.ErrorHasStatus(err, harmony.ErrorStatusInvalidRequest), "%+v", cfg)
	}
	require.NoError(t, Config{RedCustomers: 1, StayMax: time.Second}.Validate())
}

func TestArrivalOrder(t *testing.T) {
	var ids []string
	for _, a := range arrivalOrder(3, 1) {
		ids = append(ids, a.ID)
	}
	require.Equal(t, []string{"red-1", "blue-1", "red-2", "red-3"}, ids)
}
