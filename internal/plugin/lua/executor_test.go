package lua

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryRunsInOrder(t *testing.T) {
	state := NewState()
	defer state.Close()

	var mu sync.Mutex
	var got []int
	d := newDelivery(state, 8, nil)
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, d.post(func(*State) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.loop(ctx)

	assert.Eventually(t, func() bool {
		delivered, _ := d.counts()
		return delivered == 5
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	mu.Unlock()
}

func TestDeliveryBacklogFull(t *testing.T) {
	state := NewState()
	defer state.Close()

	d := newDelivery(state, 1, nil)
	noop := func(*State) error { return nil }
	require.NoError(t, d.post(noop))
	assert.ErrorIs(t, d.post(noop), ErrDeliveryBacklog)

	_, dropped := d.counts()
	assert.Equal(t, uint64(1), dropped)
}

func TestDeliveryReportsErrors(t *testing.T) {
	state := NewState()
	defer state.Close()

	errs := make(chan error, 2)
	d := newDelivery(state, 4, func(err error) { errs <- err })
	boom := errors.New("boom")
	require.NoError(t, d.post(func(*State) error { return boom }))
	require.NoError(t, d.post(func(*State) error { panic("bad callback") }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.loop(ctx)

	assert.ErrorIs(t, <-errs, boom)
	assert.ErrorContains(t, <-errs, "bad callback")
}

func TestDeliveryStopped(t *testing.T) {
	state := NewState()
	defer state.Close()

	d := newDelivery(state, 4, nil)
	d.stop()
	d.stop()
	assert.ErrorIs(t, d.post(func(*State) error { return nil }), ErrDeliveryClosed)
}
