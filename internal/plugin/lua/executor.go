package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrDeliveryClosed is returned once the module has been closed.
	ErrDeliveryClosed = errors.New("script event delivery stopped")
	// ErrDeliveryBacklog is returned when the callback backlog is full.
	ErrDeliveryBacklog = errors.New("script event backlog full")
)

// delivery runs script callbacks for bus events on one goroutine, in
// the order they were posted. Publishers never block on a script: a
// full backlog drops the event.
type delivery struct {
	state   *State
	pending chan func(*State) error
	stopped chan struct{}
	once    sync.Once

	delivered atomic.Uint64
	dropped   atomic.Uint64
	onError   func(error)
}

func newDelivery(state *State, backlog int, onError func(error)) *delivery {
	if backlog <= 0 {
		backlog = 64
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &delivery{
		state:   state,
		pending: make(chan func(*State) error, backlog),
		stopped: make(chan struct{}),
		onError: onError,
	}
}

// post queues fn without waiting for it.
func (d *delivery) post(fn func(*State) error) error {
	select {
	case <-d.stopped:
		return ErrDeliveryClosed
	default:
	}
	select {
	case d.pending <- fn:
		return nil
	default:
		d.dropped.Add(1)
		return ErrDeliveryBacklog
	}
}

// loop runs posted callbacks until ctx ends or stop is called. Callbacks
// still queued at that point are discarded.
func (d *delivery) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopped:
			return
		case fn := <-d.pending:
			if err := d.invoke(fn); err != nil {
				d.onError(err)
			}
			d.delivered.Add(1)
		}
	}
}

func (d *delivery) invoke(fn func(*State) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script callback panicked: %v", r)
		}
	}()
	if d.state.IsClosed() {
		return ErrDeliveryClosed
	}
	return fn(d.state)
}

func (d *delivery) stop() {
	d.once.Do(func() { close(d.stopped) })
}

// counts returns the delivered and dropped callback totals.
func (d *delivery) counts() (delivered, dropped uint64) {
	return d.delivered.Load(), d.dropped.Load()
}
