package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// errPanicked marks errors recovered from a panic inside a plugin.
var errPanicked = errors.New("panic")

// acquire takes e's call slot. With a CallTimeout the wait is bounded by
// the same duration, so a hung plugin cannot block its callers forever.
func (m *Manager) acquire(ctx context.Context, e *entry, op string) error {
	if m.config.CallTimeout <= 0 {
		select {
		case e.sem <- struct{}{}:
			return nil
		case <-ctx.Done():
			return newError(KindRuntime, e.name, op, ctx.Err())
		}
	}

	timer := m.clock.NewTimer(m.config.CallTimeout)
	defer timer.Stop()
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return newError(KindRuntime, e.name, op, ctx.Err())
	case <-timer.Chan():
		return newError(KindRuntime, e.name, op, fmt.Errorf("previous call still running: %w", ErrCallTimeout))
	}
}

func (m *Manager) releaseSlot(e *entry) {
	<-e.sem
}

// invoke runs fn as one call into plugin e: serialised with every other
// call into e, timed into the plugin's metrics and protected against
// panics. Only panics and timeouts count as metric errors; a call that
// never got the slot is not recorded. A call that outlives CallTimeout
// fails with ErrCallTimeout and moves the plugin to the error state; its
// goroutine keeps the call slot until fn returns.
func (m *Manager) invoke(ctx context.Context, e *entry, op string, fn func() error) error {
	if err := m.acquire(ctx, e, op); err != nil {
		return err
	}
	start := m.clock.Now()

	if m.config.CallTimeout <= 0 {
		err := m.guard(e.name, op, fn)
		m.releaseSlot(e)
		m.metrics.record(e.name, op, m.clock.Since(start), thrown(err), m.clock.Now())
		return err
	}

	done := make(chan error, 1)
	go func() {
		err := m.guard(e.name, op, fn)
		m.releaseSlot(e)
		done <- err
	}()

	timer := m.clock.NewTimer(m.config.CallTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		m.metrics.record(e.name, op, m.clock.Since(start), thrown(err), m.clock.Now())
		return err
	case <-timer.Chan():
		err := newError(KindRuntime, e.name, op, ErrCallTimeout)
		m.metrics.record(e.name, op, m.clock.Since(start), true, m.clock.Now())
		m.fail(e, err)
		return err
	}
}

// guard calls fn, converting panics and unclassified errors into
// runtime errors.
func (m *Manager) guard(name, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorf(KindRuntime, name, op, "%w: %v", errPanicked, r)
		}
	}()
	if err = fn(); err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return newError(KindRuntime, name, op, err)
}

// thrown reports whether err came from a panic inside the plugin.
// Refusals such as a false initialize result are not thrown.
func thrown(err error) bool {
	return errors.Is(err, errPanicked)
}

// fail records err on e and moves it to the error state. Entries owned by
// a running Load or Unload keep their state; the owner decides it.
func (m *Manager) fail(e *entry, err error) {
	m.mu.Lock()
	from := e.state
	e.lastErr = err.Error()
	moved := !e.busy && from != StateError
	if moved {
		e.state = StateError
		m.updateGaugeLocked()
	}
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"plugin": e.name, "state": from.String()}).WithError(err).Error("plugin call failed")
	if moved {
		m.emitStateChange(e.name, from, StateError)
	}
	m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: e.name, Err: err})
}

// releaseModule destroys the instance and closes the module once no call
// is in flight. If a hung call still holds the slot the module is left
// open rather than unmapped under it.
func (m *Manager) releaseModule(e *entry, l *Loader) error {
	if err := m.acquire(context.Background(), e, "release"); err != nil {
		m.log.WithField("plugin", e.name).WithError(err).Warn("plugin call still running, module left open")
		return err
	}
	defer m.releaseSlot(e)
	return l.Unload()
}
