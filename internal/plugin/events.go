package plugin

import (
	"time"

	"github.com/sirupsen/logrus"
)

// EventHandler handles plugin manager events.
// Handlers run with no manager lock held and may call back into the
// Manager. Panics in handlers are recovered and logged.
type EventHandler func(event ManagerEvent)

// ManagerEvent represents a plugin manager event.
type ManagerEvent struct {
	Type   ManagerEventType
	Plugin string
	// From and To are set for EventStateChanged.
	From State
	To   State
	Err  error
	Time time.Time
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

const (
	// EventStateChanged is emitted on every lifecycle transition.
	EventStateChanged ManagerEventType = iota
	// EventPluginLoaded is emitted when a plugin becomes active.
	EventPluginLoaded
	// EventPluginLoadFailed is emitted when a load ends in the error state.
	EventPluginLoadFailed
	// EventPluginUnloaded is emitted when a plugin is unloaded.
	EventPluginUnloaded
	// EventPluginReloaded is emitted when a plugin is reloaded.
	EventPluginReloaded
	// EventPluginError is emitted when a plugin call fails.
	EventPluginError
	// EventPluginInstalled is emitted after a plugin file is installed.
	EventPluginInstalled
	// EventPluginUninstalled is emitted after a plugin file is removed.
	EventPluginUninstalled
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventStateChanged:
		return "state_changed"
	case EventPluginLoaded:
		return "loaded"
	case EventPluginLoadFailed:
		return "load_failed"
	case EventPluginUnloaded:
		return "unloaded"
	case EventPluginReloaded:
		return "reloaded"
	case EventPluginError:
		return "error"
	case EventPluginInstalled:
		return "installed"
	case EventPluginUninstalled:
		return "uninstalled"
	default:
		return "unknown"
	}
}

// Host bus event types published by the manager.
const (
	HostEventPluginLoaded   = "plugin.loaded"
	HostEventPluginUnloaded = "plugin.unloaded"
)

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.hmu.Lock()
	m.nextHandler++
	id := m.nextHandler
	m.handlers[id] = handler
	m.handlerOrder = append(m.handlerOrder, id)
	m.hmu.Unlock()

	return func() {
		m.hmu.Lock()
		defer m.hmu.Unlock()
		if _, ok := m.handlers[id]; !ok {
			return
		}
		delete(m.handlers, id)
		for i, hid := range m.handlerOrder {
			if hid == id {
				m.handlerOrder = append(m.handlerOrder[:i], m.handlerOrder[i+1:]...)
				break
			}
		}
	}
}

// emitEvent sends an event to all handlers.
// Handlers are called outside any locks and panics are recovered.
func (m *Manager) emitEvent(event ManagerEvent) {
	if event.Time.IsZero() {
		event.Time = m.clock.Now()
	}

	m.hmu.RLock()
	handlers := make([]EventHandler, 0, len(m.handlerOrder))
	for _, id := range m.handlerOrder {
		handlers = append(handlers, m.handlers[id])
	}
	m.hmu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.WithFields(logrus.Fields{
						"event":  event.Type.String(),
						"plugin": event.Plugin,
						"panic":  r,
					}).Error("manager event handler panicked")
				}
			}()
			handler(event)
		}()
	}
}
