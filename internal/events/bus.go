// Package events provides a small in-process pub/sub bus. The engine and
// scanner publish what they produce; sinks (loggers, notifiers, hosts
// embedding the engine) subscribe without coupling to the producers.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventScanStarted     EventType = "SCAN_STARTED"
	EventScanCompleted   EventType = "SCAN_COMPLETED"
	EventRegimeChanged   EventType = "REGIME_CHANGED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run on their own
// goroutines so a slow sink cannot stall a publisher.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(symbol, signalType string, entry, confidence float64, reasoning string) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"signal_type": signalType,
			"entry":       entry,
			"confidence":  confidence,
			"reasoning":   reasoning,
		},
	})
}

// PublishRegimeChanged publishes a regime transition event
func (eb *EventBus) PublishRegimeChanged(symbol, timeframe, from, to string, confidence float64) {
	eb.Publish(Event{
		Type: EventRegimeChanged,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"timeframe":  timeframe,
			"from":       from,
			"to":         to,
			"confidence": confidence,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
