package baseapp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Observer is notified of CloudEvents emitted by the application.
type Observer interface {
	// OnEvent is called synchronously on the emitting goroutine.
	// Observers should return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event types emitted by the core.
const (
	EventTypeBootStep       = "com.baseapp.boot.step"
	EventTypeBootFailed     = "com.baseapp.boot.failed"
	EventTypeRouteMatched   = "com.baseapp.route.matched"
	EventTypeRouteNotFound  = "com.baseapp.route.notfound"
	EventTypeDispatchFailed = "com.baseapp.dispatch.failed"
	EventTypeEscalation     = "com.baseapp.escalation"
)

// FunctionalObserver adapts a function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// Subject fans events out to registered observers.
// The zero value is ready to use.
type Subject struct {
	mu        sync.RWMutex
	observers map[string]*observerRegistration
	logger    Logger
}

// NewSubject creates a subject that logs observer failures to logger.
func NewSubject(logger Logger) *Subject {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Subject{observers: make(map[string]*observerRegistration), logger: logger}
}

// RegisterObserver adds an observer. With no eventTypes it receives everything.
func (s *Subject) RegisterObserver(observer Observer, eventTypes ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observers == nil {
		s.observers = make(map[string]*observerRegistration)
	}
	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	s.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   types,
		registeredAt: time.Now(),
	}
	return nil
}

// UnregisterObserver removes an observer. Unknown observers are ignored.
func (s *Subject) UnregisterObserver(observer Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observers, observer.ObserverID())
	return nil
}

// Observers lists registered observers sorted by ID.
func (s *Subject) Observers() []ObserverInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := make([]ObserverInfo, 0, len(s.observers))
	for _, reg := range s.observers {
		types := make([]string, 0, len(reg.eventTypes))
		for t := range reg.eventTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		info = append(info, ObserverInfo{ID: reg.observer.ObserverID(), EventTypes: types, RegisteredAt: reg.registeredAt})
	}
	sort.Slice(info, func(i, j int) bool { return info[i].ID < info[j].ID })
	return info
}

// NotifyObservers delivers event to every interested observer and returns
// their combined errors. A panicking observer is reported as an error.
func (s *Subject) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event %s: %w", event.Type(), err)
	}

	s.mu.RLock()
	targets := make([]Observer, 0, len(s.observers))
	for _, reg := range s.observers {
		if len(reg.eventTypes) > 0 && !reg.eventTypes[event.Type()] {
			continue
		}
		targets = append(targets, reg.observer)
	}
	s.mu.RUnlock()

	var errs error
	for _, o := range targets {
		errs = multierr.Append(errs, s.deliver(ctx, o, event))
	}
	return errs
}

func (s *Subject) deliver(ctx context.Context, o Observer, event cloudevents.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer %s panicked: %v", o.ObserverID(), r)
		}
	}()
	return o.OnEvent(ctx, event)
}

func (s *Subject) emit(ctx context.Context, eventType, source string, data any) {
	if s == nil {
		return
	}
	if err := s.NotifyObservers(ctx, NewCloudEvent(eventType, source, data)); err != nil && s.logger != nil {
		s.logger.Warn("Observer notification failed", "event", eventType, "error", err)
	}
}

// NewCloudEvent builds an event with a time-ordered ID.
func NewCloudEvent(eventType, source string, data any) cloudevents.Event {
	event := cloudevents.NewEvent()
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	event.SetID(id.String())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}
