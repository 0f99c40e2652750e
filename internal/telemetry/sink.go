// Package telemetry collects analytics key/values and forwards them to
// queues, databases and metrics registries.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
)

// Sink accepts one analytics value. It never fails from the caller's view.
type Sink interface {
	Add(key string, value interface{})
}

type tee []Sink

func (t tee) Add(key string, value interface{}) {
	for _, s := range t {
		s.Add(key, value)
	}
}

// Tee forwards every value to each sink in order. Nil sinks are dropped.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Event is the snapshot of one scan's analytics.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	ScanID    string                 `json:"scan_id"`
	CreatedAt time.Time              `json:"created_at"`
	Metrics   map[string]interface{} `json:"metrics"`
}

// Publisher delivers an event to a backend.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Buffer collects the values of one scan until Flush.
type Buffer struct {
	ScanID     string
	Publishers []Publisher

	mu     sync.Mutex
	values map[string]interface{}
}

var _ Sink = (*Buffer)(nil)

func NewBuffer(scanID string, publishers ...Publisher) *Buffer {
	return &Buffer{ScanID: scanID, Publishers: publishers, values: make(map[string]interface{})}
}

// Add stores value under key, replacing any earlier value.
func (b *Buffer) Add(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		b.values = make(map[string]interface{})
	}
	b.values[key] = value
}

// Flush hands the collected values to every publisher and resets the buffer.
// All publishers run even if some fail; their errors are joined.
func (b *Buffer) Flush(ctx context.Context) (Event, error) {
	b.mu.Lock()
	values := b.values
	b.values = make(map[string]interface{})
	b.mu.Unlock()

	if len(values) == 0 {
		return Event{}, nil
	}

	event := Event{
		ID:        uuid.New(),
		ScanID:    b.ScanID,
		CreatedAt: time.Now().UTC(),
		Metrics:   values,
	}

	var errs []error
	for _, p := range b.Publishers {
		if err := p.Publish(ctx, event); err != nil {
			logger.Log.Errorf("telemetry: publish event %s for scan %s: %v", event.ID, event.ScanID, err)
			errs = append(errs, err)
		}
	}
	return event, errors.Join(errs...)
}
