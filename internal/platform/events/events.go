// Package events carries domain change notifications to live subscribers
// (the websocket hub) and to an optional Redis stream for other consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const AlertsTopic = "alerts"

func AlertTopic(id int64) string { return "alert/" + strconv.FormatInt(id, 10) }

func DispatchTopic(id int64) string { return "dispatch/" + strconv.FormatInt(id, 10) }

type Event struct {
	Type         string          `json:"type"`
	Topic        string          `json:"topic"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// New builds an event stamped with the current time. data is marshalled as
// the payload; nil leaves it empty.
func New(eventType, topic, resourceType string, resourceID int64, data interface{}) (Event, error) {
	ev := Event{
		Type:         eventType,
		Topic:        topic,
		ResourceType: resourceType,
		Timestamp:    time.Now().UTC(),
	}
	if resourceID > 0 {
		ev.ResourceID = strconv.FormatInt(resourceID, 10)
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi delivers each event to every publisher, collecting failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
