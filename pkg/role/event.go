// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a change notification emitted by a Store.
type EventType string

const (
	EventRoleAdded    EventType = "role.added"
	EventRoleRemoved  EventType = "role.removed"
	EventRoleModified EventType = "role.modified"
	EventError        EventType = "role.error"
)

// Event describes a change to the store or a failed operation.
type Event struct {
	ID        string
	Type      EventType
	Name      string
	Message   string
	Err       error
	Timestamp time.Time
}

// Subscriber receives store events. Delivery is synchronous, on the caller's
// goroutine, in the order operations were made.
type Subscriber interface {
	Notify(ctx context.Context, event Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event)

// Notify implements Subscriber.
func (f SubscriberFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(eventType EventType, name, message string, err error) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Name:      name,
		Message:   message,
		Err:       err,
		Timestamp: time.Now().UTC(),
	}
}

type subscription struct {
	id  uint64
	sub Subscriber
}

type subscribers struct {
	next uint64
	list []subscription
}

func (s *subscribers) add(sub Subscriber) func() {
	s.next++
	id := s.next
	s.list = append(s.list, subscription{id: id, sub: sub})
	return func() {
		for i, entry := range s.list {
			if entry.id == id {
				s.list = append(s.list[:i:i], s.list[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers) notify(ctx context.Context, event Event) {
	// Snapshot so a subscriber may unsubscribe while being notified.
	list := make([]subscription, len(s.list))
	copy(list, s.list)
	for _, entry := range list {
		entry.sub.Notify(ctx, event)
	}
}
