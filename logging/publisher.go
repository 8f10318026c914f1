// Package logging is the structured event pipeline shared by the relay
// and the game-side session code. Components publish typed events; a
// Router fans them out asynchronously to named sinks.
package logging

import (
	"context"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type EntityKind string

const (
	EntityKindUnknown    EntityKind = "unknown"
	EntityKindPlayer     EntityKind = "player"
	EntityKindRoom       EntityKind = "room"
	EntityKindVehicle    EntityKind = "vehicle"
	EntityKindProjectile EntityKind = "projectile"
	EntityKindWorld      EntityKind = "world"
	EntityKindSession    EntityKind = "session"
)

const (
	CategorySession = "session"
	CategoryRelay   = "relay"
	CategoryCombat  = "combat"
	CategorySystem  = "system"
)

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

type Event struct {
	Type     EventType   `json:"type"`
	Time     time.Time   `json:"time"`
	Actor    EntityRef   `json:"actor"`
	Targets  []EntityRef `json:"targets,omitempty"`
	Severity Severity    `json:"severity"`
	Category string      `json:"category,omitempty"`
	Payload  any         `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher returns a publisher that discards everything. Components
// accept it so callers can opt out of event logging without nil checks.
func NopPublisher() Publisher {
	return nopPublisher{}
}
