// Package domain provides the shared building blocks for lotbot.
// All bounded contexts (catalog, conversation) share these types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// UserID is a chat-network user identity (Telegram user id).
type UserID int64

// ChatID is a chat identity. For private chats it equals the UserID.
type ChatID int64

// EventID is the identity of a domain event.
type EventID string

// NewEventID generates a random event identifier.
func NewEventID() EventID { return EventID(uuid.NewString()) }

// ---------------------------------------------------------------------------
// Admin capability set
// ---------------------------------------------------------------------------

// AdminSet is the immutable set of administrator identities, fixed at
// startup from configuration.
type AdminSet map[UserID]struct{}

// NewAdminSet builds an AdminSet from a list of user ids.
func NewAdminSet(ids []int64) AdminSet {
	set := make(AdminSet, len(ids))
	for _, id := range ids {
		set[UserID(id)] = struct{}{}
	}
	return set
}

// Contains reports whether the user is an administrator.
func (s AdminSet) Contains(id UserID) bool {
	_, ok := s[id]
	return ok
}

// ---------------------------------------------------------------------------
// Domain event system
// ---------------------------------------------------------------------------

// EventType classifies domain events for routing and filtering.
type EventType string

const (
	// Catalog context events
	EventCategoryCreated EventType = "catalog.category.created"
	EventCategoryRemoved EventType = "catalog.category.removed"
	EventItemCreated     EventType = "catalog.item.created"
	EventItemClosed      EventType = "catalog.item.closed"
	EventItemRemoved     EventType = "catalog.item.removed"

	// Auction context events
	EventBidAccepted EventType = "auction.bid.accepted"
	EventBidRejected EventType = "auction.bid.rejected"

	// Notification context events
	EventBroadcastSent EventType = "notify.broadcast.sent"
	EventNewLotsSent   EventType = "notify.new_lots.sent"

	// System-level events
	EventSystemStartup  EventType = "system.startup"
	EventSystemShutdown EventType = "system.shutdown"
)

// Event is a fact that already happened inside a bounded context.
type Event struct {
	ID         EventID                `json:"id"`
	Type       EventType              `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates a new domain event stamped with the current time.
func NewEvent(eventType EventType, data map[string]interface{}) Event {
	return Event{
		ID:         NewEventID(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// EventHandler processes a domain event. Handlers should be idempotent.
type EventHandler func(Event)

// EventBus dispatches domain events to registered handlers.
type EventBus interface {
	// Publish dispatches an event to all matching handlers.
	Publish(event Event)
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler)
	// SubscribeAll registers a handler that receives every event.
	SubscribeAll(handler EventHandler)
	// Close shuts down the bus.
	Close()
}
