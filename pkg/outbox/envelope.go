package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who triggered the event. Webhook and cron events carry
// no user.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Role   string     `json:"role,omitempty"`
	System string     `json:"system,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events
// and published verbatim to subscribers.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(payload []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	err := json.Unmarshal(payload, &envelope)
	return envelope, err
}

// UserActor builds an ActorRef for an authenticated caller.
func UserActor(userID uuid.UUID, role string) *ActorRef {
	id := userID
	return &ActorRef{UserID: &id, Role: role}
}

// SystemActor builds an ActorRef for background processes.
func SystemActor(name string) *ActorRef {
	return &ActorRef{System: name}
}
