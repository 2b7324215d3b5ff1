package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrUnknownEventType is returned for envelopes the client does not handle.
var ErrUnknownEventType = errors.New("unknown event type")

// Envelope is the wire frame for every message on the event channel, in
// both directions.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType names a message on the event channel
type EventType string

// Server to client.
const (
	EventTypeFullSync           EventType = "all-captures"
	EventTypeZoneAdded          EventType = "new-cap"
	EventTypeZoneRemoved        EventType = "destroy-cap"
	EventTypeAllowanceExhausted EventType = "out-of-caps"
	EventTypeDailyReset         EventType = "daily-reset"
)

// Client to server.
const (
	EventTypeCaptureRequest EventType = "capture"
	EventTypeSyncRequest    EventType = "sync-request"
	EventTypeDisconnect     EventType = "disconnect"
)

// ZonePayload is a capture zone as the server sends it.
type ZonePayload struct {
	ID        models.ID `json:"id" validate:"required"`
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
	Radius    float64   `json:"radius" validate:"gte=0"`
	User      struct {
		Team struct {
			Color string `json:"color"`
		} `json:"team"`
	} `json:"user"`
}

// Zone converts the payload into the cached model.
func (p ZonePayload) Zone() models.CaptureZone {
	return models.CaptureZone{
		ID:        p.ID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Radius:    p.Radius,
		TeamColor: p.User.Team.Color,
	}
}

// FullSyncPayload carries every zone plus the radius the player sees
// around themselves.
type FullSyncPayload struct {
	Captures []ZonePayload `json:"captures"`
	Radius   float64       `json:"radius" validate:"gte=0"`
}

// Zones converts every valid entry into cached models, in delivery order.
// Invalid entries are skipped so one bad zone cannot hold back the rest.
func (p FullSyncPayload) Zones() []models.CaptureZone {
	out := make([]models.CaptureZone, 0, len(p.Captures))
	for i, c := range p.Captures {
		if err := validate.Struct(c); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping invalid zone in full sync")
			continue
		}
		out = append(out, c.Zone())
	}
	return out
}

// ZoneRemovedPayload names the zone to drop.
type ZoneRemovedPayload struct {
	Cap struct {
		ID models.ID `json:"id" validate:"required"`
	} `json:"cap"`
}

// AllowanceExhaustedPayload has no fields; the event itself is the signal.
type AllowanceExhaustedPayload struct{}

// DailyResetPayload has no fields; the event itself is the signal.
type DailyResetPayload struct{}

// CaptureRequestPayload asks the server to capture around a position.
type CaptureRequestPayload struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UserID    models.ID `json:"userId"`
}

var validate = validator.New()

// ParseEventPayload decodes and validates the payload of a server event.
// The concrete type returned depends on event.Type.
func ParseEventPayload(event *Envelope) (interface{}, error) {
	switch event.Type {
	case EventTypeFullSync:
		var payload FullSyncPayload
		if err := decodePayload(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeZoneAdded:
		var payload ZonePayload
		if err := decodePayload(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeZoneRemoved:
		var payload ZoneRemovedPayload
		if err := decodePayload(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAllowanceExhausted:
		return AllowanceExhaustedPayload{}, nil

	case EventTypeDailyReset:
		return DailyResetPayload{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, event.Type)
	}
}

func decodePayload(event *Envelope, out interface{}) error {
	if len(event.Data) == 0 {
		return fmt.Errorf("%s: empty payload", event.Type)
	}
	if err := json.Unmarshal(event.Data, out); err != nil {
		return fmt.Errorf("%s: decode payload: %w", event.Type, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", event.Type, err)
	}
	return nil
}

// NewEnvelope wraps payload in a fresh envelope. A nil payload leaves Data
// empty.
func NewEnvelope(eventType EventType, at time.Time, payload interface{}) (Envelope, error) {
	env := Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		env.Data = data
	}
	return env, nil
}
