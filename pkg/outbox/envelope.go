package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the envelope schema written by Emit when the event does
// not pin one.
const CurrentVersion = 1

// Actor names the user whose request produced the event.
type Actor struct {
	UserID uuid.UUID `json:"userId"`
}

// Envelope is the JSON document stored in outbox_events.payload and sent as
// the Pub/Sub message body.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var errEmptyData = errors.New("envelope data is empty")

// DecodeEnvelope parses a stored payload and rejects envelopes that carry no
// event id or no data.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == "" {
		return Envelope{}, errors.New("envelope is missing eventId")
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, errEmptyData
	}
	return env, nil
}

// UserID returns the actor's id as a string, or "" for system events.
func (e Envelope) UserID() string {
	if e.Actor == nil || e.Actor.UserID == uuid.Nil {
		return ""
	}
	return e.Actor.UserID.String()
}
