// Package events defines the action event carried on the notification queue
// and the producer domain services use to enqueue it.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"socialgraph/internal/social"
)

// ActionEvent is the queue payload. It is immutable once published.
type ActionEvent struct {
	ActionCreator  string            `json:"actionCreator" validate:"required,handle"`
	ActionType     social.ActionType `json:"actionType" validate:"required"`
	TargetEntityID string            `json:"targetEntityId"`
	TargetUser     string            `json:"targetUser" validate:"required,handle"`
	CheckClose     bool              `json:"checkClose"`
	// ActionID identifies one occurrence of an action that can be undone and
	// repeated on the same entity, such as a like. It is part of the
	// idempotency key when set.
	ActionID string `json:"actionId,omitempty"`
}

// Validate checks the payload shape.
func (e ActionEvent) Validate() error {
	if err := social.Validator().Struct(e); err != nil {
		return fmt.Errorf("%w: %v", social.ErrInvalidArgument, err)
	}
	if !e.ActionType.Valid() {
		return fmt.Errorf("%w: unknown action type %q", social.ErrInvalidArgument, e.ActionType)
	}
	return nil
}

// IdempotencyKey is a stable hash of the fields that identify the action.
// Redeliveries of the same event share the key.
func (e ActionEvent) IdempotencyKey() string {
	h := sha256.New()
	for _, part := range []string{e.ActionCreator, string(e.ActionType), e.TargetEntityID, e.TargetUser} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	if e.ActionID != "" {
		h.Write([]byte(e.ActionID))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Encode serializes the event as the wire JSON object.
func (e ActionEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses and validates a wire payload.
func Decode(data []byte) (ActionEvent, error) {
	var e ActionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ActionEvent{}, fmt.Errorf("%w: decode event: %v", social.ErrInvalidArgument, err)
	}
	if err := e.Validate(); err != nil {
		return ActionEvent{}, err
	}
	return e, nil
}

// Disposition is what a queue adapter must do with a delivered message.
type Disposition int

const (
	// Ack commits the message.
	Ack Disposition = iota
	// Requeue leaves the message unacknowledged so it is delivered again.
	Requeue
	// DeadLetter parks the message on the dead-letter destination and acks it.
	DeadLetter
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case DeadLetter:
		return "dead_letter"
	}
	return "unknown"
}

// Delivery is one received message as seen by a handler.
type Delivery struct {
	Payload []byte
	// Attempt counts deliveries of this message, starting at 1.
	Attempt int
}

// Parked is the envelope written to a dead-letter destination. The original
// payload is kept verbatim since it may not be valid JSON.
type Parked struct {
	RawValue      string    `json:"raw_value"`
	Attempt       int       `json:"attempt"`
	Source        string    `json:"source"`
	ConsumerGroup string    `json:"consumer_group"`
	FailedAt      time.Time `json:"failed_at"`
}

// Park wraps a dead-lettered delivery for the dead-letter destination.
func Park(d Delivery, source, group string) ([]byte, error) {
	return json.Marshal(Parked{
		RawValue:      string(d.Payload),
		Attempt:       d.Attempt,
		Source:        source,
		ConsumerGroup: group,
		FailedAt:      time.Now().UTC(),
	})
}
