package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical wrapper for every event published by the engine.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// MarketResolvedEvent is emitted when a geo lookup yields a market different from the previous one.
type MarketResolvedEvent struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Previous  string    `json:"previous,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RotationChangedEvent mirrors a scheduler change notification for a named surface.
type RotationChangedEvent struct {
	Surface   string    `json:"surface"`
	Market    string    `json:"market"`
	State     string    `json:"state"`
	Index     int       `json:"index"`
	PageCount int       `json:"page_count"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
