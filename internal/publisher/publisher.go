package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/metrics"
	"github.com/amass-me/locale-engine/pkg/model"
)

const (
	SubjectMarketResolved  = "evt.market.geo_resolved.v1"
	SubjectRotationChanged = "evt.site.rotation_changed.v1"

	envelopeVersion = "1.0.0"
)

// MsgPublisher is the part of nats.JetStreamContext the publisher uses.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher emits canonical event envelopes to JetStream.
type Publisher struct {
	nc      *nats.Conn
	js      MsgPublisher
	service string
	log     *zap.SugaredLogger
}

// New creates a Publisher on top of the connection's JetStream context.
func New(nc *nats.Conn, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	p := NewWithJetStream(js, service, logger)
	p.nc = nc
	return p, nil
}

// NewWithJetStream wraps an existing publisher, e.g. a test double.
func NewWithJetStream(js MsgPublisher, service string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{js: js, service: service, log: logger.Sugar()}
}

// PublishEnvelope serializes env and publishes it on subject.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.log.Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}
	// JetStream drops duplicates with the same message ID inside its window
	msg.Header.Set(nats.MsgIdHdr, env.ID.String())

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		p.log.Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	p.log.Debugw("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)
	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// PublishMarketResolved emits a geo market change.
func (p *Publisher) PublishMarketResolved(ctx context.Context, ev model.MarketResolvedEvent) error {
	return p.publishEvent(ctx, SubjectMarketResolved, "market.geo_resolved", ev)
}

// PublishRotationChanged emits a surface rotation change.
func (p *Publisher) PublishRotationChanged(ctx context.Context, ev model.RotationChangedEvent) error {
	return p.publishEvent(ctx, SubjectRotationChanged, "site.rotation_changed", ev)
}

func (p *Publisher) publishEvent(ctx context.Context, subject, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         subject,
		EventType:     eventType,
		Version:       envelopeVersion,
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}
	return p.PublishEnvelope(ctx, subject, env)
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
