package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/metrics"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

const (
	SubjectTradeExecuted  = "evt.trade.executed.v1"
	SubjectEscrowIncident = "evt.escrow.incident.v1"
)

// jetStream is the slice of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher emits canonical trade events to NATS JetStream.
type Publisher struct {
	logger  *zap.Logger
	nc      *nats.Conn
	js      jetStream
	service string
	network model.Network
}

// New creates a Publisher with JetStream enabled.
func New(logger *zap.Logger, nc *nats.Conn, service string, network model.Network) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		logger:  logger,
		nc:      nc,
		js:      js,
		service: service,
		network: network,
	}, nil
}

// PublishEnvelope serializes and publishes a canonical event envelope.
func (p *Publisher) PublishEnvelope(_ context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err),
		)
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{env.EventType},
			"event_id":     []string{env.ID.String()},
			"service":      []string{p.service},
			"network":      []string{env.Network},
			"content_type": []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		metrics.NATSPublishErrors.WithLabelValues(subject).Inc()
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("event_type", env.EventType),
	)
	return nil
}

func (p *Publisher) envelope(eventType string, payload any) (*model.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &model.Envelope{
		ID:        uuid.New(),
		EventType: eventType,
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
		Network:   p.network.String(),
		Payload:   data,
	}, nil
}

// PublishTradeExecuted emits trade.executed after a settlement on either
// venue.
func (p *Publisher) PublishTradeExecuted(ctx context.Context, result model.TradeResult) error {
	env, err := p.envelope("trade.executed", model.TradeExecutedEvent{
		TxHash:    result.TxHash,
		OrderID:   result.OrderID,
		Source:    string(result.Source),
		SellToken: result.SellToken,
		BuyToken:  result.BuyToken,
		Rate:      result.Rate.String(),
		Timestamp: result.Timestamp,
	})
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, SubjectTradeExecuted, env)
}

// PublishEscrowIncident emits escrow.incident when funds reached escrow but
// the order was never accepted.
func (p *Publisher) PublishEscrowIncident(ctx context.Context, incident model.EscrowIncidentEvent) error {
	env, err := p.envelope("escrow.incident", incident)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, SubjectEscrowIncident, env)
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
