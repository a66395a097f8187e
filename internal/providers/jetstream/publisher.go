package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/openfloor/market-indexer/internal/adapter"
	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/logger"
	"github.com/openfloor/market-indexer/internal/messaging"
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

type publisher struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	streamName string
	json       adapter.JSON
}

// NewPublisher creates a new NATS JetStream publisher
func NewPublisher(cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &publisher{
		nc:         nc,
		js:         js,
		streamName: cfg.StreamName,
		json:       jsonAdapter,
	}, nil
}

// PublishTokenMetadata publishes a metadata indexing job. Payloads missing a
// required field are dropped here rather than handed to the consumer.
func (p *publisher) PublishTokenMetadata(ctx context.Context, info *domain.TokenMetadataInfo) error {
	if !info.Valid() {
		logger.Warn("Dropping invalid token metadata job",
			zap.String("collection", info.Collection),
			zap.String("contract", info.Contract),
			zap.String("tokenID", info.TokenID))
		return nil
	}

	logger.Debug("Publishing token metadata job", zap.String("token", info.JobKey()))
	return p.publish(ctx, messaging.SubjectTokenMetadata, info)
}

// PublishRevalidation publishes an order revalidation job
func (p *publisher) PublishRevalidation(ctx context.Context, job *domain.RevalidationJob) error {
	logger.Debug("Publishing revalidation job", zap.String("context", job.Context))
	return p.publish(ctx, messaging.SubjectRevalidation, job)
}

// PublishRecount publishes an attribute recount job. Key-level and value-level
// recounts go to separate subjects so the downstream worker can scale them
// independently.
func (p *publisher) PublishRecount(ctx context.Context, target *domain.RecountTarget) error {
	subject := messaging.SubjectRecountKey
	if target.Value != "" {
		subject = messaging.SubjectRecountValue
	}

	logger.Debug("Publishing recount job",
		zap.String("subject", subject),
		zap.String("collection", target.Collection),
		zap.String("key", target.Key))

	return p.publish(ctx, subject, target)
}

func (p *publisher) publish(ctx context.Context, subject string, payload any) error {
	data, err := p.json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	return nil
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}
