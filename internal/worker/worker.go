// Package worker consumes metadata indexing jobs from the derived-state
// stream and runs attribute indexing passes over a bounded pool. Delivery is
// at-least-once; the indexing pass being idempotent is what makes redelivery
// safe.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/openfloor/market-indexer/internal/adapter"
	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/indexer"
	"github.com/openfloor/market-indexer/internal/logger"
	"github.com/openfloor/market-indexer/internal/messaging"
)

// ParkedJobsKey is the Redis set holding payloads that exhausted their
// delivery attempts. Parked jobs are never retried automatically; they wait
// for external inspection and replay.
const ParkedJobsKey = "derived:parked:metadata"

// Config holds the configuration for the metadata worker
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	Concurrency    int
}

// Worker defines the interface for the metadata worker
type Worker interface {
	// Run starts consuming metadata jobs until the context is canceled
	Run(ctx context.Context) error
	// Close closes the worker and cleans up resources
	Close()
}

type worker struct {
	nc      adapter.NatsConn
	js      adapter.JetStream
	indexer *indexer.Indexer
	redis   adapter.RedisClient
	json    adapter.JSON
	config  Config
}

// New creates a metadata worker consuming from NATS JetStream
func New(
	cfg Config,
	natsJS adapter.NatsJetStream,
	ix *indexer.Indexer,
	redis adapter.RedisClient,
	jsonAdapter adapter.JSON,
) (Worker, error) {
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

	return &worker{
		nc:      nc,
		js:      js,
		indexer: ix,
		redis:   redis,
		json:    jsonAdapter,
		config:  cfg,
	}, nil
}

// Run starts the worker loop
func (w *worker) Run(ctx context.Context) error {
	logger.Info("Starting metadata worker",
		zap.String("stream", w.config.StreamName),
		zap.String("consumer", w.config.ConsumerName),
		zap.Int("concurrency", w.config.Concurrency))

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       w.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       w.config.AckWaitTimeout,
		MaxDeliver:    w.config.MaxDeliver,
		FilterSubject: messaging.SubjectTokenMetadata,
	}

	consumer, err := w.js.CreateOrUpdateConsumer(ctx, w.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.Info("Consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	pool := pond.NewPool(w.config.Concurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()

	sub, err := consumer.Consume(func(msg adapter.Message) {
		pool.Submit(func() {
			w.handleMessage(ctx, msg)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.Info("Started consuming messages")

	<-ctx.Done()
	logger.Info("Shutting down metadata worker")
	return ctx.Err()
}

// handleMessage processes a single metadata job delivery
func (w *worker) handleMessage(ctx context.Context, msg adapter.Message) {
	metadata, _ := msg.Metadata()

	var info domain.TokenMetadataInfo
	if err := w.json.Unmarshal(msg.Data(), &info); err != nil {
		logger.Error(err, zap.String("message", "Failed to unmarshal metadata job"))
		// Unparseable payloads can never succeed; stop redelivering
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	var deliveries uint64
	if metadata != nil {
		deliveries = metadata.NumDelivered
	}

	logger.Debug("Received metadata job",
		zap.String("token", info.JobKey()),
		zap.Uint64("deliveryCount", deliveries))

	err := w.indexer.IndexTokenMetadata(ctx, &info)
	if err == nil {
		if err := msg.Ack(); err != nil {
			logger.Error(err, zap.String("message", "Failed to ACK message"))
		}
		return
	}

	if !domain.IsRetryable(err) {
		logger.Error(err,
			zap.String("message", "Dropping non-retryable metadata job"),
			zap.String("token", info.JobKey()))
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	if w.config.MaxDeliver > 0 && deliveries >= uint64(w.config.MaxDeliver) {
		w.parkJob(ctx, msg, &info)
		return
	}

	logger.Error(err,
		zap.String("message", "Metadata job failed, requesting redelivery"),
		zap.String("token", info.JobKey()),
		zap.Uint64("deliveryCount", deliveries))
	if err := msg.Nak(); err != nil {
		logger.Error(err, zap.String("message", "Failed to NAK message"))
	}
}

// parkJob records an exhausted job payload in the failure set and terminates
// the delivery. Parked payloads are replayed externally, never dropped
// silently.
func (w *worker) parkJob(ctx context.Context, msg adapter.Message, info *domain.TokenMetadataInfo) {
	logger.Warn("Parking metadata job after max deliveries",
		zap.String("token", info.JobKey()))

	if err := w.redis.SAdd(ctx, ParkedJobsKey, string(msg.Data())); err != nil {
		// Parking failed; keep the message in the stream rather than lose it
		logger.Error(err, zap.String("message", "Failed to park metadata job"))
		if err := msg.Nak(); err != nil {
			logger.Error(err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	if err := msg.Term(); err != nil {
		logger.Error(err, zap.String("message", "Failed to terminate message"))
	}
}

// Close closes the worker and cleans up resources
func (w *worker) Close() {
	if w.nc == nil {
		return
	}

	w.nc.Close()
}
