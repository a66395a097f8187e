// Package dispatch builds and enqueues the derived-state jobs produced by the
// indexer and the aggregate recalculator: order revalidations and attribute
// recounts. It owns the dedup context format so every producer labels
// equivalent work identically.
package dispatch

import (
	"context"
	"fmt"

	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/messaging"
)

// Dispatcher enqueues revalidation and recount jobs for downstream workers
type Dispatcher interface {
	// DispatchOrderRevalidation requests revalidation of a single order
	DispatchOrderRevalidation(ctx context.Context, passContext, orderID string) error
	// DispatchTokenSetRevalidation requests revalidation of every order on
	// one side of a token set
	DispatchTokenSetRevalidation(ctx context.Context, passContext, tokenSetID string, side domain.OrderSide) error
	// DispatchKeyRecount requests recomputation of an attribute key's
	// distinct-value count
	DispatchKeyRecount(ctx context.Context, collection, key string) error
	// DispatchValueRecount requests recomputation of an attribute value's
	// token count
	DispatchValueRecount(ctx context.Context, collection, key, value string) error
}

type dispatcher struct {
	publisher messaging.Publisher
}

// NewDispatcher creates a dispatcher publishing through the given broker
func NewDispatcher(publisher messaging.Publisher) Dispatcher {
	return &dispatcher{publisher: publisher}
}

// PassContext labels one recalculation pass. The unix-second suffix time-boxes
// deduplication: jobs from the same pass collapse downstream, while a later
// pass for the same target produces a fresh context and is not suppressed.
func PassContext(prefix, target string, nowUnix int64) string {
	return fmt.Sprintf("%s-%s-%d", prefix, target, nowUnix)
}

func (d *dispatcher) DispatchOrderRevalidation(ctx context.Context, passContext, orderID string) error {
	job := &domain.RevalidationJob{
		Context: passContext,
		ID:      &orderID,
		Trigger: domain.Trigger{Kind: domain.TriggerKindRevalidation},
	}
	if err := d.publisher.PublishRevalidation(ctx, job); err != nil {
		return fmt.Errorf("failed to dispatch order revalidation: %w", err)
	}
	return nil
}

func (d *dispatcher) DispatchTokenSetRevalidation(ctx context.Context, passContext, tokenSetID string, side domain.OrderSide) error {
	job := &domain.RevalidationJob{
		Context:    passContext,
		TokenSetID: &tokenSetID,
		Side:       side,
		Trigger:    domain.Trigger{Kind: domain.TriggerKindRevalidation},
	}
	if err := d.publisher.PublishRevalidation(ctx, job); err != nil {
		return fmt.Errorf("failed to dispatch token set revalidation: %w", err)
	}
	return nil
}

func (d *dispatcher) DispatchKeyRecount(ctx context.Context, collection, key string) error {
	target := &domain.RecountTarget{
		Collection: collection,
		Key:        key,
	}
	if err := d.publisher.PublishRecount(ctx, target); err != nil {
		return fmt.Errorf("failed to dispatch key recount: %w", err)
	}
	return nil
}

func (d *dispatcher) DispatchValueRecount(ctx context.Context, collection, key, value string) error {
	target := &domain.RecountTarget{
		Collection: collection,
		Key:        key,
		Value:      value,
	}
	if err := d.publisher.PublishRecount(ctx, target); err != nil {
		return fmt.Errorf("failed to dispatch value recount: %w", err)
	}
	return nil
}
