// Package aggregates maintains the collection-level derived caches (the
// floor-ask fields) and produces targeted order revalidation jobs. It detects
// staleness and dispatches work; resolving the work belongs to downstream
// order workers.
package aggregates

import (
	"context"

	"go.uber.org/zap"

	"github.com/openfloor/market-indexer/internal/adapter"
	"github.com/openfloor/market-indexer/internal/dispatch"
	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/logger"
	"github.com/openfloor/market-indexer/internal/store"
)

// Pass context prefixes, one per contract-scope recalculation entry point
const (
	passPrefixContractFloorSell = "contract-floor-sell"
	passPrefixContractTopBuy    = "contract-top-buy"
)

// Recalculator recomputes collection aggregates and dispatches revalidation
type Recalculator struct {
	store    store.Store
	dispatch dispatch.Dispatcher
	clock    adapter.Clock
}

// NewRecalculator creates an aggregate recalculator
func NewRecalculator(s store.Store, d dispatch.Dispatcher, clock adapter.Clock) *Recalculator {
	return &Recalculator{
		store:    s,
		dispatch: d,
		clock:    clock,
	}
}

// RecalculateCollectionFloorSell recomputes a collection's floor listing and
// writes it onto the collection's cache when it differs from the stored
// value. An unchanged floor touches zero rows, so updated_at watchers stay
// quiet.
func (r *Recalculator) RecalculateCollectionFloorSell(ctx context.Context, collectionID string) error {
	floor, err := r.store.ComputeCollectionFloorSell(ctx, collectionID)
	if err != nil {
		return err
	}

	changed, err := r.store.ApplyCollectionFloorSell(ctx, collectionID, floor)
	if err != nil {
		return err
	}

	if changed {
		fields := []zap.Field{zap.String("collection", collectionID)}
		if floor != nil {
			fields = append(fields,
				zap.String("floorSellId", floor.ID),
				zap.Float64("floorSellValue", floor.Value))
		}
		logger.InfoCtx(ctx, "Collection floor updated", fields...)
	}

	return nil
}

// RecalculateContractFloorSell schedules a sell-side revalidation for every
// token of the contract, up to the enumeration cap
func (r *Recalculator) RecalculateContractFloorSell(ctx context.Context, contract string) error {
	return r.recalculateContract(ctx, contract, domain.OrderSideSell, passPrefixContractFloorSell)
}

// RecalculateContractTopBuy schedules a buy-side revalidation for every token
// of the contract, up to the enumeration cap
func (r *Recalculator) RecalculateContractTopBuy(ctx context.Context, contract string) error {
	return r.recalculateContract(ctx, contract, domain.OrderSideBuy, passPrefixContractTopBuy)
}

// recalculateContract enumerates the contract's tokens and enqueues one
// token-set revalidation job per token. The job context combines the token
// set id with the pass timestamp, so redundant jobs within one pass dedup
// downstream while a later pass is never suppressed.
func (r *Recalculator) recalculateContract(ctx context.Context, contract string, side domain.OrderSide, passPrefix string) error {
	tokens, err := r.store.GetContractTokens(ctx, contract, domain.MAX_CONTRACT_RECALC_TOKENS)
	if err != nil {
		return err
	}

	now := r.clock.Now().Unix()
	for _, token := range tokens {
		tokenSetID := domain.TokenSetID(token.Contract, token.TokenID)
		passContext := dispatch.PassContext(passPrefix, tokenSetID, now)

		if err := r.dispatch.DispatchTokenSetRevalidation(ctx, passContext, tokenSetID, side); err != nil {
			return err
		}
	}

	logger.InfoCtx(ctx, "Contract recalculation dispatched",
		zap.String("contract", contract),
		zap.String("side", string(side)),
		zap.Int("tokens", len(tokens)))

	return nil
}

// RevalidateCollectionFloorAsk finds the collection's single best ask and
// enqueues one revalidation job for it
func (r *Recalculator) RevalidateCollectionFloorAsk(ctx context.Context, collectionID string) error {
	return r.revalidateCollectionBest(ctx, collectionID, domain.OrderSideSell)
}

// RevalidateCollectionTopBuy finds the collection's single best bid and
// enqueues one revalidation job for it
func (r *Recalculator) RevalidateCollectionTopBuy(ctx context.Context, collectionID string) error {
	return r.revalidateCollectionBest(ctx, collectionID, domain.OrderSideBuy)
}

func (r *Recalculator) revalidateCollectionBest(ctx context.Context, collectionID string, side domain.OrderSide) error {
	best, err := r.store.GetBestCollectionOrder(ctx, collectionID, side)
	if err != nil {
		return err
	}

	if best == nil {
		// No fillable candidate: nothing is enqueued. Whether this branch
		// should instead refresh every token of the collection was never
		// settled; until it is, a quiet no-op is the contract.
		logger.DebugCtx(ctx, "No candidate order for collection revalidation",
			zap.String("collection", collectionID),
			zap.String("side", string(side)))
		return nil
	}

	passContext := dispatch.PassContext("collection-best", best.TokenSetID, r.clock.Now().Unix())

	return r.dispatch.DispatchOrderRevalidation(ctx, passContext, best.ID)
}
