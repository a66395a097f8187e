package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openfloor/market-indexer/internal/api/shared/dto"
	apierrors "github.com/openfloor/market-indexer/internal/api/shared/errors"
	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/logger"
	"github.com/openfloor/market-indexer/internal/registry"
	"github.com/openfloor/market-indexer/internal/store"
)

// BidEventsParams selects one page of the bid event feed
type BidEventsParams struct {
	Contract       *string
	StartTimestamp int64
	EndTimestamp   int64
	SortDesc       bool
	Continuation   *string
	Limit          int
}

// Executor is the interface for the API executor
type Executor interface {
	// GetBidEvents retrieves one page of the bid event feed
	GetBidEvents(ctx context.Context, params BidEventsParams) (*dto.BidEventListResponse, error)

	// RefreshCollectionFloor forces a recomputation of a collection's floor
	// cache outside the sweeper cycle
	RefreshCollectionFloor(ctx context.Context, collectionID string) (*dto.CollectionFloorRefreshResponse, error)
}

type executor struct {
	store   store.Store
	sources registry.SourceRegistry
}

// NewExecutor creates the shared API executor
func NewExecutor(st store.Store, sources registry.SourceRegistry) Executor {
	return &executor{store: st, sources: sources}
}

// GetBidEvents serves the bid event feed page by page. Ordering is the strict
// composite (createdAt, id); the returned continuation resumes exactly after
// the last row of a full page, and a short page ends the stream with a nil
// continuation.
func (e *executor) GetBidEvents(ctx context.Context, params BidEventsParams) (*dto.BidEventListResponse, error) {
	filter := store.BidEventFilter{
		Contract:       params.Contract,
		StartTimestamp: params.StartTimestamp,
		EndTimestamp:   params.EndTimestamp,
		SortDesc:       params.SortDesc,
		Limit:          params.Limit,
	}

	if params.Continuation != nil && *params.Continuation != "" {
		cursor, err := ParseContinuation(*params.Continuation)
		if err != nil {
			return nil, apierrors.NewBadRequestError("Invalid continuation token")
		}
		filter.Cursor = cursor
	}

	events, err := e.store.GetBidEvents(ctx, filter)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get bid events: %v", err))
	}

	response := &dto.BidEventListResponse{
		Events: make([]dto.BidEventResponse, len(events)),
	}
	for i, event := range events {
		response.Events[i] = dto.MapBidEventToDTO(event, e.sources)
	}

	// A full page signals there may be more; a short page ends the stream
	if len(events) == params.Limit && params.Limit > 0 {
		last := events[len(events)-1]
		continuation := EncodeContinuation(domain.FeedCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		response.Continuation = &continuation
	}

	if err := validateBidEventResponse(response); err != nil {
		logger.ErrorCtx(ctx, err, zap.Int("events", len(response.Events)))
		return nil, apierrors.NewInternalError("Malformed feed response")
	}

	return response, nil
}

// RefreshCollectionFloor recomputes a collection's floor cache on demand and
// returns the resulting floor. Updated is false when the cache already held
// the computed floor and no row was written.
func (e *executor) RefreshCollectionFloor(ctx context.Context, collectionID string) (*dto.CollectionFloorRefreshResponse, error) {
	collection, err := e.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get collection: %v", err))
	}
	if collection == nil {
		return nil, apierrors.NewNotFoundError("Collection not found")
	}

	floor, err := e.store.ComputeCollectionFloorSell(ctx, collectionID)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to compute collection floor: %v", err))
	}

	updated, err := e.store.ApplyCollectionFloorSell(ctx, collectionID, floor)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to apply collection floor: %v", err))
	}

	response := &dto.CollectionFloorRefreshResponse{
		CollectionID: collectionID,
		Updated:      updated,
	}
	if floor != nil {
		response.Floor.OrderID = &floor.ID
		response.Floor.Value = &floor.Value
		response.Floor.Maker = &floor.Maker
		if floor.SourceID != nil && e.sources != nil {
			if name := e.sources.SourceName(floor.SourceID); name != "" {
				response.Floor.Source = &name
			}
		}
	}

	return response, nil
}

// validateBidEventResponse checks the page against its declared shape before
// it leaves the service. A violation is a server-side bug surfaced as an
// error, never as a malformed success.
func validateBidEventResponse(response *dto.BidEventListResponse) error {
	for i := range response.Events {
		event := &response.Events[i]
		if event.Event.ID == 0 {
			return fmt.Errorf("bid event response missing event id at index %d", i)
		}
		if event.Event.Kind == "" {
			return fmt.Errorf("bid event response missing event kind at index %d", i)
		}
		if event.Bid.Contract == "" {
			return fmt.Errorf("bid event response missing contract at index %d", i)
		}
	}
	return nil
}
