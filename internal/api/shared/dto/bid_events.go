package dto

import (
	"time"

	"github.com/openfloor/market-indexer/internal/registry"
	"github.com/openfloor/market-indexer/internal/store/schema"
)

// BidDTO is the order-side half of a bid event feed entry: the bid's state as
// of the event
type BidDTO struct {
	ID                *string  `json:"id"`
	Status            string   `json:"status"`
	Contract          string   `json:"contract"`
	TokenSetID        string   `json:"tokenSetId"`
	Maker             *string  `json:"maker"`
	Price             *float64 `json:"price"`
	Value             *float64 `json:"value"`
	QuantityRemaining *string  `json:"quantityRemaining"`
	ValidFrom         *int64   `json:"validFrom"`
	ValidUntil        *int64   `json:"validUntil"`
	Source            *string  `json:"source"`
}

// EventDTO is the event-side half of a bid event feed entry
type EventDTO struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	TxHash      *string   `json:"txHash"`
	TxTimestamp *int64    `json:"txTimestamp"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BidEventResponse pairs a bid snapshot with its lifecycle event
type BidEventResponse struct {
	Bid   BidDTO   `json:"bid"`
	Event EventDTO `json:"event"`
}

// BidEventListResponse is one page of the bid event feed. Continuation is
// non-null exactly when the page was full.
type BidEventListResponse struct {
	Events       []BidEventResponse `json:"events"`
	Continuation *string            `json:"continuation"`
}

// MapBidEventToDTO maps a bid event row to its response shape, resolving the
// source id to a display name through the registry
func MapBidEventToDTO(event schema.BidEvent, sources registry.SourceRegistry) BidEventResponse {
	var source *string
	if event.OrderSourceID != nil && sources != nil {
		if name := sources.SourceName(event.OrderSourceID); name != "" {
			source = &name
		}
	}

	return BidEventResponse{
		Bid: BidDTO{
			ID:                event.OrderID,
			Status:            event.Status,
			Contract:          event.Contract,
			TokenSetID:        event.TokenSetID,
			Maker:             event.Maker,
			Price:             event.Price,
			Value:             event.Value,
			QuantityRemaining: event.OrderQuantityRemaining,
			ValidFrom:         event.ValidFrom,
			ValidUntil:        event.ValidUntil,
			Source:            source,
		},
		Event: EventDTO{
			ID:          event.ID,
			Kind:        string(event.Kind),
			TxHash:      event.TxHash,
			TxTimestamp: event.TxTimestamp,
			CreatedAt:   event.CreatedAt,
		},
	}
}
