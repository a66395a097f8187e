package schema

import (
	"time"

	"github.com/openfloor/market-indexer/internal/domain"
)

// BidEvent represents the bid_events table - the append-only log of bid
// status changes served by the event cursor feed. Rows are inserted by the
// order ingestion path and never mutated afterwards.
type BidEvent struct {
	// ID is an auto-incrementing sequence number; together with CreatedAt it
	// forms the feed's total order
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Kind labels the lifecycle transition (new-order, reprice, expiry, ...)
	Kind domain.BidEventKind `gorm:"column:kind;not null;type:text"`
	// Status is the order's fillability status after the transition
	Status string `gorm:"column:status;not null;type:text"`
	// Contract is the token contract the bid targets
	Contract string `gorm:"column:contract;not null;type:text;index:idx_bid_events_contract_created,priority:1"`
	// TokenSetID identifies the tokens the bid applies to
	TokenSetID string `gorm:"column:token_set_id;not null;type:text"`
	// OrderID is the bid order's hash
	OrderID *string `gorm:"column:order_id;type:text"`
	// OrderQuantityRemaining is the unfilled quantity after the transition
	OrderQuantityRemaining *string `gorm:"column:order_quantity_remaining;type:text"`
	// Maker is the bid creator's address
	Maker *string `gorm:"column:maker;type:text"`
	// Price is the bid's unit price at event time
	Price *float64 `gorm:"column:price;type:numeric"`
	// Value is the bid's net value at event time
	Value *float64 `gorm:"column:value;type:numeric"`
	// OrderSourceID references the marketplace the bid came from
	OrderSourceID *int64 `gorm:"column:order_source_id"`
	// ValidFrom is the start of the bid's validity at event time (epoch seconds)
	ValidFrom *int64 `gorm:"column:valid_from"`
	// ValidUntil is the end of the bid's validity at event time (epoch seconds)
	ValidUntil *int64 `gorm:"column:valid_until"`
	// TxHash is the transaction that caused the transition, when on-chain
	TxHash *string `gorm:"column:tx_hash;type:text"`
	// TxTimestamp is the block timestamp of that transaction (epoch seconds)
	TxTimestamp *int64 `gorm:"column:tx_timestamp"`
	// CreatedAt is the insertion timestamp; the feed sort key is (created_at, id)
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz;index:idx_bid_events_contract_created,priority:2;index:idx_bid_events_created"`
}

// TableName specifies the table name for the BidEvent model
func (BidEvent) TableName() string {
	return "bid_events"
}
