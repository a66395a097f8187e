package schema

import (
	"time"

	"github.com/openfloor/market-indexer/internal/domain"
)

// Fillability and approval statuses mirror the order ingestion pipeline.
const (
	OrderFillabilityFillable  = "fillable"
	OrderFillabilityNoBalance = "no-balance"
	OrderFillabilityCancelled = "cancelled"
	OrderFillabilityFilled    = "filled"
	OrderFillabilityExpired   = "expired"

	OrderApprovalApproved   = "approved"
	OrderApprovalNoApproval = "no-approval"
	OrderApprovalDisabled   = "disabled"
)

// Order represents the orders table. Read-only input to recalculation; rows
// are written by the external order ingestion path.
type Order struct {
	// ID is the order hash
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Side is buy (bid) or sell (ask)
	Side domain.OrderSide `gorm:"column:side;not null;type:text;index:idx_orders_token_set,priority:2"`
	// TokenSetID identifies the tokens the order applies to
	TokenSetID string `gorm:"column:token_set_id;not null;type:text;index:idx_orders_token_set,priority:1"`
	// Contract is the token contract the order targets
	Contract string `gorm:"column:contract;not null;type:text;index:idx_orders_contract"`
	// Maker is the order creator's address
	Maker string `gorm:"column:maker;not null;type:text"`
	// Taker restricts who can fill the order; nil or the zero address means open
	Taker *string `gorm:"column:taker;type:text"`
	// Price is the order's unit price
	Price float64 `gorm:"column:price;not null;type:numeric"`
	// Value is the order's net value (price minus fees for bids)
	Value float64 `gorm:"column:value;not null;type:numeric"`
	// FeeBps is the total fee in basis points
	FeeBps int64 `gorm:"column:fee_bps;not null;default:0"`
	// QuantityRemaining is the unfilled quantity (string to support very large numbers)
	QuantityRemaining string `gorm:"column:quantity_remaining;not null;default:'1';type:text"`
	// FillabilityStatus tracks whether the order can currently be filled
	FillabilityStatus string `gorm:"column:fillability_status;not null;type:text"`
	// ApprovalStatus tracks whether the maker's assets are approved for transfer
	ApprovalStatus string `gorm:"column:approval_status;not null;type:text"`
	// ValidFrom is the start of the order's validity (epoch seconds)
	ValidFrom int64 `gorm:"column:valid_from;not null;default:0"`
	// ValidUntil is the end of the order's validity (epoch seconds, 0 = open ended)
	ValidUntil int64 `gorm:"column:valid_until;not null;default:0"`
	// SourceID references the marketplace the order came from
	SourceID *int64 `gorm:"column:source_id"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OpenTaker reports whether the order can be filled by anyone
func (o *Order) OpenTaker() bool {
	return o.Taker == nil || *o.Taker == "" || *o.Taker == domain.ETHEREUM_ZERO_ADDRESS
}
