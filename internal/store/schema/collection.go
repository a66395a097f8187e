package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Collection represents the collections table - the aggregate entity carrying
// the cached floor-ask fields. The floor cache is mutated only by the
// aggregate recalculator, and only when the computed value differs from the
// stored one.
type Collection struct {
	// ID is the collection identifier (contract address, or contract:range
	// for shared contracts)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Name is the collection's display name
	Name *string `gorm:"column:name;type:text"`
	// Contract is the underlying token contract address
	Contract string `gorm:"column:contract;not null;type:text;index:idx_collections_contract"`
	// TokenSetID groups the collection's tokens for order matching
	TokenSetID string `gorm:"column:token_set_id;not null;type:text"`
	// TokenCount is the number of tokens in the collection
	TokenCount int64 `gorm:"column:token_count;not null;default:0"`
	// Metadata holds display metadata as JSON
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	// FloorSellID is the id of the collection's cached floor listing
	FloorSellID *string `gorm:"column:floor_sell_id;type:text"`
	// FloorSellValue is the value of the cached floor listing
	FloorSellValue *float64 `gorm:"column:floor_sell_value;type:numeric"`
	// FloorSellMaker is the maker of the cached floor listing
	FloorSellMaker *string `gorm:"column:floor_sell_maker;type:text"`
	// FloorSellSourceID references the marketplace the floor listing came from
	FloorSellSourceID *int64 `gorm:"column:floor_sell_source_id"`
	// FloorSellValidFrom is the start of the floor listing's validity (epoch seconds)
	FloorSellValidFrom *int64 `gorm:"column:floor_sell_valid_from"`
	// FloorSellValidUntil is the end of the floor listing's validity (epoch seconds)
	FloorSellValidUntil *int64 `gorm:"column:floor_sell_valid_until"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated. Downstream
	// watchers key off this column, which is why unchanged floors must not be
	// rewritten.
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Collection model
func (Collection) TableName() string {
	return "collections"
}
