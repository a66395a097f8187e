package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Token represents the tokens table - one row per (contract, token_id) pair.
// Display fields and the flattened attribute map are a cache written by the
// attribute indexer; raw token state is ingested elsewhere.
type Token struct {
	// Contract is the token contract address
	Contract string `gorm:"column:contract;primaryKey;type:text"`
	// TokenID is the token number within the contract (string to support very large numbers)
	TokenID string `gorm:"column:token_id;primaryKey;type:text"`
	// CollectionID references the collection this token belongs to
	CollectionID *string `gorm:"column:collection_id;type:text;index:idx_tokens_collection_id"`
	// Name is the token's cached display name
	Name *string `gorm:"column:name;type:text"`
	// Description is the token's cached description
	Description *string `gorm:"column:description;type:text"`
	// ImageURL is the direct URL to the token's image
	ImageURL *string `gorm:"column:image_url;type:text"`
	// MediaURL is the URL to animated or interactive content
	MediaURL *string `gorm:"column:media_url;type:text"`
	// Attributes is the flattened key->value mirror of the token's attributes
	Attributes datatypes.JSONMap `gorm:"column:attributes;type:jsonb"`
	// FloorSellID is the id of the token's current floor listing, maintained
	// by the order ingestion path and read by the aggregate recalculator
	FloorSellID *string `gorm:"column:floor_sell_id;type:text"`
	// FloorSellValue is the value of the token's current floor listing
	FloorSellValue *float64 `gorm:"column:floor_sell_value;type:numeric"`
	// MetadataIndexed transitions false->true once, when the first attribute
	// indexing pass for the token completes
	MetadataIndexed bool `gorm:"column:metadata_indexed;not null;default:false"`
	// CreatedAt is the timestamp when this record was first ingested
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}
