package schema

import (
	"time"

	"github.com/openfloor/market-indexer/internal/domain"
)

// AttributeKey represents the attribute_keys table - the per-collection
// dictionary of attribute names. Created lazily on first sighting; the numeric
// range only ever widens.
type AttributeKey struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// CollectionID scopes the key to one collection
	CollectionID string `gorm:"column:collection_id;not null;type:text;uniqueIndex:idx_attribute_keys_collection_key,priority:1"`
	// Key is the attribute name (e.g. "Background")
	Key string `gorm:"column:key;not null;type:text;uniqueIndex:idx_attribute_keys_collection_key,priority:2"`
	// Kind is the value type of the key (string, number, date, range)
	Kind domain.AttributeKind `gorm:"column:kind;not null;type:text"`
	// Rank is the optional display ordering weight
	Rank *int `gorm:"column:rank"`
	// MinRange is the all-time minimum observed value for numeric kinds
	MinRange *float64 `gorm:"column:min_range;type:numeric"`
	// MaxRange is the all-time maximum observed value for numeric kinds
	MaxRange *float64 `gorm:"column:max_range;type:numeric"`
	// AttributeCount is the number of distinct values ever created for this
	// key. Never decremented inline; corrected by the external recount job.
	AttributeCount int64 `gorm:"column:attribute_count;not null;default:0"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the AttributeKey model
func (AttributeKey) TableName() string {
	return "attribute_keys"
}
