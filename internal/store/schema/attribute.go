package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Attribute represents the attributes table - one row per distinct
// (attribute_key, value) pair ever sighted.
type Attribute struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// AttributeKeyID references the owning attribute key
	AttributeKeyID int64 `gorm:"column:attribute_key_id;not null;uniqueIndex:idx_attributes_key_value,priority:1"`
	// Value is the attribute value (e.g. "Gold")
	Value string `gorm:"column:value;not null;type:text;uniqueIndex:idx_attributes_key_value,priority:2"`
	// TokenCount is the number of tokens currently linked to this value.
	// Incremented only by the conflict-safe link insert; corrected downward
	// by the external recount job, never decremented inline.
	TokenCount int64 `gorm:"column:token_count;not null;default:0"`
	// SampleImages is a bounded most-recent-first cache of example images
	// for this value (at most 4 entries, no duplicates)
	SampleImages datatypes.JSONSlice[string] `gorm:"column:sample_images;type:jsonb"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	AttributeKey AttributeKey `gorm:"foreignKey:AttributeKeyID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Attribute model
func (Attribute) TableName() string {
	return "attributes"
}
