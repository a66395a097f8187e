package schema

import (
	"time"
)

// TokenAttribute represents the token_attributes table - the link entity
// between a token and an attribute value. Existence implies the token
// currently carries that attribute; rows are deleted and recreated as a unit
// per indexing pass.
type TokenAttribute struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Contract is the token contract address
	Contract string `gorm:"column:contract;not null;type:text;uniqueIndex:idx_token_attributes_token_attribute,priority:1;index:idx_token_attributes_token,priority:1"`
	// TokenID is the token number within the contract
	TokenID string `gorm:"column:token_id;not null;type:text;uniqueIndex:idx_token_attributes_token_attribute,priority:2;index:idx_token_attributes_token,priority:2"`
	// AttributeID references the linked attribute value
	AttributeID int64 `gorm:"column:attribute_id;not null;uniqueIndex:idx_token_attributes_token_attribute,priority:3;index:idx_token_attributes_attribute"`
	// CreatedAt is the timestamp when this link was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Attribute Attribute `gorm:"foreignKey:AttributeID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the TokenAttribute model
func (TokenAttribute) TableName() string {
	return "token_attributes"
}
