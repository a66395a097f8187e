package store

import (
	"context"

	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/store/schema"
)

// UpdateTokenMetadataInput carries the cached display fields written by the
// attribute indexer. The updatable column set is fixed; there is no dynamic
// field-to-column mapping.
type UpdateTokenMetadataInput struct {
	Contract    string
	TokenID     string
	Name        *string
	Description *string
	ImageURL    *string
	MediaURL    *string
	// Attributes is the flattened key->value mirror
	Attributes map[string]interface{}
}

// RemovedTokenAttribute describes a link removed by DeleteTokenAttributes,
// joined with its dictionary entries so recount jobs can be scheduled
type RemovedTokenAttribute struct {
	CollectionID   string `gorm:"column:collection_id"`
	Key            string `gorm:"column:key"`
	Value          string `gorm:"column:value"`
	AttributeID    int64  `gorm:"column:attribute_id"`
	AttributeKeyID int64  `gorm:"column:attribute_key_id"`
}

// ResolveAttributeKeyInput identifies (and, on first sighting, describes) an
// attribute key
type ResolveAttributeKeyInput struct {
	CollectionID string
	Key          string
	Kind         domain.AttributeKind
	Rank         *int
	// NumericValue is set for numeric kinds; the key's [min,max] range widens
	// to include it
	NumericValue *float64
}

// LinkTokenAttributeInput identifies the token attribute link to insert
type LinkTokenAttributeInput struct {
	Contract    string
	TokenID     string
	AttributeID int64
	// ImageURL, when set, is pushed onto the attribute's sample image ring
	ImageURL *string
}

// FloorSell is a computed collection floor listing
type FloorSell struct {
	ID         string   `gorm:"column:id"`
	Value      float64  `gorm:"column:value"`
	Maker      string   `gorm:"column:maker"`
	SourceID   *int64   `gorm:"column:source_id"`
	ValidFrom  int64    `gorm:"column:valid_from"`
	ValidUntil int64    `gorm:"column:valid_until"`
}

// TokenRef identifies one token of a contract
type TokenRef struct {
	Contract string `gorm:"column:contract"`
	TokenID  string `gorm:"column:token_id"`
}

// BidEventFilter selects a page of the bid event feed
type BidEventFilter struct {
	Contract       *string
	StartTimestamp int64
	EndTimestamp   int64
	// SortDesc selects descending (created_at, id) order; ascending otherwise
	SortDesc bool
	// Cursor resumes after/before the given position, exclusive
	Cursor *domain.FeedCursor
	Limit  int
}

// Store defines the interface for database operations
type Store interface {
	// GetToken retrieves a token by its (contract, tokenId) pair
	GetToken(ctx context.Context, contract, tokenID string) (*schema.Token, error)
	// UpdateTokenMetadata writes the token's cached display fields and
	// attribute map; returns false when no token row matched
	UpdateTokenMetadata(ctx context.Context, input UpdateTokenMetadataInput) (bool, error)
	// MarkTokenMetadataIndexed flips metadata_indexed to true; the write is
	// skipped when the flag is already set
	MarkTokenMetadataIndexed(ctx context.Context, contract, tokenID string) error

	// DeleteTokenAttributes removes all attribute links for a token and
	// returns the removed pairs
	DeleteTokenAttributes(ctx context.Context, contract, tokenID string) ([]RemovedTokenAttribute, error)
	// ResolveAttributeKey finds or creates the attribute key, widening the
	// numeric range when applicable
	ResolveAttributeKey(ctx context.Context, input ResolveAttributeKeyInput) (int64, error)
	// EnsureAttribute finds or creates the attribute value row, incrementing
	// the key's attribute_count by the rows actually inserted
	EnsureAttribute(ctx context.Context, attributeKeyID int64, value string) (int64, error)
	// LinkTokenAttribute inserts the token attribute link, incrementing
	// token_count by the rows actually inserted, and updates sample images
	LinkTokenAttribute(ctx context.Context, input LinkTokenAttributeInput) error
	// GetAttributeKey retrieves an attribute key by (collection, key)
	GetAttributeKey(ctx context.Context, collectionID, key string) (*schema.AttributeKey, error)
	// GetAttribute retrieves an attribute value row by (key id, value)
	GetAttribute(ctx context.Context, attributeKeyID int64, value string) (*schema.Attribute, error)

	// GetCollection retrieves a collection by id
	GetCollection(ctx context.Context, id string) (*schema.Collection, error)
	// ComputeCollectionFloorSell computes the current floor listing for a
	// collection; nil when no fillable listing exists
	ComputeCollectionFloorSell(ctx context.Context, collectionID string) (*FloorSell, error)
	// ApplyCollectionFloorSell writes the computed floor onto the collection
	// only when id or value differ from the stored cache; returns whether a
	// write happened
	ApplyCollectionFloorSell(ctx context.Context, collectionID string, floor *FloorSell) (bool, error)
	// GetBestCollectionOrder returns the single best fillable, approved,
	// open-taker order for a collection on the given side, or nil
	GetBestCollectionOrder(ctx context.Context, collectionID string, side domain.OrderSide) (*schema.Order, error)
	// GetContractTokens enumerates up to limit tokens for a contract
	GetContractTokens(ctx context.Context, contract string, limit int) ([]TokenRef, error)
	// GetStaleFloorCollections lists collections whose floor cache is older
	// than their most recent listing activity
	GetStaleFloorCollections(ctx context.Context, limit int) ([]string, error)

	// GetBidEvents returns one page of the append-only bid event feed in
	// strict (created_at, id) order
	GetBidEvents(ctx context.Context, filter BidEventFilter) ([]schema.BidEvent, error)
}
