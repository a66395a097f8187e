package domain

import (
	"fmt"
	"time"
)

// AttributeKind represents the value type of an attribute key
type AttributeKind string

const (
	AttributeKindString AttributeKind = "string"
	AttributeKindNumber AttributeKind = "number"
	AttributeKindDate   AttributeKind = "date"
	AttributeKindRange  AttributeKind = "range"
)

// IsValidAttributeKind checks if an attribute kind is valid
func IsValidAttributeKind(kind AttributeKind) bool {
	return kind == AttributeKindString ||
		kind == AttributeKindNumber ||
		kind == AttributeKindDate ||
		kind == AttributeKindRange
}

// IsNumeric reports whether values of this kind carry a numeric range
func (k AttributeKind) IsNumeric() bool {
	return k == AttributeKindNumber || k == AttributeKindRange
}

// OrderSide represents whether an order is a listing or a bid
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// AttributeInput is a single attribute carried by a metadata indexing job
type AttributeInput struct {
	Key   string        `json:"key"`
	Value string        `json:"value"`
	Kind  AttributeKind `json:"kind"`
	Rank  *int          `json:"rank,omitempty"`
}

// TokenMetadataInfo is the payload of a metadata indexing job.
// This is the standard format delivered through NATS to the attribute worker.
type TokenMetadataInfo struct {
	Collection  string           `json:"collection"`
	Contract    string           `json:"contract"`
	TokenID     string           `json:"tokenId"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
	MediaURL    *string          `json:"mediaUrl,omitempty"`
	Attributes  []AttributeInput `json:"attributes"`
}

// Valid reports whether the payload carries everything the indexer needs.
// Payloads failing this check are dropped before dispatch, never retried.
func (i *TokenMetadataInfo) Valid() bool {
	return i.Collection != "" && i.Contract != "" && i.TokenID != "" && i.Attributes != nil
}

// JobKey identifies the token a metadata job targets
func (i *TokenMetadataInfo) JobKey() string {
	return fmt.Sprintf("%s:%s", i.Contract, i.TokenID)
}

// TokenSetID names the single-token token set for order matching
func TokenSetID(contract, tokenID string) string {
	return fmt.Sprintf("token:%s:%s", contract, tokenID)
}

// TriggerKind labels why a revalidation job was produced
type TriggerKind string

const (
	TriggerKindRevalidation TriggerKind = "revalidation"
)

// Trigger carries the reason a revalidation job exists
type Trigger struct {
	Kind TriggerKind `json:"kind"`
}

// RevalidationJob requests recomputation of an order's or token-set's cached
// status. Produced here, consumed by the external order-revalidation worker.
type RevalidationJob struct {
	// Context is the dedup string; jobs sharing a context within one
	// recalculation pass collapse to a single unit of work downstream.
	Context    string    `json:"context"`
	ID         *string   `json:"id,omitempty"`
	TokenSetID *string   `json:"tokenSetId,omitempty"`
	Side       OrderSide `json:"side,omitempty"`
	Trigger    Trigger   `json:"trigger"`
}

// RecountTarget identifies an attribute key or value whose aggregate must be
// recomputed from scratch by the external recount worker. Counts are corrected
// by recomputation, never by in-place decrement.
type RecountTarget struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Value      string `json:"value,omitempty"`
}

// BidEventKind represents the lifecycle event recorded in the bid feed
type BidEventKind string

const (
	BidEventKindNewOrder       BidEventKind = "new-order"
	BidEventKindReprice        BidEventKind = "reprice"
	BidEventKindExpiry         BidEventKind = "expiry"
	BidEventKindCancel         BidEventKind = "cancel"
	BidEventKindBalanceChange  BidEventKind = "balance-change"
	BidEventKindApprovalChange BidEventKind = "approval-change"
)

// FeedCursor is the decoded continuation position of the bid event feed
type FeedCursor struct {
	CreatedAt time.Time
	ID        int64
}
