// Package indexer maintains the per-token attribute dictionary: the
// attribute_keys / attributes / token_attributes tables and the token's
// cached metadata fields. One indexing pass per metadata job, idempotent
// under redelivery.
package indexer

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/openfloor/market-indexer/internal/dispatch"
	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/logger"
	"github.com/openfloor/market-indexer/internal/store"
)

// Indexer runs attribute indexing passes
type Indexer struct {
	store    store.Store
	dispatch dispatch.Dispatcher
}

// New creates an attribute indexer
func New(s store.Store, d dispatch.Dispatcher) *Indexer {
	return &Indexer{
		store:    s,
		dispatch: d,
	}
}

// IndexTokenMetadata runs one attribute indexing pass for the token named by
// the job payload:
//
//  1. Write the token's cached display fields and flattened attribute map.
//     A token that does not exist yet is a no-op success; the ingestion path
//     will republish the job once the token row lands.
//  2. Delete the token's existing attribute links and schedule a recount for
//     every removed (key, value) pair. Counts are never decremented inline.
//  3. For each attribute in the payload: resolve the key (widening numeric
//     ranges), ensure the value row, and link it to the token. All counter
//     movement rides on the conflict-safe inserts.
//  4. Mark the token's metadata as indexed.
//
// Replaying the same payload converges: the delete-then-recreate shape makes
// the link set a pure function of the latest payload, and every insert is
// conflict-safe.
func (ix *Indexer) IndexTokenMetadata(ctx context.Context, info *domain.TokenMetadataInfo) error {
	if !info.Valid() {
		return domain.ErrInvalidJobPayload
	}

	matched, err := ix.store.UpdateTokenMetadata(ctx, store.UpdateTokenMetadataInput{
		Contract:    info.Contract,
		TokenID:     info.TokenID,
		Name:        info.Name,
		Description: info.Description,
		ImageURL:    info.ImageURL,
		MediaURL:    info.MediaURL,
		Attributes:  flattenAttributes(info.Attributes),
	})
	if err != nil {
		return err
	}
	if !matched {
		logger.WarnCtx(ctx, "Token not ingested yet, skipping metadata job",
			zap.String("token", info.JobKey()))
		return nil
	}

	removed, err := ix.store.DeleteTokenAttributes(ctx, info.Contract, info.TokenID)
	if err != nil {
		return err
	}
	recountedKeys := make(map[string]bool, len(removed))
	for _, r := range removed {
		if err := ix.dispatch.DispatchValueRecount(ctx, r.CollectionID, r.Key, r.Value); err != nil {
			return err
		}
		keyRef := fmt.Sprintf("%s:%s", r.CollectionID, r.Key)
		if recountedKeys[keyRef] {
			continue
		}
		recountedKeys[keyRef] = true
		if err := ix.dispatch.DispatchKeyRecount(ctx, r.CollectionID, r.Key); err != nil {
			return err
		}
	}

	for _, attr := range info.Attributes {
		if !validAttribute(attr) {
			logger.WarnCtx(ctx, "Skipping malformed attribute",
				zap.String("token", info.JobKey()),
				zap.String("key", attr.Key))
			continue
		}

		if err := ix.indexAttribute(ctx, info, attr); err != nil {
			return err
		}
	}

	return ix.store.MarkTokenMetadataIndexed(ctx, info.Contract, info.TokenID)
}

func (ix *Indexer) indexAttribute(ctx context.Context, info *domain.TokenMetadataInfo, attr domain.AttributeInput) error {
	keyID, err := ix.store.ResolveAttributeKey(ctx, store.ResolveAttributeKeyInput{
		CollectionID: info.Collection,
		Key:          attr.Key,
		Kind:         attr.Kind,
		Rank:         attr.Rank,
		NumericValue: numericValue(attr),
	})
	if err != nil {
		return err
	}

	attributeID, err := ix.store.EnsureAttribute(ctx, keyID, attr.Value)
	if err != nil {
		return err
	}

	return ix.store.LinkTokenAttribute(ctx, store.LinkTokenAttributeInput{
		Contract:    info.Contract,
		TokenID:     info.TokenID,
		AttributeID: attributeID,
		ImageURL:    info.ImageURL,
	})
}

// validAttribute filters payload entries the dictionary cannot represent
func validAttribute(attr domain.AttributeInput) bool {
	if attr.Key == "" || attr.Value == "" {
		return false
	}
	return domain.IsValidAttributeKind(attr.Kind)
}

// numericValue parses the attribute value for range-carrying kinds. A value
// that fails to parse simply does not move the range; the attribute is still
// indexed as its string form.
func numericValue(attr domain.AttributeInput) *float64 {
	if !attr.Kind.IsNumeric() {
		return nil
	}
	v, err := strconv.ParseFloat(attr.Value, 64)
	if err != nil {
		return nil
	}
	return &v
}

// flattenAttributes projects the attribute list onto the token row's cached
// key->value map
func flattenAttributes(attrs []domain.AttributeInput) map[string]interface{} {
	flat := make(map[string]interface{}, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "" {
			continue
		}
		flat[attr.Key] = attr.Value
	}
	return flat
}
