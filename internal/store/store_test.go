package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

// testDBOf exposes the underlying connection for seeding rows the store
// interface deliberately has no writers for (tokens, orders, bid events are
// written by the ingestion path in production)
func testDBOf(t *testing.T, s Store) *gorm.DB {
	pg, ok := s.(*pgStore)
	require.True(t, ok, "store tests require the postgres store")
	return pg.db
}

func seedCollection(t *testing.T, db *gorm.DB, id, contract string) *schema.Collection {
	collection := &schema.Collection{
		ID:         id,
		Contract:   contract,
		TokenSetID: fmt.Sprintf("contract:%s", contract),
	}
	require.NoError(t, db.Create(collection).Error)
	return collection
}

func seedToken(t *testing.T, db *gorm.DB, contract, tokenID string, collectionID *string) *schema.Token {
	token := &schema.Token{
		Contract:     contract,
		TokenID:      tokenID,
		CollectionID: collectionID,
	}
	require.NoError(t, db.Create(token).Error)
	return token
}

type seedOrderInput struct {
	ID          string
	Side        domain.OrderSide
	TokenSetID  string
	Contract    string
	Value       float64
	FeeBps      int64
	Fillability string
	Approval    string
	Taker       *string
}

func seedOrder(t *testing.T, db *gorm.DB, input seedOrderInput) *schema.Order {
	if input.Fillability == "" {
		input.Fillability = schema.OrderFillabilityFillable
	}
	if input.Approval == "" {
		input.Approval = schema.OrderApprovalApproved
	}
	order := &schema.Order{
		ID:                input.ID,
		Side:              input.Side,
		TokenSetID:        input.TokenSetID,
		Contract:          input.Contract,
		Maker:             "0xmaker",
		Taker:             input.Taker,
		Price:             input.Value,
		Value:             input.Value,
		FeeBps:            input.FeeBps,
		QuantityRemaining: "1",
		FillabilityStatus: input.Fillability,
		ApprovalStatus:    input.Approval,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedBidEvent(t *testing.T, db *gorm.DB, contract string, createdAt time.Time) *schema.BidEvent {
	orderID := fmt.Sprintf("0xbid-%s-%d", contract, createdAt.UnixNano())
	event := &schema.BidEvent{
		Kind:       domain.BidEventKindNewOrder,
		Status:     "active",
		Contract:   contract,
		TokenSetID: fmt.Sprintf("contract:%s", contract),
		OrderID:    &orderID,
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

// indexToken registers one attribute for a token through the full resolve,
// ensure, link pipeline and returns the resulting ids
func indexToken(t *testing.T, store Store, collectionID, contract, tokenID, key, value string) (int64, int64) {
	ctx := context.Background()

	keyID, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
		CollectionID: collectionID,
		Key:          key,
		Kind:         domain.AttributeKindString,
	})
	require.NoError(t, err)

	attrID, err := store.EnsureAttribute(ctx, keyID, value)
	require.NoError(t, err)

	err = store.LinkTokenAttribute(ctx, LinkTokenAttributeInput{
		Contract:    contract,
		TokenID:     tokenID,
		AttributeID: attrID,
	})
	require.NoError(t, err)

	return keyID, attrID
}

func stringPtr(s string) *string {
	return &s
}

func float64Ptr(f float64) *float64 {
	return &f
}

// =============================================================================
// Test: Token Metadata
// =============================================================================

func testUpdateTokenMetadata(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	t.Run("writes display fields and attribute mirror", func(t *testing.T) {
		seedToken(t, db, "0x1111", "1", nil)

		matched, err := store.UpdateTokenMetadata(ctx, UpdateTokenMetadataInput{
			Contract:    "0x1111",
			TokenID:     "1",
			Name:        stringPtr("Punk #1"),
			Description: stringPtr("A punk"),
			ImageURL:    stringPtr("https://img.example/1.png"),
			Attributes:  map[string]interface{}{"Background": "Gold"},
		})
		require.NoError(t, err)
		assert.True(t, matched)

		token, err := store.GetToken(ctx, "0x1111", "1")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "Punk #1", *token.Name)
		assert.Equal(t, "A punk", *token.Description)
		assert.Equal(t, "https://img.example/1.png", *token.ImageURL)
		assert.Nil(t, token.MediaURL)
		assert.Equal(t, "Gold", token.Attributes["Background"])
	})

	t.Run("returns false for a token that was never ingested", func(t *testing.T) {
		matched, err := store.UpdateTokenMetadata(ctx, UpdateTokenMetadataInput{
			Contract: "0xmissing",
			TokenID:  "1",
			Name:     stringPtr("Ghost"),
		})
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("clears fields absent from the new metadata", func(t *testing.T) {
		token := seedToken(t, db, "0x1111", "2", nil)
		token.Name = stringPtr("Old name")
		token.MediaURL = stringPtr("https://media.example/old.mp4")
		require.NoError(t, db.Save(token).Error)

		matched, err := store.UpdateTokenMetadata(ctx, UpdateTokenMetadataInput{
			Contract: "0x1111",
			TokenID:  "2",
			Name:     stringPtr("New name"),
		})
		require.NoError(t, err)
		assert.True(t, matched)

		got, err := store.GetToken(ctx, "0x1111", "2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "New name", *got.Name)
		assert.Nil(t, got.MediaURL)
	})
}

func testMarkTokenMetadataIndexed(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	t.Run("flips the flag once", func(t *testing.T) {
		seedToken(t, db, "0x2222", "1", nil)

		err := store.MarkTokenMetadataIndexed(ctx, "0x2222", "1")
		require.NoError(t, err)

		first, err := store.GetToken(ctx, "0x2222", "1")
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.True(t, first.MetadataIndexed)

		// Second call must not rewrite the row
		err = store.MarkTokenMetadataIndexed(ctx, "0x2222", "1")
		require.NoError(t, err)

		second, err := store.GetToken(ctx, "0x2222", "1")
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.True(t, second.MetadataIndexed)
		assert.True(t, second.UpdatedAt.Equal(first.UpdatedAt))
	})

	t.Run("missing token is a no-op", func(t *testing.T) {
		err := store.MarkTokenMetadataIndexed(ctx, "0xmissing", "1")
		require.NoError(t, err)
	})
}

// =============================================================================
// Test: Attribute Dictionary
// =============================================================================

func testResolveAttributeKey(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("creates a string key on first sighting", func(t *testing.T) {
		id, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
			CollectionID: "col-1",
			Key:          "Background",
			Kind:         domain.AttributeKindString,
		})
		require.NoError(t, err)
		assert.NotZero(t, id)

		key, err := store.GetAttributeKey(ctx, "col-1", "Background")
		require.NoError(t, err)
		require.NotNil(t, key)
		assert.Equal(t, id, key.ID)
		assert.Equal(t, domain.AttributeKindString, key.Kind)
		assert.Nil(t, key.MinRange)
		assert.Nil(t, key.MaxRange)
	})

	t.Run("resolving again returns the same id", func(t *testing.T) {
		first, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
			CollectionID: "col-1",
			Key:          "Eyes",
			Kind:         domain.AttributeKindString,
		})
		require.NoError(t, err)

		second, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
			CollectionID: "col-1",
			Key:          "Eyes",
			Kind:         domain.AttributeKindString,
		})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("same key name in another collection is a distinct key", func(t *testing.T) {
		a, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
			CollectionID: "col-1",
			Key:          "Hat",
			Kind:         domain.AttributeKindString,
		})
		require.NoError(t, err)

		b, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
			CollectionID: "col-2",
			Key:          "Hat",
			Kind:         domain.AttributeKindString,
		})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("numeric key seeds the range at the first value", func(t *testing.T) {
		_, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
			CollectionID: "col-1",
			Key:          "Level",
			Kind:         domain.AttributeKindNumber,
			NumericValue: float64Ptr(5),
		})
		require.NoError(t, err)

		key, err := store.GetAttributeKey(ctx, "col-1", "Level")
		require.NoError(t, err)
		require.NotNil(t, key)
		require.NotNil(t, key.MinRange)
		require.NotNil(t, key.MaxRange)
		assert.Equal(t, float64(5), *key.MinRange)
		assert.Equal(t, float64(5), *key.MaxRange)
	})

	t.Run("range widens but never narrows", func(t *testing.T) {
		input := ResolveAttributeKeyInput{
			CollectionID: "col-1",
			Key:          "Power",
			Kind:         domain.AttributeKindNumber,
		}

		input.NumericValue = float64Ptr(10)
		_, err := store.ResolveAttributeKey(ctx, input)
		require.NoError(t, err)

		input.NumericValue = float64Ptr(30)
		_, err = store.ResolveAttributeKey(ctx, input)
		require.NoError(t, err)

		input.NumericValue = float64Ptr(2)
		_, err = store.ResolveAttributeKey(ctx, input)
		require.NoError(t, err)

		// A value inside the observed range must leave it untouched
		input.NumericValue = float64Ptr(15)
		_, err = store.ResolveAttributeKey(ctx, input)
		require.NoError(t, err)

		key, err := store.GetAttributeKey(ctx, "col-1", "Power")
		require.NoError(t, err)
		require.NotNil(t, key)
		assert.Equal(t, float64(2), *key.MinRange)
		assert.Equal(t, float64(30), *key.MaxRange)
	})
}

func testEnsureAttribute(t *testing.T, store Store) {
	ctx := context.Background()

	keyID, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
		CollectionID: "col-ensure",
		Key:          "Background",
		Kind:         domain.AttributeKindString,
	})
	require.NoError(t, err)

	t.Run("creates the value row and counts it", func(t *testing.T) {
		id, err := store.EnsureAttribute(ctx, keyID, "Gold")
		require.NoError(t, err)
		assert.NotZero(t, id)

		key, err := store.GetAttributeKey(ctx, "col-ensure", "Background")
		require.NoError(t, err)
		require.NotNil(t, key)
		assert.Equal(t, int64(1), key.AttributeCount)
	})

	t.Run("ensuring the same value again does not recount", func(t *testing.T) {
		first, err := store.EnsureAttribute(ctx, keyID, "Silver")
		require.NoError(t, err)

		second, err := store.EnsureAttribute(ctx, keyID, "Silver")
		require.NoError(t, err)
		assert.Equal(t, first, second)

		key, err := store.GetAttributeKey(ctx, "col-ensure", "Background")
		require.NoError(t, err)
		require.NotNil(t, key)
		assert.Equal(t, int64(2), key.AttributeCount)
	})
}

func testLinkTokenAttribute(t *testing.T, store Store) {
	ctx := context.Background()

	keyID, err := store.ResolveAttributeKey(ctx, ResolveAttributeKeyInput{
		CollectionID: "col-link",
		Key:          "Fur",
		Kind:         domain.AttributeKindString,
	})
	require.NoError(t, err)
	attrID, err := store.EnsureAttribute(ctx, keyID, "Brown")
	require.NoError(t, err)

	t.Run("links the token and counts it once", func(t *testing.T) {
		err := store.LinkTokenAttribute(ctx, LinkTokenAttributeInput{
			Contract:    "0x3333",
			TokenID:     "1",
			AttributeID: attrID,
		})
		require.NoError(t, err)

		// Replay of the same job must converge, not double count
		err = store.LinkTokenAttribute(ctx, LinkTokenAttributeInput{
			Contract:    "0x3333",
			TokenID:     "1",
			AttributeID: attrID,
		})
		require.NoError(t, err)

		attr, err := store.GetAttribute(ctx, keyID, "Brown")
		require.NoError(t, err)
		require.NotNil(t, attr)
		assert.Equal(t, int64(1), attr.TokenCount)
	})

	t.Run("distinct tokens each count", func(t *testing.T) {
		err := store.LinkTokenAttribute(ctx, LinkTokenAttributeInput{
			Contract:    "0x3333",
			TokenID:     "2",
			AttributeID: attrID,
		})
		require.NoError(t, err)

		attr, err := store.GetAttribute(ctx, keyID, "Brown")
		require.NoError(t, err)
		require.NotNil(t, attr)
		assert.Equal(t, int64(2), attr.TokenCount)
	})

	t.Run("sample images stay most-recent-first, unique, bounded", func(t *testing.T) {
		imgAttrID, err := store.EnsureAttribute(ctx, keyID, "White")
		require.NoError(t, err)

		urls := []string{"a.png", "b.png", "c.png", "d.png", "e.png"}
		for i, url := range urls {
			err := store.LinkTokenAttribute(ctx, LinkTokenAttributeInput{
				Contract:    "0x3333",
				TokenID:     fmt.Sprintf("img-%d", i),
				AttributeID: imgAttrID,
				ImageURL:    stringPtr(url),
			})
			require.NoError(t, err)
		}

		attr, err := store.GetAttribute(ctx, keyID, "White")
		require.NoError(t, err)
		require.NotNil(t, attr)
		assert.Equal(t, []string{"e.png", "d.png", "c.png", "b.png"}, []string(attr.SampleImages))

		// Re-pushing a URL already in the ring changes nothing, head or not
		for i, dup := range []string{"e.png", "c.png"} {
			err = store.LinkTokenAttribute(ctx, LinkTokenAttributeInput{
				Contract:    "0x3333",
				TokenID:     fmt.Sprintf("img-dup-%d", i),
				AttributeID: imgAttrID,
				ImageURL:    stringPtr(dup),
			})
			require.NoError(t, err)
		}

		attr, err = store.GetAttribute(ctx, keyID, "White")
		require.NoError(t, err)
		require.NotNil(t, attr)
		assert.Equal(t, []string{"e.png", "d.png", "c.png", "b.png"}, []string(attr.SampleImages))
	})
}

func testDeleteTokenAttributes(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	t.Run("removes all links and returns the removed pairs", func(t *testing.T) {
		indexToken(t, store, "col-del", "0x4444", "1", "Background", "Gold")
		indexToken(t, store, "col-del", "0x4444", "1", "Eyes", "Laser")
		// Another token sharing a value must keep its link
		indexToken(t, store, "col-del", "0x4444", "2", "Background", "Gold")

		removed, err := store.DeleteTokenAttributes(ctx, "0x4444", "1")
		require.NoError(t, err)
		require.Len(t, removed, 2)

		byKey := make(map[string]RemovedTokenAttribute, len(removed))
		for _, r := range removed {
			assert.Equal(t, "col-del", r.CollectionID)
			assert.NotZero(t, r.AttributeID)
			assert.NotZero(t, r.AttributeKeyID)
			byKey[r.Key] = r
		}
		assert.Equal(t, "Gold", byKey["Background"].Value)
		assert.Equal(t, "Laser", byKey["Eyes"].Value)

		var count int64
		require.NoError(t, db.Model(&schema.TokenAttribute{}).
			Where("contract = ? AND token_id = ?", "0x4444", "1").
			Count(&count).Error)
		assert.Zero(t, count)

		require.NoError(t, db.Model(&schema.TokenAttribute{}).
			Where("contract = ? AND token_id = ?", "0x4444", "2").
			Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("deleting again returns nothing", func(t *testing.T) {
		removed, err := store.DeleteTokenAttributes(ctx, "0x4444", "1")
		require.NoError(t, err)
		assert.Empty(t, removed)
	})

	t.Run("token without attributes returns nothing", func(t *testing.T) {
		removed, err := store.DeleteTokenAttributes(ctx, "0xnever", "1")
		require.NoError(t, err)
		assert.Empty(t, removed)
	})
}

// =============================================================================
// Test: Collection Floor
// =============================================================================

func testComputeCollectionFloorSell(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	t.Run("picks the lowest fillable listing across the collection", func(t *testing.T) {
		seedCollection(t, db, "floor-col", "0x5555")
		cheap := seedOrder(t, db, seedOrderInput{
			ID: "0xcheap", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5555", "1"), Contract: "0x5555", Value: 1.5,
		})
		expensive := seedOrder(t, db, seedOrderInput{
			ID: "0xexpensive", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5555", "2"), Contract: "0x5555", Value: 9,
		})

		t1 := seedToken(t, db, "0x5555", "1", stringPtr("floor-col"))
		t1.FloorSellID = &cheap.ID
		t1.FloorSellValue = &cheap.Value
		require.NoError(t, db.Save(t1).Error)

		t2 := seedToken(t, db, "0x5555", "2", stringPtr("floor-col"))
		t2.FloorSellID = &expensive.ID
		t2.FloorSellValue = &expensive.Value
		require.NoError(t, db.Save(t2).Error)

		floor, err := store.ComputeCollectionFloorSell(ctx, "floor-col")
		require.NoError(t, err)
		require.NotNil(t, floor)
		assert.Equal(t, "0xcheap", floor.ID)
		assert.Equal(t, 1.5, floor.Value)
	})

	t.Run("equal values break ties on lower fees", func(t *testing.T) {
		seedCollection(t, db, "tie-col", "0x5556")
		highFee := seedOrder(t, db, seedOrderInput{
			ID: "0xhighfee", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5556", "1"), Contract: "0x5556", Value: 2, FeeBps: 500,
		})
		lowFee := seedOrder(t, db, seedOrderInput{
			ID: "0xlowfee", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5556", "2"), Contract: "0x5556", Value: 2, FeeBps: 50,
		})

		t1 := seedToken(t, db, "0x5556", "1", stringPtr("tie-col"))
		t1.FloorSellID = &highFee.ID
		require.NoError(t, db.Save(t1).Error)
		t2 := seedToken(t, db, "0x5556", "2", stringPtr("tie-col"))
		t2.FloorSellID = &lowFee.ID
		require.NoError(t, db.Save(t2).Error)

		floor, err := store.ComputeCollectionFloorSell(ctx, "tie-col")
		require.NoError(t, err)
		require.NotNil(t, floor)
		assert.Equal(t, "0xlowfee", floor.ID)
	})

	t.Run("ignores unfillable, unapproved, and private listings", func(t *testing.T) {
		seedCollection(t, db, "filtered-col", "0x5557")

		cancelled := seedOrder(t, db, seedOrderInput{
			ID: "0xcancelled", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5557", "1"), Contract: "0x5557", Value: 1,
			Fillability: schema.OrderFillabilityCancelled,
		})
		unapproved := seedOrder(t, db, seedOrderInput{
			ID: "0xunapproved", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5557", "2"), Contract: "0x5557", Value: 2,
			Approval: schema.OrderApprovalNoApproval,
		})
		private := seedOrder(t, db, seedOrderInput{
			ID: "0xprivate", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5557", "3"), Contract: "0x5557", Value: 3,
			Taker: stringPtr("0xsomeone"),
		})
		open := seedOrder(t, db, seedOrderInput{
			ID: "0xopen", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x5557", "4"), Contract: "0x5557", Value: 4,
			Taker: stringPtr(domain.ETHEREUM_ZERO_ADDRESS),
		})

		for i, order := range []*schema.Order{cancelled, unapproved, private, open} {
			token := seedToken(t, db, "0x5557", fmt.Sprintf("%d", i+1), stringPtr("filtered-col"))
			token.FloorSellID = &order.ID
			require.NoError(t, db.Save(token).Error)
		}

		floor, err := store.ComputeCollectionFloorSell(ctx, "filtered-col")
		require.NoError(t, err)
		require.NotNil(t, floor)
		assert.Equal(t, "0xopen", floor.ID)
	})

	t.Run("nil when no token has a fillable listing", func(t *testing.T) {
		seedCollection(t, db, "empty-col", "0x5558")
		seedToken(t, db, "0x5558", "1", stringPtr("empty-col"))

		floor, err := store.ComputeCollectionFloorSell(ctx, "empty-col")
		require.NoError(t, err)
		assert.Nil(t, floor)
	})
}

func testApplyCollectionFloorSell(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	seedCollection(t, db, "apply-col", "0x6666")
	floor := &FloorSell{ID: "0xfloor", Value: 2.5, Maker: "0xmaker", ValidFrom: 100, ValidUntil: 200}

	t.Run("writes a new floor", func(t *testing.T) {
		updated, err := store.ApplyCollectionFloorSell(ctx, "apply-col", floor)
		require.NoError(t, err)
		assert.True(t, updated)

		collection, err := store.GetCollection(ctx, "apply-col")
		require.NoError(t, err)
		require.NotNil(t, collection)
		assert.Equal(t, "0xfloor", *collection.FloorSellID)
		assert.Equal(t, 2.5, *collection.FloorSellValue)
		assert.Equal(t, "0xmaker", *collection.FloorSellMaker)
		assert.Equal(t, int64(100), *collection.FloorSellValidFrom)
		assert.Equal(t, int64(200), *collection.FloorSellValidUntil)
	})

	t.Run("unchanged floor touches nothing", func(t *testing.T) {
		before, err := store.GetCollection(ctx, "apply-col")
		require.NoError(t, err)
		require.NotNil(t, before)

		updated, err := store.ApplyCollectionFloorSell(ctx, "apply-col", floor)
		require.NoError(t, err)
		assert.False(t, updated)

		after, err := store.GetCollection(ctx, "apply-col")
		require.NoError(t, err)
		require.NotNil(t, after)
		assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))
	})

	t.Run("changed value rewrites", func(t *testing.T) {
		changed := *floor
		changed.Value = 3
		updated, err := store.ApplyCollectionFloorSell(ctx, "apply-col", &changed)
		require.NoError(t, err)
		assert.True(t, updated)

		collection, err := store.GetCollection(ctx, "apply-col")
		require.NoError(t, err)
		require.NotNil(t, collection)
		assert.Equal(t, float64(3), *collection.FloorSellValue)
	})

	t.Run("nil floor clears the cache once", func(t *testing.T) {
		updated, err := store.ApplyCollectionFloorSell(ctx, "apply-col", nil)
		require.NoError(t, err)
		assert.True(t, updated)

		collection, err := store.GetCollection(ctx, "apply-col")
		require.NoError(t, err)
		require.NotNil(t, collection)
		assert.Nil(t, collection.FloorSellID)
		assert.Nil(t, collection.FloorSellValue)
		assert.Nil(t, collection.FloorSellMaker)

		// Clearing an already clear cache is a no-op
		updated, err = store.ApplyCollectionFloorSell(ctx, "apply-col", nil)
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("missing collection touches nothing", func(t *testing.T) {
		updated, err := store.ApplyCollectionFloorSell(ctx, "no-such-col", floor)
		require.NoError(t, err)
		assert.False(t, updated)
	})
}

func testGetBestCollectionOrder(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	collection := seedCollection(t, db, "best-col", "0x7777")

	seedOrder(t, db, seedOrderInput{
		ID: "0xbid-low", Side: domain.OrderSideBuy,
		TokenSetID: collection.TokenSetID, Contract: "0x7777", Value: 1,
	})
	seedOrder(t, db, seedOrderInput{
		ID: "0xbid-high", Side: domain.OrderSideBuy,
		TokenSetID: collection.TokenSetID, Contract: "0x7777", Value: 5,
	})
	seedOrder(t, db, seedOrderInput{
		ID: "0xbid-higher-dead", Side: domain.OrderSideBuy,
		TokenSetID: collection.TokenSetID, Contract: "0x7777", Value: 9,
		Fillability: schema.OrderFillabilityNoBalance,
	})
	seedOrder(t, db, seedOrderInput{
		ID: "0xask-low", Side: domain.OrderSideSell,
		TokenSetID: collection.TokenSetID, Contract: "0x7777", Value: 2,
	})
	seedOrder(t, db, seedOrderInput{
		ID: "0xask-high", Side: domain.OrderSideSell,
		TokenSetID: collection.TokenSetID, Contract: "0x7777", Value: 7,
	})

	t.Run("best bid is the highest fillable value", func(t *testing.T) {
		best, err := store.GetBestCollectionOrder(ctx, "best-col", domain.OrderSideBuy)
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, "0xbid-high", best.ID)
	})

	t.Run("best ask is the lowest fillable value", func(t *testing.T) {
		best, err := store.GetBestCollectionOrder(ctx, "best-col", domain.OrderSideSell)
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, "0xask-low", best.ID)
	})

	t.Run("nil when the collection has no candidates", func(t *testing.T) {
		seedCollection(t, db, "quiet-col", "0x7778")
		best, err := store.GetBestCollectionOrder(ctx, "quiet-col", domain.OrderSideBuy)
		require.NoError(t, err)
		assert.Nil(t, best)
	})
}

func testGetContractTokens(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	for _, id := range []string{"3", "1", "2"} {
		seedToken(t, db, "0x8888", id, nil)
	}
	seedToken(t, db, "0x8889", "1", nil)

	t.Run("enumerates in token order", func(t *testing.T) {
		refs, err := store.GetContractTokens(ctx, "0x8888", 10)
		require.NoError(t, err)
		require.Len(t, refs, 3)
		assert.Equal(t, "1", refs[0].TokenID)
		assert.Equal(t, "2", refs[1].TokenID)
		assert.Equal(t, "3", refs[2].TokenID)
	})

	t.Run("honors the limit", func(t *testing.T) {
		refs, err := store.GetContractTokens(ctx, "0x8888", 2)
		require.NoError(t, err)
		assert.Len(t, refs, 2)
	})

	t.Run("unknown contract yields nothing", func(t *testing.T) {
		refs, err := store.GetContractTokens(ctx, "0xnothing", 10)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})
}

func testGetStaleFloorCollections(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	t.Run("collections with newer listing activity are stale", func(t *testing.T) {
		stale := seedCollection(t, db, "stale-col", "0x9991")
		fresh := seedCollection(t, db, "fresh-col", "0x9992")

		// Listing touched after the stale collection's cache was written
		seedOrder(t, db, seedOrderInput{
			ID: "0xstale-listing", Side: domain.OrderSideSell,
			TokenSetID: domain.TokenSetID("0x9991", "1"), Contract: "0x9991", Value: 1,
		})
		require.NoError(t, db.Model(&schema.Collection{}).
			Where("id = ?", stale.ID).
			Update("updated_at", time.Now().Add(-time.Hour)).Error)

		// Bid activity alone must not mark the fresh collection stale
		seedOrder(t, db, seedOrderInput{
			ID: "0xfresh-bid", Side: domain.OrderSideBuy,
			TokenSetID: domain.TokenSetID("0x9992", "1"), Contract: "0x9992", Value: 1,
		})
		require.NoError(t, db.Model(&schema.Collection{}).
			Where("id = ?", fresh.ID).
			Update("updated_at", time.Now().Add(-time.Hour)).Error)

		ids, err := store.GetStaleFloorCollections(ctx, 10)
		require.NoError(t, err)
		assert.Contains(t, ids, "stale-col")
		assert.NotContains(t, ids, "fresh-col")
	})

	t.Run("honors the limit", func(t *testing.T) {
		ids, err := store.GetStaleFloorCollections(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
	})
}

// =============================================================================
// Test: Bid Event Feed
// =============================================================================

func testGetBidEvents(t *testing.T, store Store) {
	ctx := context.Background()
	db := testDBOf(t, store)

	// Three events share one timestamp to exercise the id tiebreak
	base := time.Now().UTC().Truncate(time.Second)
	var seeded []*schema.BidEvent
	for i := 0; i < 3; i++ {
		seeded = append(seeded, seedBidEvent(t, db, "0xaaaa", base))
	}
	seeded = append(seeded, seedBidEvent(t, db, "0xaaaa", base.Add(time.Second)))
	seeded = append(seeded, seedBidEvent(t, db, "0xbbbb", base.Add(2*time.Second)))

	window := BidEventFilter{
		StartTimestamp: base.Unix() - 10,
		EndTimestamp:   base.Unix() + 10,
		Limit:          100,
	}

	t.Run("descending order is strict on (created_at, id)", func(t *testing.T) {
		filter := window
		filter.SortDesc = true
		events, err := store.GetBidEvents(ctx, filter)
		require.NoError(t, err)
		require.Len(t, events, 5)
		for i := 1; i < len(events); i++ {
			prev, cur := events[i-1], events[i]
			after := prev.CreatedAt.After(cur.CreatedAt) ||
				(prev.CreatedAt.Equal(cur.CreatedAt) && prev.ID > cur.ID)
			assert.True(t, after, "events out of order at index %d", i)
		}
	})

	t.Run("ascending order reverses the stream", func(t *testing.T) {
		events, err := store.GetBidEvents(ctx, window)
		require.NoError(t, err)
		require.Len(t, events, 5)
		assert.Equal(t, seeded[0].ID, events[0].ID)
		assert.Equal(t, seeded[4].ID, events[4].ID)
	})

	t.Run("cursor pages cover the stream exactly once", func(t *testing.T) {
		filter := window
		filter.SortDesc = true
		filter.Limit = 2

		seen := make(map[int64]bool)
		var pages int
		for {
			events, err := store.GetBidEvents(ctx, filter)
			require.NoError(t, err)
			if len(events) == 0 {
				break
			}
			for _, e := range events {
				assert.False(t, seen[e.ID], "event %d repeated", e.ID)
				seen[e.ID] = true
			}
			pages++
			require.Less(t, pages, 10, "pagination did not terminate")
			last := events[len(events)-1]
			filter.Cursor = &domain.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}
			if len(events) < filter.Limit {
				break
			}
		}

		assert.Len(t, seen, 5)
	})

	t.Run("contract filter narrows the stream", func(t *testing.T) {
		filter := window
		contract := "0xbbbb"
		filter.Contract = &contract
		events, err := store.GetBidEvents(ctx, filter)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "0xbbbb", events[0].Contract)
	})

	t.Run("time window excludes events outside it", func(t *testing.T) {
		seedBidEvent(t, db, "0xaaaa", base.Add(-time.Hour))

		events, err := store.GetBidEvents(ctx, window)
		require.NoError(t, err)
		assert.Len(t, events, 5)

		wide := window
		wide.StartTimestamp = base.Add(-2 * time.Hour).Unix()
		events, err = store.GetBidEvents(ctx, wide)
		require.NoError(t, err)
		assert.Len(t, events, 6)
	})

	t.Run("empty window yields an empty page", func(t *testing.T) {
		filter := window
		filter.StartTimestamp = base.Unix() + 1000
		filter.EndTimestamp = base.Unix() + 2000
		events, err := store.GetBidEvents(ctx, filter)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

// =============================================================================
// Test Runner - runs all tests against a given store implementation
// =============================================================================

func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"UpdateTokenMetadata", testUpdateTokenMetadata},
		{"MarkTokenMetadataIndexed", testMarkTokenMetadataIndexed},
		{"ResolveAttributeKey", testResolveAttributeKey},
		{"EnsureAttribute", testEnsureAttribute},
		{"LinkTokenAttribute", testLinkTokenAttribute},
		{"DeleteTokenAttributes", testDeleteTokenAttributes},
		{"ComputeCollectionFloorSell", testComputeCollectionFloorSell},
		{"ApplyCollectionFloorSell", testApplyCollectionFloorSell},
		{"GetBestCollectionOrder", testGetBestCollectionOrder},
		{"GetContractTokens", testGetContractTokens},
		{"GetStaleFloorCollections", testGetStaleFloorCollections},
		{"GetBidEvents", testGetBidEvents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
