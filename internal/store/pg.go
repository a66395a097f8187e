package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/openfloor/market-indexer/internal/domain"
	"github.com/openfloor/market-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetToken retrieves a token by its (contract, tokenId) pair
func (s *pgStore) GetToken(ctx context.Context, contract, tokenID string) (*schema.Token, error) {
	var token schema.Token
	err := s.db.WithContext(ctx).
		Where("contract = ? AND token_id = ?", contract, tokenID).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// UpdateTokenMetadata writes the token's cached display fields and flattened
// attribute map. Returns false when no token row matched (contract, tokenId);
// the caller treats that as a no-op success, not an error.
func (s *pgStore) UpdateTokenMetadata(ctx context.Context, input UpdateTokenMetadataInput) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&schema.Token{}).
		Where("contract = ? AND token_id = ?", input.Contract, input.TokenID).
		Select("name", "description", "image_url", "media_url", "attributes", "updated_at").
		Updates(schema.Token{
			Name:        input.Name,
			Description: input.Description,
			ImageURL:    input.ImageURL,
			MediaURL:    input.MediaURL,
			Attributes:  datatypes.JSONMap(input.Attributes),
			UpdatedAt:   time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update token metadata: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

// MarkTokenMetadataIndexed flips metadata_indexed false->true. The predicate
// skips the write entirely when the flag is already set, avoiding redundant
// updated_at bumps and the downstream triggers keyed off them.
func (s *pgStore) MarkTokenMetadataIndexed(ctx context.Context, contract, tokenID string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Token{}).
		Where("contract = ? AND token_id = ? AND metadata_indexed = ?", contract, tokenID, false).
		Updates(map[string]interface{}{"metadata_indexed": true, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to mark token metadata indexed: %w", err)
	}
	return nil
}

// DeleteTokenAttributes removes all attribute links for a token, returning
// the removed (key, value) pairs joined with their dictionary rows so the
// caller can schedule recount jobs for each
func (s *pgStore) DeleteTokenAttributes(ctx context.Context, contract, tokenID string) ([]RemovedTokenAttribute, error) {
	var removed []RemovedTokenAttribute
	err := s.db.WithContext(ctx).Raw(`
		DELETE FROM token_attributes ta
		USING attributes a, attribute_keys k
		WHERE ta.attribute_id = a.id
			AND a.attribute_key_id = k.id
			AND ta.contract = ?
			AND ta.token_id = ?
		RETURNING k.collection_id, k.key, a.value, a.id AS attribute_id, k.id AS attribute_key_id
	`, contract, tokenID).Scan(&removed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to delete token attributes: %w", err)
	}

	return removed, nil
}

// ResolveAttributeKey finds or creates the attribute key for (collection, key).
// For numeric kinds the lookup doubles as the range widening: a single
// conditional UPDATE folds the new value into [min,max] and returns the id.
// A create-race with a concurrent first-sighting is resolved by one reselect;
// beyond that the caller gets ErrAttributeKeyUnresolved and the queue retry
// will see the now-created row.
func (s *pgStore) ResolveAttributeKey(ctx context.Context, input ResolveAttributeKeyInput) (int64, error) {
	// 1. Conditional update-or-lookup on the existing row
	if input.Kind.IsNumeric() && input.NumericValue != nil {
		var rows []struct {
			ID int64 `gorm:"column:id"`
		}
		err := s.db.WithContext(ctx).Raw(`
			UPDATE attribute_keys
			SET min_range = LEAST(COALESCE(min_range, ?), ?),
				max_range = GREATEST(COALESCE(max_range, ?), ?),
				updated_at = now()
			WHERE collection_id = ? AND key = ?
			RETURNING id
		`, *input.NumericValue, *input.NumericValue, *input.NumericValue, *input.NumericValue,
			input.CollectionID, input.Key).Scan(&rows).Error
		if err != nil {
			return 0, fmt.Errorf("failed to widen attribute key range: %w", err)
		}
		if len(rows) > 0 {
			return rows[0].ID, nil
		}
	} else {
		existing, err := s.GetAttributeKey(ctx, input.CollectionID, input.Key)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	// 2. First sighting: insert the key, seeding the range at {value, value}
	// for numeric kinds. ON CONFLICT DO NOTHING absorbs concurrent creators.
	key := schema.AttributeKey{
		CollectionID: input.CollectionID,
		Key:          input.Key,
		Kind:         input.Kind,
		Rank:         input.Rank,
	}
	if input.Kind.IsNumeric() && input.NumericValue != nil {
		key.MinRange = input.NumericValue
		key.MaxRange = input.NumericValue
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection_id"}, {Name: "key"}},
			DoNothing: true,
		}).
		Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(&key)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to create attribute key: %w", res.Error)
	}
	if key.ID != 0 {
		return key.ID, nil
	}

	// 3. Create-race: the concurrent winner's row must be visible by now.
	// For numeric kinds the losing value still has to widen the range, so
	// the lookup is the conditional UPDATE again rather than a plain select.
	if input.Kind.IsNumeric() && input.NumericValue != nil {
		var rows []struct {
			ID int64 `gorm:"column:id"`
		}
		err := s.db.WithContext(ctx).Raw(`
			UPDATE attribute_keys
			SET min_range = LEAST(COALESCE(min_range, ?), ?),
				max_range = GREATEST(COALESCE(max_range, ?), ?),
				updated_at = now()
			WHERE collection_id = ? AND key = ?
			RETURNING id
		`, *input.NumericValue, *input.NumericValue, *input.NumericValue, *input.NumericValue,
			input.CollectionID, input.Key).Scan(&rows).Error
		if err != nil {
			return 0, fmt.Errorf("failed to widen attribute key range: %w", err)
		}
		if len(rows) > 0 {
			return rows[0].ID, nil
		}
	} else {
		existing, err := s.GetAttributeKey(ctx, input.CollectionID, input.Key)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	return 0, domain.ErrAttributeKeyUnresolved
}

// EnsureAttribute finds or creates the attribute value row for (key, value).
// The key's attribute_count is incremented by exactly the number of rows the
// insert actually created, which keeps the counter correct under concurrent
// creators without any locking.
func (s *pgStore) EnsureAttribute(ctx context.Context, attributeKeyID int64, value string) (int64, error) {
	existing, err := s.GetAttribute(ctx, attributeKeyID, value)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	attr := schema.Attribute{
		AttributeKeyID: attributeKeyID,
		Value:          value,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attribute_key_id"}, {Name: "value"}},
			DoNothing: true,
		}).
		Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(&attr)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to create attribute: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		err := s.db.WithContext(ctx).
			Model(&schema.AttributeKey{}).
			Where("id = ?", attributeKeyID).
			Update("attribute_count", gorm.Expr("attribute_count + ?", res.RowsAffected)).Error
		if err != nil {
			return 0, fmt.Errorf("failed to increment attribute count: %w", err)
		}
	}

	if attr.ID != 0 {
		return attr.ID, nil
	}

	// Concurrent writer won the insert race; its row is the one to use
	existing, err = s.GetAttribute(ctx, attributeKeyID, value)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	return 0, domain.ErrAttributeUnresolved
}

// LinkTokenAttribute inserts the token attribute link. token_count is
// incremented by the rows actually inserted (0 when the link already existed),
// so replaying the same job converges instead of double counting.
func (s *pgStore) LinkTokenAttribute(ctx context.Context, input LinkTokenAttributeInput) error {
	link := schema.TokenAttribute{
		Contract:    input.Contract,
		TokenID:     input.TokenID,
		AttributeID: input.AttributeID,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract"}, {Name: "token_id"}, {Name: "attribute_id"}},
			DoNothing: true,
		}).
		Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(&link)
	if res.Error != nil {
		return fmt.Errorf("failed to create token attribute: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		err := s.db.WithContext(ctx).
			Model(&schema.Attribute{}).
			Where("id = ?", input.AttributeID).
			Updates(map[string]interface{}{
				"token_count": gorm.Expr("token_count + ?", res.RowsAffected),
				"updated_at":  time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to increment token count: %w", err)
		}
	}

	if input.ImageURL != nil && *input.ImageURL != "" {
		if err := s.pushAttributeSampleImage(ctx, input.AttributeID, *input.ImageURL); err != nil {
			return err
		}
	}

	return nil
}

// pushAttributeSampleImage updates the attribute's sample image ring under a
// row lock. The lock only serializes writers of the same attribute value.
func (s *pgStore) pushAttributeSampleImage(ctx context.Context, attributeID int64, imageURL string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attr schema.Attribute
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", attributeID).
			First(&attr).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to lock attribute: %w", err)
		}

		updated, changed := PushSampleImage(attr.SampleImages, imageURL)
		if !changed {
			return nil
		}

		err = tx.Model(&schema.Attribute{}).
			Where("id = ?", attributeID).
			Updates(map[string]interface{}{
				"sample_images": datatypes.NewJSONSlice(updated),
				"updated_at":    time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update sample images: %w", err)
		}

		return nil
	})
}

// GetAttributeKey retrieves an attribute key by (collection, key)
func (s *pgStore) GetAttributeKey(ctx context.Context, collectionID, key string) (*schema.AttributeKey, error) {
	var attributeKey schema.AttributeKey
	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND key = ?", collectionID, key).
		First(&attributeKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attribute key: %w", err)
	}
	return &attributeKey, nil
}

// GetAttribute retrieves an attribute value row by (key id, value)
func (s *pgStore) GetAttribute(ctx context.Context, attributeKeyID int64, value string) (*schema.Attribute, error) {
	var attribute schema.Attribute
	err := s.db.WithContext(ctx).
		Where("attribute_key_id = ? AND value = ?", attributeKeyID, value).
		First(&attribute).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attribute: %w", err)
	}
	return &attribute, nil
}

// GetCollection retrieves a collection by id
func (s *pgStore) GetCollection(ctx context.Context, id string) (*schema.Collection, error) {
	var collection schema.Collection
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &collection, nil
}

// ComputeCollectionFloorSell computes the minimum-value fillable listing among
// the collection's tokens, joined through each token's cached floor-sell order
func (s *pgStore) ComputeCollectionFloorSell(ctx context.Context, collectionID string) (*FloorSell, error) {
	var rows []FloorSell
	err := s.db.WithContext(ctx).Raw(`
		SELECT o.id, o.value, o.maker, o.source_id, o.valid_from, o.valid_until
		FROM tokens t
		JOIN orders o ON o.id = t.floor_sell_id
		WHERE t.collection_id = ?
			AND o.side = ?
			AND o.fillability_status = ?
			AND o.approval_status = ?
			AND (o.taker IS NULL OR o.taker = '' OR o.taker = ?)
		ORDER BY o.value ASC, o.fee_bps ASC
		LIMIT 1
	`, collectionID, domain.OrderSideSell, schema.OrderFillabilityFillable,
		schema.OrderApprovalApproved, domain.ETHEREUM_ZERO_ADDRESS).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute collection floor: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ApplyCollectionFloorSell writes the computed floor onto the collection. The
// predicate makes it a compare-and-write: when the stored floor id and value
// already match, zero rows are touched and updated_at stays put, so downstream
// watchers see no spurious change.
func (s *pgStore) ApplyCollectionFloorSell(ctx context.Context, collectionID string, floor *FloorSell) (bool, error) {
	var res *gorm.DB
	if floor == nil {
		res = s.db.WithContext(ctx).Exec(`
			UPDATE collections
			SET floor_sell_id = NULL,
				floor_sell_value = NULL,
				floor_sell_maker = NULL,
				floor_sell_source_id = NULL,
				floor_sell_valid_from = NULL,
				floor_sell_valid_until = NULL,
				updated_at = now()
			WHERE id = ?
				AND (floor_sell_id IS NOT NULL OR floor_sell_value IS NOT NULL)
		`, collectionID)
	} else {
		res = s.db.WithContext(ctx).Exec(`
			UPDATE collections
			SET floor_sell_id = ?,
				floor_sell_value = ?,
				floor_sell_maker = ?,
				floor_sell_source_id = ?,
				floor_sell_valid_from = ?,
				floor_sell_valid_until = ?,
				updated_at = now()
			WHERE id = ?
				AND (floor_sell_id IS DISTINCT FROM ? OR floor_sell_value IS DISTINCT FROM ?)
		`, floor.ID, floor.Value, floor.Maker, floor.SourceID, floor.ValidFrom, floor.ValidUntil,
			collectionID, floor.ID, floor.Value)
	}
	if res.Error != nil {
		return false, fmt.Errorf("failed to apply collection floor: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

// GetBestCollectionOrder returns the single best fillable, approved,
// open-taker order for a collection on the given side: lowest (value, fee)
// for asks, highest value for bids. Nil when no candidate exists.
func (s *pgStore) GetBestCollectionOrder(ctx context.Context, collectionID string, side domain.OrderSide) (*schema.Order, error) {
	orderBy := "o.value ASC, o.fee_bps ASC"
	if side == domain.OrderSideBuy {
		orderBy = "o.value DESC"
	}

	var orders []schema.Order
	err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT o.*
		FROM orders o
		JOIN collections c ON c.token_set_id = o.token_set_id
		WHERE c.id = ?
			AND o.side = ?
			AND o.fillability_status = ?
			AND o.approval_status = ?
			AND (o.taker IS NULL OR o.taker = '' OR o.taker = ?)
		ORDER BY %s
		LIMIT 1
	`, orderBy), collectionID, side, schema.OrderFillabilityFillable,
		schema.OrderApprovalApproved, domain.ETHEREUM_ZERO_ADDRESS).Scan(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get best collection order: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

// GetContractTokens enumerates up to limit tokens for a contract
func (s *pgStore) GetContractTokens(ctx context.Context, contract string, limit int) ([]TokenRef, error) {
	var refs []TokenRef
	err := s.db.WithContext(ctx).
		Model(&schema.Token{}).
		Select("contract", "token_id").
		Where("contract = ?", contract).
		Order("token_id ASC").
		Limit(limit).
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get contract tokens: %w", err)
	}
	return refs, nil
}

// GetStaleFloorCollections lists collections with listing activity newer than
// their cached floor, i.e. candidates for targeted recomputation
func (s *pgStore) GetStaleFloorCollections(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Raw(`
		SELECT c.id
		FROM collections c
		WHERE EXISTS (
			SELECT 1 FROM orders o
			WHERE o.contract = c.contract
				AND o.side = ?
				AND o.updated_at > c.updated_at
		)
		ORDER BY c.id ASC
		LIMIT ?
	`, domain.OrderSideSell, limit).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get stale floor collections: %w", err)
	}
	return ids, nil
}

// GetBidEvents returns one page of the bid event feed. The cursor predicate is
// a strict row-value comparison on (created_at, id), so pages never repeat or
// skip rows even when many events share a created_at. Reads prefer the
// replica when a resolver is configured.
func (s *pgStore) GetBidEvents(ctx context.Context, filter BidEventFilter) ([]schema.BidEvent, error) {
	query := s.db.WithContext(ctx)
	if hasDBResolver(s.db) {
		query = query.Clauses(dbresolver.Read)
	}

	query = query.Model(&schema.BidEvent{}).
		Where("created_at >= to_timestamp(?)", filter.StartTimestamp).
		Where("created_at <= to_timestamp(?)", filter.EndTimestamp)

	if filter.Contract != nil && *filter.Contract != "" {
		query = query.Where("contract = ?", *filter.Contract)
	}

	if filter.Cursor != nil {
		if filter.SortDesc {
			query = query.Where("(created_at, id) < (?, ?)", filter.Cursor.CreatedAt, filter.Cursor.ID)
		} else {
			query = query.Where("(created_at, id) > (?, ?)", filter.Cursor.CreatedAt, filter.Cursor.ID)
		}
	}

	if filter.SortDesc {
		query = query.Order("created_at DESC, id DESC")
	} else {
		query = query.Order("created_at ASC, id ASC")
	}

	var events []schema.BidEvent
	if err := query.Limit(filter.Limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to get bid events: %w", err)
	}

	return events, nil
}
