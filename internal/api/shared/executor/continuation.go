package executor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openfloor/market-indexer/internal/domain"
)

// EncodeContinuation encodes a feed position as an opaque continuation token.
// Microsecond precision matches the database timestamp resolution, so the
// decoded cursor reproduces the row position exactly.
func EncodeContinuation(cursor domain.FeedCursor) string {
	raw := fmt.Sprintf("%d_%d", cursor.CreatedAt.UnixMicro(), cursor.ID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// ParseContinuation decodes an opaque continuation token back into a feed
// position. Malformed tokens yield ErrInvalidContinuation.
func ParseContinuation(token string) (*domain.FeedCursor, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.ErrInvalidContinuation
	}

	parts := strings.SplitN(string(raw), "_", 2)
	if len(parts) != 2 {
		return nil, domain.ErrInvalidContinuation
	}

	createdAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidContinuation
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidContinuation
	}

	return &domain.FeedCursor{
		CreatedAt: time.UnixMicro(createdAt).UTC(),
		ID:        id,
	}, nil
}
