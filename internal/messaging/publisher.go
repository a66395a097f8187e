package messaging

import (
	"context"

	"github.com/openfloor/market-indexer/internal/domain"
)

// Subjects published to the derived-state stream. The metadata subject is
// consumed by this service's own worker; the revalidation and recount
// subjects are consumed by downstream workers.
const (
	SubjectTokenMetadata = "derived.metadata"
	SubjectRevalidation  = "derived.revalidation"
	SubjectRecountKey    = "derived.recount.key"
	SubjectRecountValue  = "derived.recount.value"
)

// Publisher defines the interface for publishing derived-state jobs to the
// message broker
type Publisher interface {
	// PublishTokenMetadata enqueues a metadata indexing job for a token
	PublishTokenMetadata(ctx context.Context, info *domain.TokenMetadataInfo) error
	// PublishRevalidation enqueues a targeted order revalidation job
	PublishRevalidation(ctx context.Context, job *domain.RevalidationJob) error
	// PublishRecount enqueues an aggregate recount for an attribute key or,
	// when target.Value is set, a single attribute value
	PublishRecount(ctx context.Context, target *domain.RecountTarget) error
	// Close closes the connection
	Close()
}
