package store

import "github.com/openfloor/market-indexer/internal/domain"

// PushSampleImage folds imageURL into an attribute's sample image ring:
// newest first, oldest evicted once the ring holds MAX_SAMPLE_IMAGES entries.
// A URL already anywhere in the ring leaves it untouched. The second return
// reports whether the ring actually changed.
func PushSampleImage(images []string, imageURL string) ([]string, bool) {
	if imageURL == "" {
		return images, false
	}
	for _, img := range images {
		if img == imageURL {
			return images, false
		}
	}

	updated := make([]string, 0, domain.MAX_SAMPLE_IMAGES)
	updated = append(updated, imageURL)
	for _, img := range images {
		if len(updated) == domain.MAX_SAMPLE_IMAGES {
			break
		}
		updated = append(updated, img)
	}

	return updated, true
}
