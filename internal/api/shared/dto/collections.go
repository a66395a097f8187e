package dto

// CollectionFloorDTO describes the floor listing of a collection after a
// forced recomputation
type CollectionFloorDTO struct {
	OrderID *string  `json:"orderId"`
	Value   *float64 `json:"value"`
	Maker   *string  `json:"maker"`
	Source  *string  `json:"source,omitempty"`
}

// CollectionFloorRefreshResponse is the response for a forced floor refresh
type CollectionFloorRefreshResponse struct {
	CollectionID string             `json:"collectionId"`
	Floor        CollectionFloorDTO `json:"floor"`
	Updated      bool               `json:"updated"`
}
