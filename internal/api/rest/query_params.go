package rest

import (
	"github.com/gin-gonic/gin"
)

const (
	MAX_PAGE_SIZE     = 1000
	DEFAULT_PAGE_SIZE = 50

	// DEFAULT_END_TIMESTAMP is the open-ended upper bound of the time window
	DEFAULT_END_TIMESTAMP = int64(9999999999)
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

func (o Order) Desc() bool {
	return o == OrderDesc
}

func (o Order) Asc() bool {
	return o == OrderAsc
}

// GetBidEventsQueryParams holds query parameters for GET /events/bids
type GetBidEventsQueryParams struct {
	// Filters
	Contract       string `form:"contract"`
	StartTimestamp int64  `form:"startTimestamp,default=0"`
	EndTimestamp   int64  `form:"endTimestamp,default=9999999999"`

	// Pagination
	SortDirection Order  `form:"sortDirection,default=desc"`
	Continuation  string `form:"continuation"`
	Limit         int    `form:"limit,default=50"`
}

// ParseGetBidEventsQuery parses query parameters for GET /events/bids
func ParseGetBidEventsQuery(c *gin.Context) (*GetBidEventsQueryParams, error) {
	var params GetBidEventsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Cap limits
	if params.Limit < 1 {
		params.Limit = DEFAULT_PAGE_SIZE
	}
	if params.Limit > MAX_PAGE_SIZE {
		params.Limit = MAX_PAGE_SIZE
	}

	// Validate order
	if !params.SortDirection.Asc() && !params.SortDirection.Desc() {
		params.SortDirection = OrderDesc
	}

	if params.StartTimestamp < 0 {
		params.StartTimestamp = 0
	}
	if params.EndTimestamp <= 0 {
		params.EndTimestamp = DEFAULT_END_TIMESTAMP
	}

	return &params, nil
}
