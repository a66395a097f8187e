package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfloor/market-indexer/internal/api/shared/executor"
	apierrors "github.com/openfloor/market-indexer/internal/api/shared/errors"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
type Handler interface {
	// GetBidEvents retrieves one page of the bid event feed
	// GET /api/v1/events/bids?contract=<address>&startTimestamp=<epoch>&endTimestamp=<epoch>&sortDirection=<asc|desc>&continuation=<token>&limit=<1..1000>
	GetBidEvents(c *gin.Context)

	// RefreshCollectionFloor forces a recomputation of a collection's floor
	// cache
	// POST /api/v1/admin/collections/:id/refresh-floor
	RefreshCollectionFloor(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{
		executor: exec,
	}
}

// GetBidEvents retrieves bid events with filtering and cursor pagination
func (h *handler) GetBidEvents(c *gin.Context) {
	queryParams, err := ParseGetBidEventsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	params := executor.BidEventsParams{
		StartTimestamp: queryParams.StartTimestamp,
		EndTimestamp:   queryParams.EndTimestamp,
		SortDesc:       queryParams.SortDirection.Desc(),
		Limit:          queryParams.Limit,
	}
	if queryParams.Contract != "" {
		params.Contract = &queryParams.Contract
	}
	if queryParams.Continuation != "" {
		params.Continuation = &queryParams.Continuation
	}

	response, err := h.executor.GetBidEvents(c.Request.Context(), params)
	if err != nil {
		var apiErr *apierrors.APIError
		if errors.As(err, &apiErr) && apiErr.Code == apierrors.ErrCodeBadRequest {
			respondBadRequest(c, apiErr.Message, apiErr.Details)
			return
		}
		respondInternalError(c, err, "Failed to get bid events")
		return
	}

	c.JSON(http.StatusOK, response)
}

// RefreshCollectionFloor recomputes a collection's floor cache on demand
func (h *handler) RefreshCollectionFloor(c *gin.Context) {
	collectionID := c.Param("id")
	if collectionID == "" {
		respondBadRequest(c, "Collection id is required")
		return
	}

	response, err := h.executor.RefreshCollectionFloor(c.Request.Context(), collectionID)
	if err != nil {
		var apiErr *apierrors.APIError
		if errors.As(err, &apiErr) && apiErr.Code == apierrors.ErrCodeNotFound {
			respondNotFound(c, apiErr.Message)
			return
		}
		respondInternalError(c, err, "Failed to refresh collection floor")
		return
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
