package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/rma_backend/models"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"github.com/gin-gonic/gin"
)

// allocationFilterFromQuery parses the list query params. Malformed ids
// are ignored rather than rejected. A consumed value outside the loose
// boolean spellings filters as false.
func allocationFilterFromQuery(c *gin.Context) *models.AllocationFilter {

	filter := &models.AllocationFilter{}

	if v := c.Query("return_order"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			filter.ReturnOrderId = &id
		}
	}
	if v := c.Query("return_order_line"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			filter.ReturnOrderLineId = &id
		}
	}
	if v := c.Query("consumed"); v != "" {
		b, ok := utils.ParseBoolString(v)
		if !ok {
			b = false
		}
		filter.Consumed = &b
	}
	return filter
}

func registerAllocationRoutes(api *gin.RouterGroup) {
	api.POST("/allocations", func(c *gin.Context) {
		var input models.NewRepairStockAllocation
		if !bindJSON(c, &input) {
			return
		}
		allocation, err := models.CreateAllocation(c.Request.Context(), &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, allocation)
	})
	api.GET("/allocations", func(c *gin.Context) {
		allocations, err := models.ListAllocations(c.Request.Context(), allocationFilterFromQuery(c))
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.NewAllocationViews(allocations))
	})
	api.GET("/allocations/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		allocation, err := models.GetAllocation(c.Request.Context(), id,
			"ReturnOrderLine", "ReturnOrderLine.Order", "ReturnOrderLine.Item", "ReturnOrderLine.Item.Part",
			"StockItem", "StockItem.Part", "StockItem.Location")
		if err != nil {
			writeModelError(c, err)
			return
		}
		view := models.NewAllocationView(allocation)
		c.JSON(http.StatusOK, view)
	})
	api.PUT("/allocations/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewRepairStockAllocation
		if !bindJSON(c, &input) {
			return
		}
		allocation, err := models.UpdateAllocation(c.Request.Context(), id, &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, allocation)
	})
	api.DELETE("/allocations/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		allocation, err := models.DeleteAllocation(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, allocation)
	})
}
