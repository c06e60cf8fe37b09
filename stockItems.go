package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/rma_backend/models"
	"github.com/gin-gonic/gin"
)

func registerStockItemRoutes(api *gin.RouterGroup) {
	api.POST("/stock-items", func(c *gin.Context) {
		var input models.NewStockItem
		if !bindJSON(c, &input) {
			return
		}
		item, err := models.CreateStockItem(c.Request.Context(), &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	})
	api.GET("/stock-items", func(c *gin.Context) {
		items, err := models.ListStockItems(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	})
	api.GET("/stock-items/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		item, err := models.GetStockItem(c.Request.Context(), id, "Part", "Customer", "Location")
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
	api.PUT("/stock-items/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewStockItem
		if !bindJSON(c, &input) {
			return
		}
		item, err := models.UpdateStockItem(c.Request.Context(), id, &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})

	// The tracking ledger is read-only over HTTP; entries are appended by
	// the models layer and the completion workflow.
	api.GET("/stock-items/:id/tracking", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		entries, err := models.ListTrackingEntries(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	})
}
