package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/rma_backend/models"
	"github.com/gin-gonic/gin"
)

func registerPartRoutes(api *gin.RouterGroup) {
	api.POST("/parts", func(c *gin.Context) {
		var input models.NewPart
		if !bindJSON(c, &input) {
			return
		}
		part, err := models.CreatePart(c.Request.Context(), &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, part)
	})
	api.GET("/parts", func(c *gin.Context) {
		parts, err := models.ListParts(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, parts)
	})
	api.GET("/parts/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		part, err := models.GetPart(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	})
	api.PUT("/parts/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewPart
		if !bindJSON(c, &input) {
			return
		}
		part, err := models.UpdatePart(c.Request.Context(), id, &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	})
	api.DELETE("/parts/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		part, err := models.DeletePart(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	})
}

func registerStockLocationRoutes(api *gin.RouterGroup) {
	api.POST("/locations", func(c *gin.Context) {
		var input models.NewStockLocation
		if !bindJSON(c, &input) {
			return
		}
		location, err := models.CreateStockLocation(c.Request.Context(), &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, location)
	})
	api.GET("/locations", func(c *gin.Context) {
		locations, err := models.ListStockLocations(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, locations)
	})
	api.PUT("/locations/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewStockLocation
		if !bindJSON(c, &input) {
			return
		}
		location, err := models.UpdateStockLocation(c.Request.Context(), id, &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, location)
	})
	api.DELETE("/locations/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		location, err := models.DeleteStockLocation(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, location)
	})
}

func registerCustomerRoutes(api *gin.RouterGroup) {
	api.POST("/customers", func(c *gin.Context) {
		var input models.NewCustomer
		if !bindJSON(c, &input) {
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	})
	api.GET("/customers", func(c *gin.Context) {
		customers, err := models.ListCustomers(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, customers)
	})
	api.PUT("/customers/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewCustomer
		if !bindJSON(c, &input) {
			return
		}
		customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	})
	api.DELETE("/customers/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		customer, err := models.DeleteCustomer(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	})
}
