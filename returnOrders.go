package main

import (
	"context"
	"net/http"
	"os"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/models"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"bitbucket.org/mmdatafocus/rma_backend/workflow"
	"github.com/gin-gonic/gin"
)

func registerReturnOrderRoutes(api *gin.RouterGroup, automation *workflow.RMAAutomation) {
	api.POST("/return-orders", func(c *gin.Context) {
		var input models.NewReturnOrder
		if !bindJSON(c, &input) {
			return
		}
		order, err := models.CreateReturnOrder(c.Request.Context(), &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	})
	api.GET("/return-orders", func(c *gin.Context) {
		orders, err := models.ListReturnOrders(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	})
	api.GET("/return-orders/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := models.GetReturnOrder(c.Request.Context(), id, "Customer", "Lines", "Lines.Item")
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
	api.PUT("/return-orders/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewReturnOrder
		if !bindJSON(c, &input) {
			return
		}
		order, err := models.UpdateReturnOrder(c.Request.Context(), id, &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
	api.DELETE("/return-orders/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := models.DeleteReturnOrder(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	api.POST("/return-orders/:id/complete", completeReturnOrderHandler(automation))

	api.POST("/return-order-lines", func(c *gin.Context) {
		var input models.NewReturnOrderLine
		if !bindJSON(c, &input) {
			return
		}
		line, err := models.CreateReturnOrderLine(c.Request.Context(), &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, line)
	})
	api.GET("/return-orders/:id/lines", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		lines, err := models.ListReturnOrderLines(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, lines)
	})
	api.PUT("/return-order-lines/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewReturnOrderLine
		if !bindJSON(c, &input) {
			return
		}
		line, err := models.UpdateReturnOrderLine(c.Request.Context(), id, &input)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, line)
	})
	api.DELETE("/return-order-lines/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		line, err := models.DeleteReturnOrderLine(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, line)
	})
}

// completeReturnOrderHandler marks the order complete and emits the
// completion event. With Pub/Sub configured the event goes over the topic;
// otherwise the automation runs in-process. Either way the HTTP response
// does not wait for (or report) the workflow outcome.
func completeReturnOrderHandler(automation *workflow.RMAAutomation) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}

		order, err := models.CompleteReturnOrder(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}

		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		event := workflow.Event{
			Kind:          workflow.EventReturnOrderCompleted,
			OrderId:       order.ID,
			CorrelationId: cid,
		}

		if os.Getenv("PUBSUB_TOPIC") != "" {
			msgId, err := config.PublishOrderEvent(c.Request.Context(), config.PubSubMessage{
				Event:         string(event.Kind),
				OrderId:       event.OrderId,
				CorrelationId: event.CorrelationId,
			})
			if err != nil {
				config.LogError(config.GetLogger(), "returnOrders.go", "completeReturnOrderHandler",
					"PublishOrderEvent", order.ID, err)
				// fall back so completion still triggers the automation
				go automation.ProcessEvent(context.Background(), event)
			} else {
				c.JSON(http.StatusOK, gin.H{"order": order, "message_id": msgId})
				return
			}
		} else {
			go automation.ProcessEvent(context.Background(), event)
		}

		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}
