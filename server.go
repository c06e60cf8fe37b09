package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/middlewares"
	"bitbucket.org/mmdatafocus/rma_backend/models"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"bitbucket.org/mmdatafocus/rma_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// PubSubMessage is the push delivery envelope Cloud Pub/Sub wraps around
// the actual payload.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// rmaPubSubHandler receives completion events pushed by Pub/Sub. Malformed
// deliveries and per-order workflow failures are both acked: retrying them
// can never succeed, and the automation already logs what went wrong.
func rmaPubSubHandler(automation *workflow.RMAAutomation) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "rmaPubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "rmaPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		event, err := workflow.DecodeEvent(msg.Message.Data)
		if err != nil {
			config.LogError(logger, "server.go", "rmaPubSubHandler", "DecodeEvent", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		if !automation.WantsEvent(event.Kind) {
			c.Status(http.StatusNoContent)
			return
		}

		// Correlation ID propagation: prefer the payload; fall back to the
		// Pub/Sub message ID.
		if event.CorrelationId == "" {
			event.CorrelationId = msg.Message.ID
		}

		// Best-effort: serialize processing per order. When Redis is down we
		// proceed anyway; the workflow tolerates replays.
		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil && event.OrderId > 0 {
			lock, err = redisLock.Obtain(c.Request.Context(),
				fmt.Sprintf("OrderLock:%d", event.OrderId), 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"field":      "rmaPubSubHandler",
					"order_id":   event.OrderId,
					"message_id": msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without it")
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":      "rmaPubSubHandler",
					"order_id":   event.OrderId,
					"message_id": msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := utils.SetUserNameInContext(c.Request.Context(), "System")
		automation.ProcessEvent(ctx, event)

		c.Status(http.StatusNoContent)
	}
}

// runPullSubscriber consumes completion events from a pull subscription.
// Optional: only started when PUBSUB_PULL_ENABLED=true and a subscription
// is configured. Every message is acked, processed or not.
func runPullSubscriber(ctx context.Context, automation *workflow.RMAAutomation) {
	logger := config.GetLogger()

	subscriptionID := strings.TrimSpace(os.Getenv("PUBSUB_SUBSCRIPTION"))
	if subscriptionID == "" {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).
			Warn("PUBSUB_PULL_ENABLED set but PUBSUB_SUBSCRIPTION is empty")
		return
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		config.LogError(logger, "server.go", "runPullSubscriber", "GetClient", nil, err)
		return
	}

	sub := client.Subscription(subscriptionID)
	err = sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		defer m.Ack()

		event, err := workflow.DecodeEvent(m.Data)
		if err != nil {
			config.LogError(logger, "server.go", "runPullSubscriber", "DecodeEvent", m.Data, err)
			return
		}
		if event.CorrelationId == "" {
			event.CorrelationId = m.ID
		}
		automation.ProcessEvent(utils.SetUserNameInContext(ctx, "System"), event)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		config.LogError(logger, "server.go", "runPullSubscriber", "Receive", subscriptionID, err)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	automation := workflow.NewRMAAutomation(config.LoadAutomationSettings())

	r.POST("/pubsub", rmaPubSubHandler(automation))

	api := r.Group("/api/rma")
	api.Use(middlewares.RequireAuth())
	registerPartRoutes(api)
	registerStockLocationRoutes(api)
	registerCustomerRoutes(api)
	registerStockItemRoutes(api)
	registerReturnOrderRoutes(api, automation)
	registerAllocationRoutes(api)

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	subscriberCtx, cancelSubscriber := context.WithCancel(context.Background())
	defer cancelSubscriber()
	if strings.EqualFold(strings.TrimSpace(os.Getenv("PUBSUB_PULL_ENABLED")), "true") {
		go runPullSubscriber(subscriberCtx, automation)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the subscriber first so it doesn't pick up new work while draining.
	cancelSubscriber()

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
