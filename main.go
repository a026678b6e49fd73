package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"envelope-service/internal/codec"
	"envelope-service/internal/config"
	"envelope-service/internal/db"
	"envelope-service/internal/handlers"
	"envelope-service/internal/logging"
	"envelope-service/internal/messages"
	"envelope-service/internal/middleware"
	"envelope-service/internal/models"
	"envelope-service/internal/observability"
	"envelope-service/internal/rabbitmq"
	"envelope-service/internal/repositories"
	"envelope-service/internal/telemetry"
	"envelope-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	bodyCodec, err := codec.ByName(cfg.Codec)
	if err != nil {
		log.Fatalf("invalid codec: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.Exchange, bodyCodec, logger)
	defer publisher.Close()
	logger.Info("publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))

	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)
	hub := ws.NewHub(logger)
	outboxRepo := repositories.NewOutboxRepo(database)

	if cfg.ConsumeQueue != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.Exchange, cfg.ConsumeQueue, cfg.ConsumeBinding, func(ctx context.Context, env *messages.Envelope) error {
			messageID, _ := env.Header(messages.HeaderMessageID)
			routingKey, _ := env.Header(messages.HeaderRoutingKey)
			hub.BroadcastEnvelope(models.EnvelopeEvent{
				Type:       "consumed",
				MessageID:  messageID,
				RoutingKey: routingKey,
				Label:      env.Label(),
			})
			return nil
		}, logger)
		if err != nil {
			logger.Error("rabbitmq consumer disabled", "queue", cfg.ConsumeQueue, "error", err)
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx); err != nil {
					logger.Error("rabbitmq consumer stopped", "queue", cfg.ConsumeQueue, "error", err)
				}
			}()
		}
	}

	envelopeHandler := handlers.NewEnvelopeHandler(outboxRepo, publisher, bodyCodec, hub, audit, logger)
	monitorWS := ws.NewMonitorWebSocketHandler(hub)

	if cfg.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/envelopes", envelopeHandler.PublishEnvelope)
	router.POST("/envelopes/label", envelopeHandler.PreviewLabel)
	router.GET("/envelopes", envelopeHandler.ListEnvelopes)
	router.GET("/envelopes/:message_id", envelopeHandler.GetEnvelope)

	router.GET("/ws/envelopes", monitorWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
