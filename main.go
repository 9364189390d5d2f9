package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"fulfillment-service/internal/config"
	"fulfillment-service/internal/consumer"
	"fulfillment-service/internal/handler"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/scheduler"
	"fulfillment-service/internal/sender"
	"fulfillment-service/internal/service"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.Info("Starting fulfillment service...")

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Use a separate migrations table to avoid conflicts with other services
	// sharing the database.
	migrationDBURL := cfg.DatabaseURL
	if strings.Contains(migrationDBURL, "?") {
		migrationDBURL += "&x-migrations-table=fulfillment_schema_migrations"
	} else {
		migrationDBURL += "?x-migrations-table=fulfillment_schema_migrations"
	}

	m, err := migrate.New("file://db/migrations", migrationDBURL)
	if err != nil {
		log.WithError(err).Fatal("Could not create migration instance")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.WithError(err).Fatal("Could not apply migration")
	}
	log.Info("Database migration successfully applied")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()

	purchaseRepo := repository.NewPostgresPurchaseRepository(db)
	productRepo := repository.NewPostgresProductRepository(db)
	emailLogRepo := repository.NewPostgresEmailLogRepository(db)
	emailEventRepo := repository.NewPostgresEmailEventRepository(db)
	analyticsRepo := repository.NewPostgresAnalyticsRepository(db)

	emailSender := sender.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	fulfillment := service.NewFulfillmentService(purchaseRepo, productRepo, emailLogRepo, emailSender)
	rollup := service.NewRollupService(emailEventRepo, analyticsRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Email delivery events stream in from Kafka.
	kafkaConsumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Trim(cfg.KafkaBootstrapServers, "\""),
		"group.id":          cfg.KafkaGroupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create Kafka consumer")
	}

	eventConsumer, err := consumer.NewKafkaConsumer(kafkaConsumer, cfg.KafkaEmailEventsTopic, handler.NewEmailEventHandler(emailEventRepo))
	if err != nil {
		log.WithError(err).Fatal("Failed to subscribe to email events topic")
	}
	defer eventConsumer.Close()

	go func() {
		if err := eventConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Kafka consumer stopped")
			stop()
		}
	}()

	// Daily rollup trigger.
	sched, err := scheduler.New(cfg.RollupCronSpec, rollup)
	if err != nil {
		log.WithError(err).Fatal("Invalid rollup cron spec")
	}
	sched.Start()
	defer sched.Stop()

	// Payment webhook HTTP surface.
	webhooks := handler.NewWebhookHandler(fulfillment, cfg.WebhookSecret)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           webhooks.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
}
