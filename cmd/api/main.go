package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ptrckSTL/BoomOrganized/internal/broadcast"
	"github.com/ptrckSTL/BoomOrganized/internal/config"
	"github.com/ptrckSTL/BoomOrganized/internal/handler"
	"github.com/ptrckSTL/BoomOrganized/internal/job"
	"github.com/ptrckSTL/BoomOrganized/internal/middleware"
	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/notify"
	"github.com/ptrckSTL/BoomOrganized/internal/queue"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
	"github.com/ptrckSTL/BoomOrganized/internal/service"
	"github.com/ptrckSTL/BoomOrganized/internal/session"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database (schema is applied on open)
	db, err := repository.Open(cfg.DriverName(), cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("✅ Connected to database (%s)", cfg.DriverName())

	recipients := repository.NewRecipientRepository(db)
	prefs := repository.NewPrefsRepository(db)

	// Connect to RabbitMQ
	conn, err := queue.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer conn.Close()
	log.Println("✅ Connected to RabbitMQ")

	publisher, err := queue.NewPublisher(conn, cfg.RabbitMQ.DispatchQueue)
	if err != nil {
		log.Fatalf("Failed to create dispatch publisher: %v", err)
	}
	transport := queue.NewTransport(publisher)

	// Wire the batch core
	broadcaster := broadcast.New(recipients)
	templates := service.NewTemplateService()
	attachments := service.NewAttachmentService()
	runner := job.NewRunner(
		recipients,
		templates,
		attachments,
		transport,
		broadcaster,
		notify.LogNotifier{},
		cfg.Send.PacingInterval,
		cfg.Send.SubscriptionID,
	)

	sess := session.NewSession(recipients, prefs, templates, runner, broadcaster)
	if err := sess.ColdStart(context.Background()); err != nil {
		log.Fatalf("Failed to restore session: %v", err)
	}
	log.Printf("✅ Session restored: %s", sess.State().Name())

	// Consume delivery receipts from the gateway worker
	receiptConsumer, err := queue.NewConsumer(conn, cfg.RabbitMQ.ReceiptQueue, receiptHandler(recipients))
	if err != nil {
		log.Fatalf("Failed to create receipt consumer: %v", err)
	}
	if err := receiptConsumer.Start(); err != nil {
		log.Fatalf("Failed to start receipt consumer: %v", err)
	}
	log.Printf("✅ Receipt consumer started on queue: %s", cfg.RabbitMQ.ReceiptQueue)

	// Optional sweep for rows stuck in "sending" after a crash
	sweepStop := make(chan struct{})
	if cfg.Send.StaleSendingAfter > 0 {
		go sweepStaleSending(recipients, cfg.Send.StaleSendingAfter, sweepStop)
		log.Printf("✅ Stale-sending sweep enabled (threshold %s)", cfg.Send.StaleSendingAfter)
	}

	// Create router
	router := mux.NewRouter()
	router.Use(middleware.Recovery)

	sessionHandler := handler.NewSessionHandler(sess, broadcaster)
	sessionHandler.RegisterRoutes(router)

	healthHandler := handler.NewHealthHandler(db, conn)
	router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)

	// Start server
	port := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:    port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 API Server starting on port %s", port)
		log.Printf("📍 Health check: http://localhost%s/health", port)
		log.Printf("🌍 Environment: %s", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down gracefully...")

	// A running batch pauses; pending rows survive for the next cold start
	if runner.Active() {
		if err := runner.Pause(); err != nil {
			log.Printf("Error pausing batch: %v", err)
		}
		runner.Wait()
	}
	close(sweepStop)

	if err := receiptConsumer.Stop(); err != nil {
		log.Printf("Error stopping receipt consumer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	conn.Close()
	db.Close()

	log.Println("✅ API Server stopped")
}

// receiptHandler marks recipients sent as their delivery receipts
// arrive. A failed delivery leaves the row in "sending" so the stale
// sweep or a resume can pick it back up.
func receiptHandler(store repository.RecipientStore) queue.MessageHandler {
	return func(body []byte) error {
		var receipt queue.DeliveryReceipt
		if err := json.Unmarshal(body, &receipt); err != nil {
			log.Printf("❌ Failed to decode delivery receipt: %v", err)
			// Nack-requeue would loop forever on a bad payload
			return nil
		}

		if !receipt.Delivered {
			log.Printf("⚠️  Delivery failed for %s: %s", receipt.Tag, receipt.Error)
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.UpdateStatus(ctx, receipt.Tag, models.RecipientStatusSent); err != nil {
			if errors.Is(err, repository.ErrRecipientNotFound) {
				// Receipt for a row cleared by fresh start or reset
				// while the dispatch was in flight. Requeueing would
				// block the queue forever, so drop it.
				log.Printf("⚠️  Dropping receipt for unknown recipient %s", receipt.Tag)
				return nil
			}
			log.Printf("❌ Failed to mark %s sent: %v", receipt.Tag, err)
			return err
		}
		return nil
	}
}

// sweepStaleSending periodically reverts rows stuck in "sending" whose
// receipts never arrived.
func sweepStaleSending(store repository.RecipientStore, olderThan time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(olderThan)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			reclaimed, err := store.ReclaimStale(ctx, olderThan)
			cancel()
			if err != nil {
				log.Printf("❌ Stale-sending sweep failed: %v", err)
				continue
			}
			if reclaimed > 0 {
				log.Printf("⚠️  Reclaimed %d stale sending rows", reclaimed)
			}
		}
	}
}
