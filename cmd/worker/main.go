package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/ptrckSTL/BoomOrganized/internal/config"
	"github.com/ptrckSTL/BoomOrganized/internal/queue"
	"github.com/ptrckSTL/BoomOrganized/internal/service"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize simulated carrier gateway
	sender := service.NewSenderService(cfg.Send.GatewaySuccessRate)
	limiter := rate.NewLimiter(rate.Limit(cfg.Send.GatewayRate), 1)
	log.Printf("✅ Gateway initialized (success rate %.0f%%, %d sends/s)",
		cfg.Send.GatewaySuccessRate*100, cfg.Send.GatewayRate)

	// Connect to RabbitMQ
	conn, err := queue.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer conn.Close()
	log.Println("✅ Connected to RabbitMQ")

	receipts, err := queue.NewPublisher(conn, cfg.RabbitMQ.ReceiptQueue)
	if err != nil {
		log.Fatalf("Failed to create receipt publisher: %v", err)
	}

	// Start consumer
	handler := createDispatchHandler(sender, limiter, receipts)
	consumer, err := queue.NewConsumer(conn, cfg.RabbitMQ.DispatchQueue, handler)
	if err != nil {
		log.Fatalf("Failed to create consumer: %v", err)
	}
	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}
	log.Printf("✅ Gateway worker started, consuming from queue: %s", cfg.RabbitMQ.DispatchQueue)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down gracefully...")

	if err := consumer.Stop(); err != nil {
		log.Printf("Error stopping consumer: %v", err)
	}
	conn.Close()

	log.Println("✅ Gateway worker stopped")
}

// createDispatchHandler processes dispatch jobs: it paces sends through
// the rate limiter, pushes each message through the simulated carrier,
// and publishes a delivery receipt keyed by the dispatch tag.
func createDispatchHandler(sender *service.SenderService, limiter *rate.Limiter, receipts *queue.Publisher) queue.MessageHandler {
	return func(body []byte) error {
		var dispatch queue.DispatchJob
		if err := json.Unmarshal(body, &dispatch); err != nil {
			log.Printf("❌ Failed to decode dispatch job: %v", err)
			// A malformed payload never gets better on requeue
			return nil
		}

		log.Printf("📨 Processing dispatch %s (%d recipients)", dispatch.Tag, len(dispatch.Recipients))

		delivered := true
		var lastErr string
		for _, phone := range dispatch.Recipients {
			if err := limiter.Wait(context.Background()); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}

			result := sender.Send(phone, dispatch.Body)
			if result.Success {
				log.Printf("✅ Delivered to %s (latency: %v)", phone, result.Latency)
				continue
			}
			delivered = false
			lastErr = result.Error.Error()
			log.Printf("❌ Send failed for %s: %s", phone, lastErr)
		}

		receipt := queue.DeliveryReceipt{
			Tag:       dispatch.Tag,
			Delivered: delivered,
			Error:     lastErr,
		}
		if err := receipts.Publish(receipt); err != nil {
			return fmt.Errorf("publishing receipt for %s: %w", dispatch.Tag, err)
		}
		return nil
	}
}
