// Command activity_worker consumes the activity queue and writes each event to the log.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/config"
	"github.com/Melih7342/bookmanager/internal/application"
	"github.com/Melih7342/bookmanager/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-activity", cfg.Env)
	if !cfg.RabbitMQEnabled {
		logger.Info("RABBITMQ_ENABLED=false; activity worker disabled")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQActivityQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQActivityQueue, 16)
	if err != nil {
		log.Fatalf("amqp: %v", err)
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			ack(msg, handle(logger, msg.Body))
		}
		close(done)
	}()

	helpers.LogInfo(logger, "activity worker listening", logrus.Fields{"queue": cfg.RabbitMQActivityQueue})
	<-stop
	logger.Info("shutting down")
	consumer.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func ack(msg amqp.Delivery, err error) {
	if err != nil {
		// Malformed events are dropped, not requeued.
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

// handle decodes one event and logs it. It returns an error for payloads that are not events.
func handle(logger *logrus.Logger, body []byte) error {
	var ev application.ActivityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		helpers.LogError(logger, "bad activity message", err, logrus.Fields{"size": len(body)})
		return err
	}
	if ev.Type == "" {
		err := fmt.Errorf("activity event without type")
		helpers.LogError(logger, "bad activity message", err, nil)
		return err
	}
	fields := logrus.Fields{"type": ev.Type, "at": ev.At.Format(time.RFC3339)}
	if ev.Username != "" {
		fields["username"] = ev.Username
	}
	if len(ev.ISBNs) > 0 {
		fields["isbns"] = ev.ISBNs
	}
	helpers.LogInfo(logger, "activity", fields)
	return nil
}
