// Command dompet-notify consumes bill reminders from the broker and logs
// them. It is the reference consumer for the reminder queue.
package main

import (
	"context"
	"os"
	"time"

	"dompet/internal/amqp"
	"dompet/internal/cli"
	"dompet/internal/config"
	dlog "dompet/internal/log"
)

func main() {
	_ = config.LoadEnvFile()
	logger := cli.SetupLogger(dlog.ComponentReminder)

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}

	client, err := amqp.NewClient(amqp.Config{
		URL:           cfg.AMQPURL,
		Exchange:      cfg.AMQPExchange,
		ReminderQueue: cfg.AMQPQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", dlog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 5*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close failed", dlog.FieldError, err)
		}
	})

	logger.Info("Waiting for bill reminders", "queue", cfg.AMQPQueue)
	err = client.ConsumeBillReminders(ctx, func(ctx context.Context, msg *amqp.BillReminder) error {
		logger.InfoContext(ctx, "Bill reminder",
			dlog.FieldBillID, msg.BillID,
			dlog.FieldUserID, msg.UserID,
			"name", msg.Name,
			"amount", msg.Display,
			"status", msg.Status,
			"next_due", msg.NextDue.String(),
			"days_until", msg.DaysUntil)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("Reminder consumption failed", dlog.FieldError, err)
		_ = client.Close()
		os.Exit(1)
	}
	<-done
}
