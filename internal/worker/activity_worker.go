package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/model"
	"fwk-assistant/internal/platform/rabbitmq"
)

// ActivityWorker drains the activity queue into the structured log.
type ActivityWorker struct {
	conn      *amqp.Connection
	queueName string
	handle    func(model.ActivityEvent)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewActivityWorker(conn *amqp.Connection, queueName string) *ActivityWorker {
	return &ActivityWorker{
		conn:      conn,
		queueName: queueName,
		handle:    logActivity,
	}
}

func (w *ActivityWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.process(d.Body); err != nil {
					logging.Logger().Warn("worker drop activity", "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *ActivityWorker) process(body []byte) error {
	var event model.ActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode activity failed: %w", err)
	}
	if event.Type == "" {
		return fmt.Errorf("activity without type")
	}
	w.handle(event)
	return nil
}

func (w *ActivityWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func logActivity(event model.ActivityEvent) {
	attrs := []any{
		slog.String("type", event.Type),
		slog.String("client_id", event.ClientID),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.Name != "" {
		attrs = append(attrs, slog.String("name", event.Name))
	}
	if event.Model != "" {
		attrs = append(attrs, slog.String("model", event.Model), slog.Bool("grounding", event.Grounding), slog.Int("sources", event.Sources))
	}
	logging.Logger().Info("activity", attrs...)
}
