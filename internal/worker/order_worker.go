package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/model"
)

const idempotencyTTL = 24 * time.Hour

// CacheInvalidator drops cached catalog entries for products whose stock or
// availability an order event may have changed.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, ids ...uuid.UUID)
}

// OrderWorker consumes order events. Malformed messages go to the DLQ;
// redelivered events are skipped via a Redis marker keyed by event id.
type OrderWorker struct {
	channel     *amqp.Channel
	cache       CacheInvalidator
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

// NewOrderWorker builds a consumer. redisClient may be nil, which disables
// duplicate detection.
func NewOrderWorker(ch *amqp.Channel, cache CacheInvalidator, redisClient *redis.Client, log *slog.Logger) *OrderWorker {
	return &OrderWorker{
		channel:     ch,
		cache:       cache,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *OrderWorker) Start(ctx context.Context) error {
	if err := w.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	msgs, err := w.channel.Consume(orderEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started", "queue", orderEventsQueue)
	return nil
}

func (w *OrderWorker) Stop() { close(w.done) }

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	evt, err := decodeEvent(msg.Body)
	if err != nil {
		w.log.Error("decode order event", "error", err)
		metrics.OrderEvents.WithLabelValues("unknown", "rejected").Inc()
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("event_id", evt.ID, "type", evt.Type, "order_id", evt.OrderID)
	key := "order_event:" + evt.ID

	if w.redisClient != nil {
		exists, err := w.redisClient.Exists(ctx, key).Result()
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if exists > 0 {
			log.Info("order event already handled, skipping")
			metrics.OrderEvents.WithLabelValues(string(evt.Type), "duplicate").Inc()
			_ = msg.Ack(false)
			return
		}
	}

	w.handleEvent(ctx, evt)

	if w.redisClient != nil {
		if err := w.redisClient.Set(ctx, key, "1", idempotencyTTL).Err(); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}

	metrics.OrderEvents.WithLabelValues(string(evt.Type), "handled").Inc()
	_ = msg.Ack(false)
	log.Info("order event handled")
}

func (w *OrderWorker) handleEvent(ctx context.Context, evt model.OrderEvent) {
	switch evt.Type {
	case model.OrderEventCreated, model.OrderEventUpdated, model.OrderEventDeleted:
		// stock or order contents moved; cached product reads may be stale
		w.cache.InvalidateCache(ctx, evt.ProductIDs...)
	case model.OrderEventRepeated:
		// repeats do not touch stock
	}
}

func decodeEvent(body []byte) (model.OrderEvent, error) {
	var evt model.OrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return evt, fmt.Errorf("unmarshal: %w", err)
	}
	if evt.ID == "" || evt.OrderID == uuid.Nil {
		return evt, errors.New("event missing id or order_id")
	}
	switch evt.Type {
	case model.OrderEventCreated, model.OrderEventRepeated, model.OrderEventUpdated, model.OrderEventDeleted:
	default:
		return evt, fmt.Errorf("unknown event type %q", evt.Type)
	}
	return evt, nil
}
