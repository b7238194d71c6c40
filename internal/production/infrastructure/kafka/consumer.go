package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/docelar/backoffice/internal/production/application"
	"github.com/docelar/backoffice/internal/production/domain"
	"github.com/docelar/backoffice/pkg/idempotency"
	"github.com/docelar/backoffice/pkg/tracing"
)

// Consumer runs the post-commit side of production mutations. Every
// event triggers a priority recalculation; task-level events also
// propagate the task status back onto the orders that demanded it.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	svc    *application.Service
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("production-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		eventType := headerValue(msg.Headers, "event_type")

		msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType)
		c.handle(msgCtx, eventType, msg.Value)
		span.End()

		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, eventType string, payload []byte) {
	switch eventType {
	case domain.EventTasksSynced, domain.EventOrderRemoved:
		if err := c.svc.RecalculateAllPriorities(ctx); err != nil {
			c.log.Error("priority recalculation failed", "event", eventType, "err", err)
			return
		}
		c.log.Info("priorities recalculated", "event", eventType)

	case domain.EventProgressUpdated, domain.EventTaskStatusChanged:
		var ev domain.ProgressUpdated
		if err := json.Unmarshal(payload, &ev); err != nil {
			c.log.Error("unmarshal failed", "event", eventType, "err", err)
			return
		}
		if err := c.svc.PropagateTaskStatus(ctx, ev.TaskID); err != nil {
			c.log.Error("status propagation failed", "task_id", ev.TaskID, "err", err)
		}
		if err := c.svc.RecalculateAllPriorities(ctx); err != nil {
			c.log.Error("priority recalculation failed", "event", eventType, "err", err)
			return
		}
		c.log.Info("task event processed", "event", eventType, "task_id", ev.TaskID)

	default:
		c.log.Warn("unknown event type skipped", "event", eventType)
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
