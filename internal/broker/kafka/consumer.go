package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusReportFunc applies one decoded status report. Returning an error
// leaves the report uncommitted.
type StatusReportFunc func(ctx context.Context, report messages.ShipmentStatusReported) error

// Consumer reads carrier and depot status reports from a single topic.
type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{r: kafka.NewReader(cfg)}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// ConsumeStatusReports decodes every message and hands it to apply, committing
// only after apply succeeded. Reports that can never be applied (bad JSON, no
// tracking number) are committed and skipped so they do not block the
// partition. An apply error stops consumption; the report is redelivered.
func (c *Consumer) ConsumeStatusReports(ctx context.Context, apply StatusReportFunc) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}

		report, ok := decodeStatusReport(msg)
		if ok {
			if err := apply(ctx, report); err != nil {
				return errors.Wrapf(err, "apply status report %s", report.TrackingNumber)
			}
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

// decodeStatusReport falls back to the message key when the payload omits the
// tracking number; reporters key by tracking number to keep per-shipment order.
func decodeStatusReport(msg kafka.Message) (messages.ShipmentStatusReported, bool) {
	var report messages.ShipmentStatusReported
	if err := json.Unmarshal(msg.Value, &report); err != nil {
		slog.Warn("skip malformed status report",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		return report, false
	}

	report.TrackingNumber = strings.TrimSpace(report.TrackingNumber)
	if report.TrackingNumber == "" {
		report.TrackingNumber = strings.TrimSpace(string(msg.Key))
	}
	if report.TrackingNumber == "" {
		slog.Warn("skip status report without tracking number",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		return report, false
	}
	return report, true
}
