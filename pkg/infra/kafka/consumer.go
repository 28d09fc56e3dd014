// Package kafka consumes writer-side entity-change events and turns them
// into single rebuilds or cascade rebuilds.
package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_in "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/in"
)

// Consumer reads ChangeEvent messages from one topic and drives the write
// path. Malformed messages are logged and committed; the stream must not
// wedge on a bad producer.
type Consumer struct {
	reader    *kafka.Reader
	rebuilder crossref_in.Rebuilder
	cascader  crossref_in.CascadeRebuilder
	log       *zap.Logger
}

// NewConsumer builds a group consumer over the given brokers and topic.
func NewConsumer(brokers []string, topic, groupID string, rebuilder crossref_in.Rebuilder, cascader crossref_in.CascadeRebuilder, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		rebuilder: rebuilder,
		cascader:  cascader,
		log:       log,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handle(ctx, msg.Value)
	}
}

func (c *Consumer) handle(ctx context.Context, payload []byte) {
	var ev crossref_entities.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.log.Warn("dropping undecodable change event", zap.Error(err))
		return
	}
	if !gameday.IsKnownResourceType(ev.ResourceType) || ev.ExternalKey == "" {
		c.log.Warn("dropping change event with bad identity",
			zap.String("resourceType", string(ev.ResourceType)),
			zap.String("externalKey", ev.ExternalKey))
		return
	}

	if ev.Cascade && ev.ResourceType == gameday.ResourceCompetition {
		report, err := c.cascader.RebuildTransitively(ctx, ev.ResourceType, ev.ExternalKey)
		if err != nil {
			c.log.Warn("cascade rebuild from change event failed",
				zap.String("externalKey", ev.ExternalKey), zap.Error(err))
			return
		}
		c.log.Info("cascade rebuild from change event",
			zap.String("externalKey", ev.ExternalKey),
			zap.Int("attempted", len(report.Attempted)),
			zap.Int("failed", len(report.Failed)))
		return
	}

	if _, err := c.rebuilder.Rebuild(ctx, ev.ResourceType, ev.ExternalKey); err != nil &&
		!errors.Is(err, gameday.ErrSkipRebuild) {
		c.log.Warn("rebuild from change event failed",
			zap.String("resourceType", string(ev.ResourceType)),
			zap.String("externalKey", ev.ExternalKey),
			zap.Error(err))
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
