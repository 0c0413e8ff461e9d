package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/mqtt"
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventTimedOut  EventType = "timedout"
	EventByzantine EventType = "byzantine"

	roundTopicTemplate = "%s/fl/rounds/%s"
)

type Event struct {
	Type          EventType `json:"type"`
	ModelID       string    `json:"model_id"`
	RoundID       string    `json:"round_id"`
	RoundNumber   uint64    `json:"round_number"`
	Accuracy      float64   `json:"accuracy,omitempty"`
	Loss          float64   `json:"loss,omitempty"`
	WeightsCID    string    `json:"weights_cid,omitempty"`
	Participants  int       `json:"participants,omitempty"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Topic is the MQTT topic the event is published on.
func Topic(base string, t EventType) string {
	return fmt.Sprintf(roundTopicTemplate, base, t)
}

// EventSink receives round lifecycle events. Notify must not block.
type EventSink interface {
	Notify(ev Event)
}

func roundEvent(t EventType, r fl.Round, at time.Time) Event {
	ev := Event{
		Type:        t,
		ModelID:     r.ModelID,
		RoundID:     r.ID,
		RoundNumber: r.Number,
		Timestamp:   at.UTC(),
	}
	if r.Result != nil {
		ev.Accuracy = r.Result.Accuracy
		ev.Loss = r.Result.Loss
		ev.WeightsCID = r.Result.WeightsCID
		ev.Participants = r.Result.ParticipantCount
	}

	return ev
}

// Notifier publishes events over MQTT and anchors them on the ledger from a
// single background worker. Either side may be absent.
type Notifier struct {
	queue     chan Event
	pubsub    mqtt.PubSub
	ledger    ledger.Ledger
	baseTopic string
	logger    *slog.Logger
	metrics   *Metrics
}

var _ EventSink = (*Notifier)(nil)

func NewNotifier(size int, ps mqtt.PubSub, l ledger.Ledger, baseTopic string, m *Metrics, logger *slog.Logger) *Notifier {
	if size <= 0 {
		size = 1
	}
	if l == nil {
		l = ledger.Noop{}
	}

	return &Notifier{
		queue:     make(chan Event, size),
		pubsub:    ps,
		ledger:    l,
		baseTopic: baseTopic,
		logger:    logger,
		metrics:   m,
	}
}

// Notify enqueues the event, dropping it when the queue is full.
func (n *Notifier) Notify(ev Event) {
	select {
	case n.queue <- ev:
		if n.metrics != nil {
			n.metrics.eventQueueLength.Set(float64(len(n.queue)))
		}
	default:
		if n.metrics != nil {
			n.metrics.eventsDropped.Inc()
		}
		n.logger.Warn("event queue full, dropping round event",
			slog.String("type", string(ev.Type)),
			slog.String("round_id", ev.RoundID),
		)
	}
}

// Run delivers queued events until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-n.queue:
			if n.metrics != nil {
				n.metrics.eventQueueLength.Set(float64(len(n.queue)))
			}
			n.deliver(ctx, ev)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) {
	if n.pubsub != nil {
		topic := Topic(n.baseTopic, ev.Type)
		if err := n.pubsub.Publish(ctx, topic, ev); err != nil {
			n.logger.WarnContext(ctx, "failed to publish round event",
				slog.String("topic", topic),
				slog.String("round_id", ev.RoundID),
				slog.Any("error", err),
			)
		}
	}

	tx := ledger.Tx{
		Event:        string(ev.Type),
		ModelID:      ev.ModelID,
		RoundID:      ev.RoundID,
		RoundNumber:  ev.RoundNumber,
		Accuracy:     ev.Accuracy,
		Loss:         ev.Loss,
		WeightsCID:   ev.WeightsCID,
		Participants: ev.Participants,
	}
	receipt, err := n.ledger.Submit(ctx, tx)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to anchor round event",
			slog.String("type", string(ev.Type)),
			slog.String("round_id", ev.RoundID),
			slog.Any("error", err),
		)

		return
	}
	if receipt.Status == ledger.StatusSubmitted {
		n.logger.InfoContext(ctx, "anchored round event",
			slog.String("type", string(ev.Type)),
			slog.String("round_id", ev.RoundID),
			slog.String("tx", receipt.Hash),
		)
	}
}
