package messenger

import (
	"context"
	"time"

	"github.com/jmerrifield20/campusbot/internal/history"
	"go.uber.org/zap"
)

// Transport sends rendered requests to the platform.
type Transport interface {
	SendMessage(ctx context.Context, req *SendRequest) (string, error)
	SenderAction(ctx context.Context, recipient string, action SenderAction) error
}

type messageStore interface {
	UpsertMessage(ctx context.Context, m *history.Message) error
}

// MetricsRecorder is an optional callback for recording send outcomes.
type MetricsRecorder func(success bool)

// Outbox renders and sends replies, and records every sent message.
type Outbox struct {
	transport Transport
	store     messageStore
	pageID    string
	tag       string
	onMetrics MetricsRecorder
	logger    *zap.Logger
}

// NewOutbox creates an Outbox.
func NewOutbox(transport Transport, store messageStore, logger *zap.Logger) *Outbox {
	return &Outbox{
		transport: transport,
		store:     store,
		tag:       DefaultBroadcastTag,
		logger:    logger,
	}
}

// SetPageID sets the sender id written to the message history.
func (o *Outbox) SetPageID(id string) { o.pageID = id }

// SetBroadcastTag overrides the message tag used for broadcasts.
func (o *Outbox) SetBroadcastTag(tag string) {
	if tag != "" {
		o.tag = tag
	}
}

// SetMetricsRecorder configures the metrics callback.
func (o *Outbox) SetMetricsRecorder(fn MetricsRecorder) { o.onMetrics = fn }

// Reply sends replies to recipient in order as conversational responses.
// It stops at the first failure.
func (o *Outbox) Reply(ctx context.Context, recipient string, replies ...Reply) error {
	for _, r := range replies {
		if _, err := o.send(ctx, recipient, r, Conversational); err != nil {
			return err
		}
	}
	return nil
}

// Broadcast sends r to recipient as a non-conversational update.
func (o *Outbox) Broadcast(ctx context.Context, recipient string, r Reply) (string, error) {
	return o.send(ctx, recipient, r, BroadcastDelivery(o.tag))
}

// Action shows a sender action; failures are only logged.
func (o *Outbox) Action(ctx context.Context, recipient string, action SenderAction) {
	if err := o.transport.SenderAction(ctx, recipient, action); err != nil {
		o.logger.Debug("sender action failed",
			zap.String("recipient", recipient),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func (o *Outbox) send(ctx context.Context, recipient string, r Reply, d Delivery) (string, error) {
	mid, err := o.transport.SendMessage(ctx, Render(recipient, r, d))
	if o.onMetrics != nil {
		o.onMetrics(err == nil)
	}
	if err != nil {
		o.logger.Warn("send failed", zap.String("recipient", recipient), zap.Error(err))
		return "", err
	}

	if mid != "" {
		m := &history.Message{
			ID:        mid,
			Sender:    o.pageID,
			Recipient: recipient,
			Timestamp: time.Now().UTC(),
			Text:      r.Summary(),
		}
		if err := o.store.UpsertMessage(ctx, m); err != nil {
			o.logger.Warn("persist sent message", zap.String("mid", mid), zap.Error(err))
		}
	}
	return mid, nil
}
