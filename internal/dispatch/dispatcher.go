// Package dispatch routes classified webhook events through the per-user
// conversation state machine and sends the resulting replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmerrifield20/campusbot/internal/broadcast"
	"github.com/jmerrifield20/campusbot/internal/feedback"
	"github.com/jmerrifield20/campusbot/internal/history"
	"github.com/jmerrifield20/campusbot/internal/linking"
	"github.com/jmerrifield20/campusbot/internal/messenger"
	"github.com/jmerrifield20/campusbot/internal/template"
	"github.com/jmerrifield20/campusbot/internal/users"
	"github.com/jmerrifield20/campusbot/internal/webhook"
	"go.uber.org/zap"
)

type userService interface {
	Resolve(ctx context.Context, facebookID string) (*users.User, error)
	SaveConversation(ctx context.Context, u *users.User) error
	Unlink(ctx context.Context, id int64) error
}

type historyStore interface {
	UpsertMessage(ctx context.Context, m *history.Message) error
	UpsertEvent(ctx context.Context, e *history.Event) error
}

type feedbackFiler interface {
	Submit(ctx context.Context, userID int64, text string) (*feedback.Ticket, error)
}

type flowConsumer interface {
	Consume(ctx context.Context, authCode string) (*linking.Flow, error)
}

type replier interface {
	Reply(ctx context.Context, recipient string, replies ...messenger.Reply) error
	Action(ctx context.Context, recipient string, action messenger.SenderAction)
}

type broadcaster interface {
	Run(ctx context.Context, admin *users.User, cmd *template.Command) (*broadcast.Result, error)
}

// MetricsRecorder is an optional callback for recording handled events by kind.
type MetricsRecorder func(kind string, success bool)

// Dispatcher handles webhook entries one at a time per sender.
type Dispatcher struct {
	users     userService
	history   historyStore
	feedback  feedbackFiler
	flows     flowConsumer
	out       replier
	bcast     broadcaster
	loginURL  string
	locks     *keyedMutex
	onMetrics MetricsRecorder
	logger    *zap.Logger
}

// New creates a Dispatcher. loginURL is the account-link target of login
// buttons.
func New(us userService, hist historyStore, fb feedbackFiler, flows flowConsumer, out replier, loginURL string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		users:    us,
		history:  hist,
		feedback: fb,
		flows:    flows,
		out:      out,
		loginURL: loginURL,
		locks:    newKeyedMutex(),
		logger:   logger,
	}
}

// SetBroadcaster enables admin broadcasts.
func (d *Dispatcher) SetBroadcaster(b broadcaster) { d.bcast = b }

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) { d.onMetrics = fn }

// Dispatch handles the first messaging item of entry. Echoes are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, entry webhook.Entry) error {
	ev, err := webhook.Classify(entry)
	if errors.Is(err, webhook.ErrEcho) {
		return nil
	}
	if err != nil {
		d.record("malformed", false)
		return err
	}

	sender := ev.Source().Sender
	unlock := d.locks.Lock(sender)
	defer unlock()

	switch e := ev.(type) {
	case *webhook.UnsupportedMessage:
		d.out.Action(ctx, sender, messenger.ActionMarkSeen)
		d.reply(ctx, sender, messenger.Text(textNoText))
		d.record("unsupported", true)
		return nil

	case *webhook.TextMessage:
		d.saveMessage(ctx, e.Envelope, e.MID, e.Text)
		return d.converse(ctx, "text", sender, Input{Text: e.Text})

	case *webhook.QuickReplyEvent:
		d.saveEvent(ctx, e.Envelope, e.Title, e.Payload)
		return d.converse(ctx, "quick_reply", sender, Input{Payload: e.Payload})

	case *webhook.PostbackEvent:
		d.saveEvent(ctx, e.Envelope, e.Title, e.Payload)
		return d.converse(ctx, "postback", sender, Input{Payload: e.Payload})

	case *webhook.AccountLinkingEvent:
		d.saveEvent(ctx, e.Envelope, "account_linking", string(e.Status))
		return d.accountLinking(ctx, e)
	}
	return nil
}

func (d *Dispatcher) converse(ctx context.Context, kind, sender string, in Input) error {
	d.out.Action(ctx, sender, messenger.ActionMarkSeen)
	d.out.Action(ctx, sender, messenger.ActionTypingOn)
	defer d.out.Action(ctx, sender, messenger.ActionTypingOff)

	u, err := d.users.Resolve(ctx, sender)
	if err != nil {
		d.record(kind, false)
		return err
	}

	in.LoginURL = d.loginURL
	out := Transition(*u, in)
	switch {
	case errors.Is(out.Err, ErrUnknownCommand):
		d.logger.Debug("unsupported input", zap.Int64("user_id", u.ID), zap.Error(out.Err))
	case errors.Is(out.Err, ErrInvalidNickname):
		d.logger.Debug("nickname rejected", zap.Int64("user_id", u.ID))
	}

	if out.Save {
		u.State, u.Nickname = out.State, out.Nickname
		if err := d.users.SaveConversation(ctx, u); err != nil {
			d.record(kind, false)
			return err
		}
	}

	if out.Feedback != "" {
		out.Replies = append(out.Replies, d.fileFeedback(ctx, u, out.Feedback))
	}
	if out.Broadcast != "" {
		if r := d.runBroadcast(ctx, u, out.Broadcast); r != nil {
			out.Replies = append(out.Replies, r)
		}
	}

	d.reply(ctx, sender, out.Replies...)
	d.record(kind, true)
	return nil
}

func (d *Dispatcher) fileFeedback(ctx context.Context, u *users.User, text string) messenger.Reply {
	t, err := d.feedback.Submit(ctx, u.ID, text)
	if err != nil {
		d.logger.Warn("file feedback", zap.Int64("user_id", u.ID), zap.Error(err))
		return messenger.Text(textFeedbackFailed)
	}
	return messenger.Text(fmt.Sprintf(textFeedbackFiled, t.Number()))
}

// runBroadcast returns a reply for the admin only when the command is
// rejected; the broadcaster reports results itself.
func (d *Dispatcher) runBroadcast(ctx context.Context, admin *users.User, text string) messenger.Reply {
	if d.bcast == nil {
		return messenger.Text(textUnsupported)
	}
	cmd := template.Parse(text)
	if cmd == nil {
		return messenger.Text(textBadBroadcast)
	}
	_, err := d.bcast.Run(ctx, admin, cmd)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, broadcast.ErrEmptyBody):
		return messenger.Text(textEmptyBody)
	default:
		d.logger.Error("broadcast failed", zap.Int64("admin_id", admin.ID), zap.Error(err))
		return nil
	}
}

func (d *Dispatcher) accountLinking(ctx context.Context, e *webhook.AccountLinkingEvent) error {
	sender := e.Sender
	switch e.Status {
	case webhook.Linked:
		flow, err := d.flows.Consume(ctx, e.AuthCode)
		switch {
		case errors.Is(err, linking.ErrNotFound):
			d.logger.Warn("no pending flow for linked account", zap.String("psid", sender))
		case err != nil:
			d.record("account_linking", false)
			return err
		default:
			d.logger.Info("account linking finished", zap.Int64("user_id", flow.UserID))
		}
		d.reply(ctx, sender, messenger.Text(textLinked))

	case webhook.Unlinked:
		u, err := d.users.Resolve(ctx, sender)
		if err != nil {
			d.record("account_linking", false)
			return err
		}
		if err := d.users.Unlink(ctx, u.ID); err != nil {
			d.record("account_linking", false)
			return err
		}
		d.reply(ctx, sender, messenger.Text(textUnlinked))
	}
	d.record("account_linking", true)
	return nil
}

func (d *Dispatcher) reply(ctx context.Context, recipient string, replies ...messenger.Reply) {
	if len(replies) == 0 {
		return
	}
	if err := d.out.Reply(ctx, recipient, replies...); err != nil {
		d.logger.Warn("reply not delivered", zap.String("psid", recipient), zap.Error(err))
	}
}

func (d *Dispatcher) saveMessage(ctx context.Context, env webhook.Envelope, mid, text string) {
	m := &history.Message{
		ID:        mid,
		Sender:    env.Sender,
		Recipient: env.Recipient,
		Timestamp: env.Timestamp,
		Text:      text,
	}
	if err := d.history.UpsertMessage(ctx, m); err != nil {
		d.logger.Warn("persist message", zap.String("mid", mid), zap.Error(err))
	}
}

func (d *Dispatcher) saveEvent(ctx context.Context, env webhook.Envelope, title, payload string) {
	e := &history.Event{
		Sender:    env.Sender,
		Recipient: env.Recipient,
		Timestamp: env.Timestamp,
		Title:     title,
		Payload:   payload,
	}
	if err := d.history.UpsertEvent(ctx, e); err != nil {
		d.logger.Warn("persist event", zap.String("payload", payload), zap.Error(err))
	}
}

func (d *Dispatcher) record(kind string, success bool) {
	if d.onMetrics != nil {
		d.onMetrics(kind, success)
	}
}
