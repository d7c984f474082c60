// Package broadcast fans an admin message out to a target group of users at
// a fixed pace.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmerrifield20/campusbot/internal/messenger"
	"github.com/jmerrifield20/campusbot/internal/template"
	"github.com/jmerrifield20/campusbot/internal/users"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultInterval keeps the send rate well under the platform ceiling.
const DefaultInterval = 100 * time.Millisecond

var (
	// ErrNoTarget is returned for commands without a recognized @target.
	ErrNoTarget = errors.New("broadcast has no target")
	// ErrEmptyBody is returned when there is nothing to send.
	ErrEmptyBody = errors.New("broadcast message is empty")
)

type userLister interface {
	ListByTarget(ctx context.Context, where string, args ...any) ([]*users.User, error)
}

type sender interface {
	Broadcast(ctx context.Context, recipient string, r messenger.Reply) (string, error)
	Reply(ctx context.Context, recipient string, replies ...messenger.Reply) error
}

// MetricsRecorder is an optional callback for recording per-recipient outcomes.
type MetricsRecorder func(success bool)

// Result summarizes one broadcast.
type Result struct {
	Target  template.Kind `json:"target"`
	Matched int           `json:"matched"`
	Sent    int           `json:"sent"`
	Failed  int           `json:"failed"`
}

// Broadcaster sends rendered broadcast commands one recipient at a time.
type Broadcaster struct {
	users     userLister
	out       sender
	limiter   *rate.Limiter
	now       func() time.Time
	onMetrics MetricsRecorder
	logger    *zap.Logger
}

// New creates a Broadcaster allowing one send per interval.
func New(ul userLister, out sender, interval time.Duration, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Broadcaster{
		users:   ul,
		out:     out,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the time source used for $date placeholders.
func (b *Broadcaster) SetClock(now func() time.Time) { b.now = now }

// SetMetricsRecorder configures the metrics callback.
func (b *Broadcaster) SetMetricsRecorder(fn MetricsRecorder) { b.onMetrics = fn }

// Run sends cmd to every user matched by its target except admin, then
// reports the delivery count and a preview rendered for admin back to admin.
// A failing target query aborts the broadcast; failing sends are skipped.
func (b *Broadcaster) Run(ctx context.Context, admin *users.User, cmd *template.Command) (*Result, error) {
	if cmd == nil {
		return nil, ErrNoTarget
	}
	if strings.TrimSpace(cmd.Body) == "" {
		return nil, ErrEmptyBody
	}

	recipients, err := b.users.ListByTarget(ctx, cmd.Target.Where, cmd.Target.Args...)
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast target %q: %w", cmd.Target.Token, err)
	}

	res := &Result{Target: cmd.Target.Kind}
	for _, u := range recipients {
		if u.ID == admin.ID || u.FacebookID == admin.FacebookID {
			continue
		}
		res.Matched++

		if err := b.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("broadcast interrupted after %d sends: %w", res.Sent, err)
		}

		_, err := b.out.Broadcast(ctx, u.FacebookID, messenger.Text(cmd.Render(u, b.now())))
		if b.onMetrics != nil {
			b.onMetrics(err == nil)
		}
		if err != nil {
			res.Failed++
			b.logger.Warn("broadcast send failed",
				zap.Int64("user_id", u.ID),
				zap.Error(err),
			)
			continue
		}
		res.Sent++
	}

	b.logger.Info("broadcast finished",
		zap.String("target", cmd.Target.Token),
		zap.Int("matched", res.Matched),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)

	summary := fmt.Sprintf("Message sent to %d users.", res.Sent)
	if res.Failed > 0 {
		summary += fmt.Sprintf(" %d failed.", res.Failed)
	}
	preview := cmd.Render(admin, b.now())
	if err := b.out.Reply(ctx, admin.FacebookID, messenger.Text(summary), messenger.Text(preview)); err != nil {
		b.logger.Warn("broadcast summary not delivered", zap.Error(err))
	}
	return res, nil
}
