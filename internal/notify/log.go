package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log instead of delivering them.
// Used when no SMTP relay is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification and returns nil.
func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.logger.Info("operator notification",
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
