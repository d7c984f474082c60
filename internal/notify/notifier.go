// Package notify tells the bot operators about things users send, such as
// feedback tickets.
package notify

import "context"

// Notifier delivers a short operator notification.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}
