// Package history stores every inbound and outbound message and postback
// event for audit.
package history

import "time"

// Message is a text message exchanged with a user, keyed by the platform mid.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// Event is a postback or quick-reply click. Title is the label the user saw.
type Event struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Payload   string    `json:"payload"`
}
