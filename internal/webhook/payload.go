// Package webhook decodes Messenger Platform webhook deliveries and
// classifies each entry into exactly one typed Event.
package webhook

import (
	"encoding/json"
	"fmt"
)

// ObjectPage is the only delivery object the bot subscribes to.
const ObjectPage = "page"

// Payload is one webhook delivery.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is a batch of messaging items for one page.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is a single item. Exactly one of Message, Postback and
// AccountLinking is expected to be set.
type Messaging struct {
	Sender         Party           `json:"sender"`
	Recipient      Party           `json:"recipient"`
	Timestamp      int64           `json:"timestamp"`
	Message        *Message        `json:"message,omitempty"`
	Postback       *Postback       `json:"postback,omitempty"`
	AccountLinking *AccountLinking `json:"account_linking,omitempty"`
}

// Party identifies a page-scoped user or the page.
type Party struct {
	ID string `json:"id"`
}

// Message is an inbound message body.
type Message struct {
	MID         string          `json:"mid"`
	Text        string          `json:"text,omitempty"`
	IsEcho      bool            `json:"is_echo,omitempty"`
	QuickReply  *QuickReply     `json:"quick_reply,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

// QuickReply carries the payload of the tapped quick reply.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Postback is a button or menu click.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// AccountLinking reports the outcome of a linking attempt.
type AccountLinking struct {
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
}

// Decode parses a delivery body.
func Decode(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &p, nil
}
