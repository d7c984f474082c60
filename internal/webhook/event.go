package webhook

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedPayload is returned for entries missing required fields or
	// carrying more than one body kind.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrEcho is returned for messages the page itself sent.
	ErrEcho = errors.New("echo message")
)

// Envelope is the routing metadata shared by all events.
type Envelope struct {
	Sender    string
	Recipient string
	Timestamp time.Time
}

// Source returns the envelope of the event.
func (e Envelope) Source() Envelope { return e }

func (Envelope) event() {}

// Event is one of *TextMessage, *QuickReplyEvent, *PostbackEvent,
// *AccountLinkingEvent or *UnsupportedMessage.
type Event interface {
	Source() Envelope
	event()
}

// TextMessage is free text typed by the user.
type TextMessage struct {
	Envelope
	MID  string
	Text string
}

// QuickReplyEvent is a tap on a quick reply. Title is the option label.
type QuickReplyEvent struct {
	Envelope
	MID     string
	Title   string
	Payload string
}

// PostbackEvent is a button, menu or get-started click.
type PostbackEvent struct {
	Envelope
	Title   string
	Payload string
}

// LinkStatus is the account linking outcome.
type LinkStatus string

const (
	Linked   LinkStatus = "linked"
	Unlinked LinkStatus = "unlinked"
)

// AccountLinkingEvent reports that the user linked or unlinked an account.
type AccountLinkingEvent struct {
	Envelope
	Status   LinkStatus
	AuthCode string
}

// UnsupportedMessage is a message without text, such as a sticker or image.
type UnsupportedMessage struct {
	Envelope
	MID string
}

// Classify turns the first messaging item of entry into an Event.
func Classify(entry Entry) (Event, error) {
	if len(entry.Messaging) == 0 {
		return nil, fmt.Errorf("%w: entry %s has no messaging items", ErrMalformedPayload, entry.ID)
	}
	m := entry.Messaging[0]
	if m.Sender.ID == "" {
		return nil, fmt.Errorf("%w: missing sender.id", ErrMalformedPayload)
	}

	kinds := 0
	for _, present := range []bool{m.Message != nil, m.Postback != nil, m.AccountLinking != nil} {
		if present {
			kinds++
		}
	}
	switch {
	case kinds == 0:
		return nil, fmt.Errorf("%w: no message, postback or account_linking", ErrMalformedPayload)
	case kinds > 1:
		return nil, fmt.Errorf("%w: ambiguous messaging item", ErrMalformedPayload)
	}

	env := Envelope{
		Sender:    m.Sender.ID,
		Recipient: m.Recipient.ID,
		Timestamp: time.UnixMilli(m.Timestamp).UTC(),
	}

	switch {
	case m.Message != nil:
		msg := m.Message
		if msg.IsEcho {
			return nil, ErrEcho
		}
		if msg.QuickReply != nil && msg.QuickReply.Payload != "" {
			return &QuickReplyEvent{Envelope: env, MID: msg.MID, Title: msg.Text, Payload: msg.QuickReply.Payload}, nil
		}
		if msg.Text == "" {
			return &UnsupportedMessage{Envelope: env, MID: msg.MID}, nil
		}
		if msg.MID == "" {
			return nil, fmt.Errorf("%w: message without mid", ErrMalformedPayload)
		}
		return &TextMessage{Envelope: env, MID: msg.MID, Text: msg.Text}, nil

	case m.Postback != nil:
		if m.Postback.Payload == "" {
			return nil, fmt.Errorf("%w: postback without payload", ErrMalformedPayload)
		}
		return &PostbackEvent{Envelope: env, Title: m.Postback.Title, Payload: m.Postback.Payload}, nil

	default:
		status := LinkStatus(m.AccountLinking.Status)
		if status != Linked && status != Unlinked {
			return nil, fmt.Errorf("%w: account_linking status %q", ErrMalformedPayload, m.AccountLinking.Status)
		}
		return &AccountLinkingEvent{Envelope: env, Status: status, AuthCode: m.AccountLinking.AuthorizationCode}, nil
	}
}
