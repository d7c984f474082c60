package webhook_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/campusbot/internal/webhook"
)

func decodeEntry(t *testing.T, body string) webhook.Entry {
	t.Helper()
	p, err := webhook.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(p.Entry) != 1 {
		t.Fatalf("expected one entry, got %d", len(p.Entry))
	}
	return p.Entry[0]
}

func TestClassify_TextMessage(t *testing.T) {
	entry := decodeEntry(t, `{"object":"page","entry":[{"id":"p","messaging":[{
		"sender":{"id":"u1"},"recipient":{"id":"p"},"timestamp":1700000000000,
		"message":{"mid":"m1","text":"Login"}}]}]}`)

	ev, err := webhook.Classify(entry)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	msg, ok := ev.(*webhook.TextMessage)
	if !ok {
		t.Fatalf("got %T, want *TextMessage", ev)
	}
	if msg.Text != "Login" || msg.MID != "m1" || msg.Sender != "u1" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if !msg.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("timestamp = %v", msg.Timestamp)
	}
}

func TestClassify_QuickReplyWinsOverText(t *testing.T) {
	entry := decodeEntry(t, `{"entry":[{"messaging":[{
		"sender":{"id":"u1"},"recipient":{"id":"p"},
		"message":{"mid":"m2","text":"Yes","quick_reply":{"payload":"nickname_ask_yes"}}}]}]}`)

	ev, err := webhook.Classify(entry)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	qr, ok := ev.(*webhook.QuickReplyEvent)
	if !ok {
		t.Fatalf("got %T, want *QuickReplyEvent", ev)
	}
	if qr.Payload != "nickname_ask_yes" || qr.Title != "Yes" {
		t.Errorf("unexpected quick reply: %+v", qr)
	}
}

func TestClassify_Postback(t *testing.T) {
	entry := decodeEntry(t, `{"entry":[{"messaging":[{
		"sender":{"id":"u1"},"recipient":{"id":"p"},
		"postback":{"title":"Get Started","payload":"get_started"}}]}]}`)

	ev, err := webhook.Classify(entry)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	pb, ok := ev.(*webhook.PostbackEvent)
	if !ok || pb.Payload != "get_started" {
		t.Fatalf("got %#v", ev)
	}
}

func TestClassify_AccountLinking(t *testing.T) {
	entry := decodeEntry(t, `{"entry":[{"messaging":[{
		"sender":{"id":"u1"},"recipient":{"id":"p"},
		"account_linking":{"status":"linked","authorization_code":"abc"}}]}]}`)

	ev, err := webhook.Classify(entry)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	al, ok := ev.(*webhook.AccountLinkingEvent)
	if !ok || al.Status != webhook.Linked || al.AuthCode != "abc" {
		t.Fatalf("got %#v", ev)
	}
}

func TestClassify_NoText(t *testing.T) {
	entry := decodeEntry(t, `{"entry":[{"messaging":[{
		"sender":{"id":"u1"},"recipient":{"id":"p"},
		"message":{"mid":"m3","attachments":[{"type":"image"}]}}]}]}`)

	ev, err := webhook.Classify(entry)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if _, ok := ev.(*webhook.UnsupportedMessage); !ok {
		t.Fatalf("got %T, want *UnsupportedMessage", ev)
	}
}

func TestClassify_Echo(t *testing.T) {
	entry := decodeEntry(t, `{"entry":[{"messaging":[{
		"sender":{"id":"p"},"recipient":{"id":"u1"},
		"message":{"mid":"m4","text":"hi","is_echo":true}}]}]}`)

	if _, err := webhook.Classify(entry); !errors.Is(err, webhook.ErrEcho) {
		t.Errorf("expected ErrEcho, got %v", err)
	}
}

func TestClassify_Malformed(t *testing.T) {
	cases := map[string]string{
		"no messaging":   `{"entry":[{"id":"p"}]}`,
		"no sender":      `{"entry":[{"messaging":[{"message":{"mid":"m","text":"x"}}]}]}`,
		"no body":        `{"entry":[{"messaging":[{"sender":{"id":"u"}}]}]}`,
		"ambiguous":      `{"entry":[{"messaging":[{"sender":{"id":"u"},"message":{"mid":"m","text":"x"},"postback":{"payload":"get_started"}}]}]}`,
		"empty postback": `{"entry":[{"messaging":[{"sender":{"id":"u"},"postback":{"title":"x"}}]}]}`,
		"bad status":     `{"entry":[{"messaging":[{"sender":{"id":"u"},"account_linking":{"status":"maybe"}}]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			entry := decodeEntry(t, body)
			if _, err := webhook.Classify(entry); !errors.Is(err, webhook.ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := webhook.Decode([]byte("{")); !errors.Is(err, webhook.ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	sig := webhook.Sign(body, "app-secret")

	if err := webhook.VerifySignature(body, sig, "app-secret"); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	if err := webhook.VerifySignature(body, sig, "other"); !errors.Is(err, webhook.ErrBadSignature) {
		t.Errorf("wrong secret accepted: %v", err)
	}
	if err := webhook.VerifySignature(body, "", "app-secret"); !errors.Is(err, webhook.ErrBadSignature) {
		t.Errorf("missing header accepted: %v", err)
	}
}
