// Package messenger renders reply directives into Send API payloads and
// talks to the Messenger Platform Graph API.
package messenger

// Messaging types of the Send API.
const (
	TypeResponse   = "RESPONSE"
	TypeMessageTag = "MESSAGE_TAG"
)

// DefaultBroadcastTag is the message tag used for broadcasts.
const DefaultBroadcastTag = "ACCOUNT_UPDATE"

// SendRequest is the Send API request body.
type SendRequest struct {
	Recipient     Recipient `json:"recipient"`
	MessagingType string    `json:"messaging_type,omitempty"`
	Tag           string    `json:"tag,omitempty"`
	Message       *Message  `json:"message,omitempty"`
	SenderAction  string    `json:"sender_action,omitempty"`
}

// Recipient addresses a page-scoped user.
type Recipient struct {
	ID string `json:"id"`
}

// Message is the message object of a SendRequest.
type Message struct {
	Text         string       `json:"text,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
	Attachment   *Attachment  `json:"attachment,omitempty"`
}

// Attachment wraps a structured template.
type Attachment struct {
	Type    string          `json:"type"`
	Payload TemplatePayload `json:"payload"`
}

// TemplatePayload covers the button and list templates.
type TemplatePayload struct {
	TemplateType    string        `json:"template_type"`
	Text            string        `json:"text,omitempty"`
	TopElementStyle string        `json:"top_element_style,omitempty"`
	Elements        []ListElement `json:"elements,omitempty"`
	Buttons         []Button      `json:"buttons,omitempty"`
}

// Delivery selects how a message is tagged.
type Delivery struct {
	MessagingType string
	Tag           string
}

// Conversational tags a direct answer to the user.
var Conversational = Delivery{MessagingType: TypeResponse}

// BroadcastDelivery tags a message sent outside a conversation.
func BroadcastDelivery(tag string) Delivery {
	if tag == "" {
		tag = DefaultBroadcastTag
	}
	return Delivery{MessagingType: TypeMessageTag, Tag: tag}
}

// Render builds the Send API body for reply.
func Render(recipient string, reply Reply, d Delivery) *SendRequest {
	return &SendRequest{
		Recipient:     Recipient{ID: recipient},
		MessagingType: d.MessagingType,
		Tag:           d.Tag,
		Message:       reply.message(),
	}
}
