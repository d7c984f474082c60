package messenger

import "fmt"

// Reply is an outbound message directive. Implementations are Text,
// QuickReplies, *ButtonTemplate and *ListTemplate.
type Reply interface {
	message() *Message
	// Summary is the text stored in the message history.
	Summary() string
}

// Text is a plain text message.
type Text string

func (t Text) message() *Message { return &Message{Text: string(t)} }

// Summary implements Reply.
func (t Text) Summary() string { return string(t) }

// QuickReplyKind is the content type of a quick reply.
type QuickReplyKind string

const QuickReplyText QuickReplyKind = "text"

// QuickReply is one option offered below a message.
type QuickReply struct {
	ContentType QuickReplyKind `json:"content_type"`
	Title       string         `json:"title,omitempty"`
	Payload     string         `json:"payload,omitempty"`
}

// Option is a text quick reply.
func Option(title, payload string) QuickReply {
	return QuickReply{ContentType: QuickReplyText, Title: title, Payload: payload}
}

// QuickReplies is a text message with quick reply options.
type QuickReplies struct {
	Text    string
	Options []QuickReply
}

func (q QuickReplies) message() *Message {
	return &Message{Text: q.Text, QuickReplies: q.Options}
}

// Summary implements Reply.
func (q QuickReplies) Summary() string { return q.Text }

// ButtonType is the kind of a template button.
type ButtonType string

const (
	ButtonAccountLink   ButtonType = "account_link"
	ButtonAccountUnlink ButtonType = "account_unlink"
	ButtonWebURL        ButtonType = "web_url"
	ButtonPostback      ButtonType = "postback"
)

// Button is a template button.
type Button struct {
	Type    ButtonType `json:"type"`
	Title   string     `json:"title,omitempty"`
	URL     string     `json:"url,omitempty"`
	Payload string     `json:"payload,omitempty"`
}

// AccountLinkButton starts account linking at url.
func AccountLinkButton(url string) Button {
	return Button{Type: ButtonAccountLink, URL: url}
}

// AccountUnlinkButton unlinks the account.
func AccountUnlinkButton() Button {
	return Button{Type: ButtonAccountUnlink}
}

// URLButton opens url.
func URLButton(title, url string) Button {
	return Button{Type: ButtonWebURL, Title: title, URL: url}
}

// PostbackButton sends payload back as a postback.
func PostbackButton(title, payload string) Button {
	return Button{Type: ButtonPostback, Title: title, Payload: payload}
}

// MaxTemplateButtons is the platform limit on buttons per button template.
const MaxTemplateButtons = 3

// ButtonTemplate is a text with one to three buttons.
type ButtonTemplate struct {
	text    string
	buttons []Button
}

// NewButtonTemplate builds a button template. It panics unless it gets
// between one and MaxTemplateButtons buttons.
func NewButtonTemplate(text string, buttons ...Button) *ButtonTemplate {
	if len(buttons) < 1 || len(buttons) > MaxTemplateButtons {
		panic(fmt.Sprintf("messenger: button template needs 1-%d buttons, got %d", MaxTemplateButtons, len(buttons)))
	}
	return &ButtonTemplate{text: text, buttons: append([]Button(nil), buttons...)}
}

// Buttons returns a copy of the template buttons.
func (b *ButtonTemplate) Buttons() []Button { return append([]Button(nil), b.buttons...) }

func (b *ButtonTemplate) message() *Message {
	return &Message{Attachment: &Attachment{
		Type: "template",
		Payload: TemplatePayload{
			TemplateType: "button",
			Text:         b.text,
			Buttons:      b.buttons,
		},
	}}
}

// Summary implements Reply.
func (b *ButtonTemplate) Summary() string { return b.text }

// List element styles.
const (
	ListStyleLarge   = "large"
	ListStyleCompact = "compact"
)

// ListElement is one row of a list template.
type ListElement struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// ListTemplate is a vertical list of two to four elements.
type ListTemplate struct {
	TopElementStyle string
	Elements        []ListElement
	Button          *Button
}

func (l *ListTemplate) message() *Message {
	p := TemplatePayload{
		TemplateType:    "list",
		TopElementStyle: l.TopElementStyle,
		Elements:        l.Elements,
	}
	if p.TopElementStyle == "" {
		p.TopElementStyle = ListStyleCompact
	}
	if l.Button != nil {
		p.Buttons = []Button{*l.Button}
	}
	return &Message{Attachment: &Attachment{Type: "template", Payload: p}}
}

// Summary implements Reply.
func (l *ListTemplate) Summary() string {
	if len(l.Elements) == 0 {
		return ""
	}
	return l.Elements[0].Title
}
