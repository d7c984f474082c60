package dispatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jmerrifield20/campusbot/internal/messenger"
	"github.com/jmerrifield20/campusbot/internal/template"
	"github.com/jmerrifield20/campusbot/internal/users"
)

// Postback and quick reply payloads understood by the bot.
const (
	PayloadGetStarted     = "get_started"
	PayloadInfo           = "info"
	PayloadMenuNickname   = "menu_nickname"
	PayloadNicknameYes    = "nickname_ask_yes"
	PayloadNicknameNo     = "nickname_ask_no"
	PayloadNicknameCancel = "nickname_cancel"
	PayloadNicknameDelete = "nickname_delete"
	PayloadMenuFeedback   = "menu_feedback"
	PayloadFeedbackCancel = "feedback_cancel"
)

// MaxNicknameLength is counted in characters after normalization.
const MaxNicknameLength = 24

var (
	// ErrUnknownCommand is reported for input that has no meaning in the
	// current state. The user gets the unsupported-input reply.
	ErrUnknownCommand = errors.New("unknown conversation command")

	// ErrInvalidNickname is reported when a typed nickname fails validation.
	ErrInvalidNickname = errors.New("invalid nickname")
)

var nicknameRe = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)

// NormalizeNickname trims s and collapses inner whitespace runs to single
// spaces. The result must be 1 to 24 ASCII letters, digits or spaces.
func NormalizeNickname(s string) (string, error) {
	n := strings.Join(strings.Fields(s), " ")
	if n == "" || utf8.RuneCountInString(n) > MaxNicknameLength || !nicknameRe.MatchString(n) {
		return "", ErrInvalidNickname
	}
	return n, nil
}

// Input is one user action: a postback or quick reply Payload, or free Text.
type Input struct {
	Payload string
	Text    string

	// LoginURL is the account-link target offered by the login button.
	LoginURL string
}

// Outcome is the result of a transition. When Save is set, State and
// Nickname replace the user's conversation fields. Feedback and Broadcast
// ask the dispatcher to file a ticket or run a broadcast before Replies are
// sent.
type Outcome struct {
	State     users.State
	Nickname  string
	Save      bool
	Feedback  string
	Broadcast string
	Replies   []messenger.Reply
	Err       error
}

// Transition computes the effect of in on a user in u's state. It performs no
// I/O.
func Transition(u users.User, in Input) Outcome {
	out := Outcome{State: u.State, Nickname: u.Nickname}
	if in.Payload != "" {
		return onPayload(u, in, out)
	}
	return onText(u, in, out)
}

func onPayload(u users.User, in Input, out Outcome) Outcome {
	switch in.Payload {
	case PayloadGetStarted:
		out.Replies = welcome(u, in.LoginURL)
		return out

	case PayloadInfo:
		out.Replies = []messenger.Reply{messenger.Text(textInfo)}
		return out

	case PayloadMenuNickname:
		out.State, out.Save = users.StateAskNickname, true
		out.Replies = []messenger.Reply{askNickname(u)}
		return out

	case PayloadMenuFeedback:
		out.State, out.Save = users.StateFeedback, true
		out.Replies = []messenger.Reply{messenger.QuickReplies{
			Text:    textAskFeedback,
			Options: []messenger.QuickReply{messenger.Option("Cancel", PayloadFeedbackCancel)},
		}}
		return out

	case PayloadNicknameYes:
		if u.State == users.StateAskNickname {
			out.State, out.Save = users.StateInputNickname, true
			out.Replies = []messenger.Reply{promptNickname(textInputNickname)}
			return out
		}

	case PayloadNicknameNo:
		if u.State == users.StateAskNickname {
			return keepNickname(u, out)
		}

	case PayloadNicknameCancel:
		if u.State == users.StateAskNickname || u.State == users.StateInputNickname {
			return keepNickname(u, out)
		}

	case PayloadNicknameDelete:
		if u.State == users.StateAskNickname {
			out.State, out.Nickname, out.Save = users.StateNone, "", true
			out.Replies = []messenger.Reply{messenger.Text(textNicknameDeleted)}
			return out
		}

	case PayloadFeedbackCancel:
		if u.State == users.StateFeedback {
			out.State, out.Save = users.StateNone, true
			out.Replies = []messenger.Reply{messenger.Text(textFeedbackDiscarded)}
			return out
		}
	}
	return unknown(out, in.Payload)
}

func onText(u users.User, in Input, out Outcome) Outcome {
	switch u.State {
	case users.StateInputNickname:
		nick, err := NormalizeNickname(in.Text)
		if err != nil {
			out.Err = err
			out.Replies = []messenger.Reply{promptNickname(textInvalidNickname)}
			return out
		}
		out.State, out.Nickname, out.Save = users.StateNone, nick, true
		out.Replies = []messenger.Reply{messenger.Text(fmt.Sprintf(textNicknameSet, nick))}
		return out

	case users.StateFeedback:
		out.State, out.Save = users.StateNone, true
		out.Feedback = in.Text
		return out
	}

	switch strings.ToLower(strings.TrimSpace(in.Text)) {
	case "login":
		out.Replies = []messenger.Reply{messenger.NewButtonTemplate(textLogin, messenger.AccountLinkButton(in.LoginURL))}
		return out
	case "logout":
		out.Replies = []messenger.Reply{messenger.NewButtonTemplate(textLogout, messenger.AccountUnlinkButton())}
		return out
	}

	if !u.IsAdmin {
		return unknown(out, "")
	}
	if template.IsHelp(in.Text) {
		out.Replies = []messenger.Reply{messenger.Text(template.Help(in.Text))}
		return out
	}
	out.Broadcast = in.Text
	return out
}

func unknown(out Outcome, payload string) Outcome {
	if payload != "" {
		out.Err = fmt.Errorf("%w: %q", ErrUnknownCommand, payload)
	} else {
		out.Err = ErrUnknownCommand
	}
	out.Replies = []messenger.Reply{messenger.Text(textUnsupported)}
	return out
}

func keepNickname(u users.User, out Outcome) Outcome {
	out.State, out.Save = users.StateNone, true
	if u.Nickname != "" {
		out.Replies = []messenger.Reply{messenger.Text(fmt.Sprintf(textNicknameKept, u.Nickname))}
	} else {
		out.Replies = []messenger.Reply{messenger.Text(textNoNickname)}
	}
	return out
}

func askNickname(u users.User) messenger.Reply {
	q := messenger.QuickReplies{
		Text: textAskNickname,
		Options: []messenger.QuickReply{
			messenger.Option("Yes", PayloadNicknameYes),
			messenger.Option("No", PayloadNicknameNo),
		},
	}
	if u.Nickname != "" {
		q.Text = fmt.Sprintf(textChangeNickname, u.Nickname)
		q.Options = append(q.Options, messenger.Option("Delete", PayloadNicknameDelete))
	}
	return q
}

func promptNickname(text string) messenger.Reply {
	return messenger.QuickReplies{
		Text:    text,
		Options: []messenger.QuickReply{messenger.Option("Cancel", PayloadNicknameCancel)},
	}
}

func welcome(u users.User, loginURL string) []messenger.Reply {
	greeting := messenger.Text(fmt.Sprintf(textWelcome, u.FirstName))
	if !u.IsRegistered {
		return []messenger.Reply{
			greeting,
			messenger.NewButtonTemplate(textMustRegister, messenger.AccountLinkButton(loginURL)),
		}
	}
	return []messenger.Reply{greeting, registeredMenu()}
}

func registeredMenu() messenger.Reply {
	return messenger.NewButtonTemplate(textMenu,
		messenger.PostbackButton("Nickname", PayloadMenuNickname),
		messenger.PostbackButton("Send feedback", PayloadMenuFeedback),
		messenger.AccountUnlinkButton(),
	)
}
