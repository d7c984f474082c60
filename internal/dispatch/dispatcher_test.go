package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/campusbot/internal/broadcast"
	"github.com/jmerrifield20/campusbot/internal/dispatch"
	"github.com/jmerrifield20/campusbot/internal/feedback"
	"github.com/jmerrifield20/campusbot/internal/history"
	"github.com/jmerrifield20/campusbot/internal/linking"
	"github.com/jmerrifield20/campusbot/internal/messenger"
	"github.com/jmerrifield20/campusbot/internal/template"
	"github.com/jmerrifield20/campusbot/internal/users"
	"github.com/jmerrifield20/campusbot/internal/webhook"
	"go.uber.org/zap"
)

const loginURL = "https://bot.example.com/register"

// ── Stubs ─────────────────────────────────────────────────────────────────

type stubUsers struct {
	mu       sync.RWMutex
	byFB     map[string]*users.User
	saves    int
	unlinked []int64
}

func newStubUsers(us ...*users.User) *stubUsers {
	s := &stubUsers{byFB: make(map[string]*users.User)}
	for _, u := range us {
		s.byFB[u.FacebookID] = u
	}
	return s
}

func (s *stubUsers) Resolve(_ context.Context, fb string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byFB[fb]
	if !ok {
		u = &users.User{ID: int64(len(s.byFB) + 1), FacebookID: fb, FirstName: "New", State: users.StateNone}
		s.byFB[fb] = u
	}
	cp := *u
	return &cp, nil
}

func (s *stubUsers) SaveConversation(_ context.Context, u *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	stored := s.byFB[u.FacebookID]
	stored.State, stored.Nickname = u.State, u.Nickname
	return nil
}

func (s *stubUsers) Unlink(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlinked = append(s.unlinked, id)
	return nil
}

func (s *stubUsers) get(fb string) users.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.byFB[fb]
}

type stubHistory struct {
	mu     sync.Mutex
	msgs   []*history.Message
	events []*history.Event
}

func (h *stubHistory) UpsertMessage(_ context.Context, m *history.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, m)
	return nil
}

func (h *stubHistory) UpsertEvent(_ context.Context, e *history.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

type stubFeedback struct {
	texts []string
	err   error
}

func (f *stubFeedback) Submit(_ context.Context, userID int64, text string) (*feedback.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	return &feedback.Ticket{ID: uuid.MustParse("0a1b2c3d-0000-4000-8000-000000000000"), UserID: userID, Text: text}, nil
}

type stubFlows struct {
	flows map[string]*linking.Flow
}

func (f *stubFlows) Consume(_ context.Context, code string) (*linking.Flow, error) {
	fl, ok := f.flows[code]
	if !ok {
		return nil, linking.ErrNotFound
	}
	delete(f.flows, code)
	return fl, nil
}

type recordingReplier struct {
	mu      sync.Mutex
	replies map[string][]messenger.Reply
	actions []messenger.SenderAction
}

func newReplier() *recordingReplier {
	return &recordingReplier{replies: make(map[string][]messenger.Reply)}
}

func (r *recordingReplier) Reply(_ context.Context, to string, replies ...messenger.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[to] = append(r.replies[to], replies...)
	return nil
}

func (r *recordingReplier) Action(_ context.Context, _ string, a messenger.SenderAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

func (r *recordingReplier) to(psid string) []messenger.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messenger.Reply(nil), r.replies[psid]...)
}

type stubBroadcaster struct {
	cmds []*template.Command
	err  error
}

func (b *stubBroadcaster) Run(_ context.Context, _ *users.User, cmd *template.Command) (*broadcast.Result, error) {
	b.cmds = append(b.cmds, cmd)
	return &broadcast.Result{Target: cmd.Target.Kind}, b.err
}

type fixture struct {
	users    *stubUsers
	history  *stubHistory
	feedback *stubFeedback
	flows    *stubFlows
	out      *recordingReplier
	bcast    *stubBroadcaster
	d        *dispatch.Dispatcher
}

func newFixture(us ...*users.User) *fixture {
	f := &fixture{
		users:    newStubUsers(us...),
		history:  &stubHistory{},
		feedback: &stubFeedback{},
		flows:    &stubFlows{flows: map[string]*linking.Flow{}},
		out:      newReplier(),
		bcast:    &stubBroadcaster{},
	}
	f.d = dispatch.New(f.users, f.history, f.feedback, f.flows, f.out, loginURL, zap.NewNop())
	f.d.SetBroadcaster(f.bcast)
	return f
}

func textEntry(psid, mid, text string) webhook.Entry {
	return webhook.Entry{ID: "page", Messaging: []webhook.Messaging{{
		Sender:    webhook.Party{ID: psid},
		Recipient: webhook.Party{ID: "page"},
		Timestamp: time.Now().UnixMilli(),
		Message:   &webhook.Message{MID: mid, Text: text},
	}}}
}

func postbackEntry(psid, payload string) webhook.Entry {
	return webhook.Entry{ID: "page", Messaging: []webhook.Messaging{{
		Sender:    webhook.Party{ID: psid},
		Recipient: webhook.Party{ID: "page"},
		Timestamp: time.Now().UnixMilli(),
		Postback:  &webhook.Postback{Title: payload, Payload: payload},
	}}}
}

func quickReplyEntry(psid, payload string) webhook.Entry {
	return webhook.Entry{ID: "page", Messaging: []webhook.Messaging{{
		Sender:    webhook.Party{ID: psid},
		Recipient: webhook.Party{ID: "page"},
		Timestamp: time.Now().UnixMilli(),
		Message:   &webhook.Message{MID: "qr-" + payload, Text: payload, QuickReply: &webhook.QuickReply{Payload: payload}},
	}}}
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestDispatch_LoginReturnsSingleAccountLinkButton(t *testing.T) {
	f := newFixture()

	if err := f.d.Dispatch(context.Background(), textEntry("u1", "m1", "login")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := f.out.to("u1")
	if len(got) != 1 {
		t.Fatalf("got %d replies, want 1", len(got))
	}
	tpl, ok := got[0].(*messenger.ButtonTemplate)
	if !ok {
		t.Fatalf("reply is %T, want *messenger.ButtonTemplate", got[0])
	}
	buttons := tpl.Buttons()
	if len(buttons) != 1 || buttons[0].Type != messenger.ButtonAccountLink || buttons[0].URL != loginURL {
		t.Errorf("buttons = %+v", buttons)
	}

	if len(f.history.msgs) != 1 || f.history.msgs[0].ID != "m1" || f.history.msgs[0].Text != "login" {
		t.Errorf("inbound message not persisted: %+v", f.history.msgs)
	}
	if len(f.out.actions) == 0 || f.out.actions[0] != messenger.ActionMarkSeen {
		t.Errorf("actions = %v", f.out.actions)
	}
}

func TestDispatch_TypingIndicatorAroundReply(t *testing.T) {
	f := newFixture()

	if err := f.d.Dispatch(context.Background(), textEntry("u1", "m1", "help")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := []messenger.SenderAction{messenger.ActionMarkSeen, messenger.ActionTypingOn, messenger.ActionTypingOff}
	f.out.mu.Lock()
	got := append([]messenger.SenderAction(nil), f.out.actions...)
	f.out.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(f.out.to("u1")) == 0 {
		t.Error("no reply sent")
	}
}

func TestDispatch_NicknameConversation(t *testing.T) {
	f := newFixture(&users.User{ID: 1, FacebookID: "u1", FirstName: "Ada", State: users.StateNone})
	ctx := context.Background()

	steps := []webhook.Entry{
		postbackEntry("u1", dispatch.PayloadMenuNickname),
		quickReplyEntry("u1", dispatch.PayloadNicknameYes),
		textEntry("u1", "m1", "no way!"),
		textEntry("u1", "m2", "  The   Countess "),
	}
	for i, e := range steps {
		if err := f.d.Dispatch(ctx, e); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	u := f.users.get("u1")
	if u.State != users.StateNone || u.Nickname != "The Countess" {
		t.Errorf("user = state %v nickname %q", u.State, u.Nickname)
	}
	if f.users.saves != 3 {
		t.Errorf("saves = %d, want 3 (invalid input is not saved)", f.users.saves)
	}
	if len(f.history.events) != 2 {
		t.Errorf("events persisted = %d, want 2", len(f.history.events))
	}
	if got := f.out.to("u1"); len(got) != 4 || got[3].Summary() != "Your nickname is now The Countess." {
		t.Errorf("replies = %+v", got)
	}
}

func TestDispatch_FeedbackTicket(t *testing.T) {
	f := newFixture(&users.User{ID: 1, FacebookID: "u1", State: users.StateFeedback})

	if err := f.d.Dispatch(context.Background(), textEntry("u1", "m1", "more features please")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.feedback.texts) != 1 || f.feedback.texts[0] != "more features please" {
		t.Errorf("feedback = %v", f.feedback.texts)
	}
	if u := f.users.get("u1"); u.State != users.StateNone {
		t.Errorf("state = %v, want None", u.State)
	}
	got := f.out.to("u1")
	if len(got) != 1 || got[0].Summary() != "Thanks! Your feedback was filed as ticket #0A1B2C3D." {
		t.Errorf("replies = %+v", got)
	}
}

func TestDispatch_FeedbackFailureStillReplies(t *testing.T) {
	f := newFixture(&users.User{ID: 1, FacebookID: "u1", State: users.StateFeedback})
	f.feedback.err = errors.New("db down")

	if err := f.d.Dispatch(context.Background(), textEntry("u1", "m1", "hi")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := f.out.to("u1"); len(got) != 1 || got[0].Summary() == "" {
		t.Errorf("replies = %+v", got)
	}
}

func TestDispatch_UnsupportedMessageShortCircuits(t *testing.T) {
	f := newFixture()
	e := textEntry("u1", "m1", "")

	if err := f.d.Dispatch(context.Background(), e); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.users.byFB) != 0 {
		t.Error("user should not be resolved for a message without text")
	}
	if len(f.history.msgs) != 0 {
		t.Error("message without text should not be persisted")
	}
	if got := f.out.to("u1"); len(got) != 1 {
		t.Errorf("replies = %+v", got)
	}
}

func TestDispatch_EchoIgnored(t *testing.T) {
	f := newFixture()
	e := textEntry("page", "m1", "sent by us")
	e.Messaging[0].Message.IsEcho = true

	if err := f.d.Dispatch(context.Background(), e); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.history.msgs) != 0 || len(f.out.to("page")) != 0 {
		t.Error("echo should be ignored")
	}
}

func TestDispatch_MalformedEntry(t *testing.T) {
	f := newFixture()
	err := f.d.Dispatch(context.Background(), webhook.Entry{ID: "page"})
	if !errors.Is(err, webhook.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestDispatch_AdminBroadcast(t *testing.T) {
	f := newFixture(&users.User{ID: 1, FacebookID: "admin", IsAdmin: true, State: users.StateNone})
	ctx := context.Background()

	if err := f.d.Dispatch(ctx, textEntry("admin", "m1", "@registered Exams start $date")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.bcast.cmds) != 1 || f.bcast.cmds[0].Target.Kind != template.KindRegistered {
		t.Fatalf("broadcasts = %+v", f.bcast.cmds)
	}
	if got := f.out.to("admin"); len(got) != 0 {
		t.Errorf("dispatcher should leave reporting to the broadcaster: %+v", got)
	}

	if err := f.d.Dispatch(ctx, textEntry("admin", "m2", "@nobody hi")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.bcast.cmds) != 1 {
		t.Error("unknown target must not be broadcast")
	}
	if got := f.out.to("admin"); len(got) != 1 {
		t.Errorf("expected a usage reply, got %+v", got)
	}
}

func TestDispatch_NonAdminCannotBroadcast(t *testing.T) {
	f := newFixture(&users.User{ID: 2, FacebookID: "u2", State: users.StateNone})

	if err := f.d.Dispatch(context.Background(), textEntry("u2", "m1", "@all spam")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.bcast.cmds) != 0 {
		t.Error("non-admin text reached the broadcaster")
	}
	if got := f.out.to("u2"); len(got) != 1 || got[0].Summary() != "Sorry, I don't understand that yet." {
		t.Errorf("replies = %+v", got)
	}
}

func TestDispatch_AccountLinking(t *testing.T) {
	f := newFixture(&users.User{ID: 3, FacebookID: "u3", IsRegistered: true})
	f.flows.flows["code-1"] = &linking.Flow{UserID: 3, AuthCode: "code-1"}
	ctx := context.Background()

	linked := webhook.Entry{ID: "page", Messaging: []webhook.Messaging{{
		Sender:         webhook.Party{ID: "u3"},
		Recipient:      webhook.Party{ID: "page"},
		Timestamp:      1,
		AccountLinking: &webhook.AccountLinking{Status: "linked", AuthorizationCode: "code-1"},
	}}}
	if err := f.d.Dispatch(ctx, linked); err != nil {
		t.Fatalf("Dispatch linked: %v", err)
	}
	if _, still := f.flows.flows["code-1"]; still {
		t.Error("flow was not consumed")
	}

	unlinked := webhook.Entry{ID: "page", Messaging: []webhook.Messaging{{
		Sender:         webhook.Party{ID: "u3"},
		Recipient:      webhook.Party{ID: "page"},
		Timestamp:      2,
		AccountLinking: &webhook.AccountLinking{Status: "unlinked"},
	}}}
	if err := f.d.Dispatch(ctx, unlinked); err != nil {
		t.Fatalf("Dispatch unlinked: %v", err)
	}
	if len(f.users.unlinked) != 1 || f.users.unlinked[0] != 3 {
		t.Errorf("unlinked = %v", f.users.unlinked)
	}

	got := f.out.to("u3")
	if len(got) != 2 || got[0].Summary() != "Your USOS account has been linked successfully!" {
		t.Errorf("replies = %+v", got)
	}
}

func TestDispatch_ConcurrentSameSender(t *testing.T) {
	f := newFixture(&users.User{ID: 1, FacebookID: "u1", State: users.StateNone})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.d.Dispatch(context.Background(), postbackEntry("u1", dispatch.PayloadInfo)) //nolint:errcheck
		}()
	}
	wg.Wait()
	if got := f.out.to("u1"); len(got) != 10 {
		t.Errorf("replies = %d, want 10", len(got))
	}
}
