package notification

import (
	"context"
	"errors"
	"testing"

	"greenbot/pkg/api"
	"greenbot/pkg/api/apitest"
	"greenbot/pkg/event"
	"greenbot/pkg/event/eventtest"
	"greenbot/pkg/state"
)

func newNotification(payload []byte) (*Notification, *apitest.Recorder, *state.MemoryStore) {
	rec := &apitest.Recorder{}
	store := state.NewMemoryStore()
	return New(eventtest.Decode(payload), rec, store), rec, store
}

func TestAccessorsOnIncomingText(t *testing.T) {
	n, _, _ := newNotification(eventtest.IncomingText(eventtest.Group, eventtest.Sender, "hello"))

	if chat, ok := n.Chat(); !ok || chat != eventtest.Group {
		t.Errorf("chat = %q %v", chat, ok)
	}
	if sender, ok := n.Sender(); !ok || sender != eventtest.Sender {
		t.Errorf("sender = %q %v", sender, ok)
	}
	if name, ok := n.SenderName(); !ok || name != "Neo" {
		t.Errorf("sender name = %q %v", name, ok)
	}
	if kind, ok := n.MessageKind(); !ok || kind != event.TextMessage {
		t.Errorf("kind = %q %v", kind, ok)
	}
	if text, ok := n.Text(); !ok || text != "hello" {
		t.Errorf("text = %q %v", text, ok)
	}
	if id, ok := n.MessageID(); !ok || id != "BAE5F4886F6F2D05" {
		t.Errorf("id = %q %v", id, ok)
	}
	if _, ok := n.Status(); ok {
		t.Error("messages have no status")
	}
	if got := n.Get("instanceData.typeInstance").String(); got != "whatsapp" {
		t.Errorf("raw lookup = %q", got)
	}
	if n.Get("no.such.path").Exists() {
		t.Error("missing path should not exist")
	}
}

func TestAccessorsOnStatusEvent(t *testing.T) {
	n, _, _ := newNotification(eventtest.Status("delivered"))

	if _, ok := n.Chat(); ok {
		t.Error("status events have no chat")
	}
	if _, ok := n.Sender(); ok {
		t.Error("status events have no sender")
	}
	if _, ok := n.Text(); ok {
		t.Error("status events have no text")
	}
	if _, ok := n.MessageKind(); ok {
		t.Error("status events have no message kind")
	}
	if status, ok := n.Status(); !ok || status != "delivered" {
		t.Errorf("status = %q %v", status, ok)
	}
}

func TestAccessorsOnCall(t *testing.T) {
	n, _, _ := newNotification(eventtest.Call("79005555555@c.us", "offer"))

	if chat, ok := n.Chat(); !ok || chat != "79005555555@c.us" {
		t.Errorf("chat = %q %v", chat, ok)
	}
	if sender, ok := n.Sender(); !ok || sender != "79005555555@c.us" {
		t.Errorf("sender = %q %v", sender, ok)
	}
	if status, _ := n.Status(); status != "offer" {
		t.Errorf("status = %q", status)
	}
}

func TestSenderNameFallsBackToContactName(t *testing.T) {
	ev := eventtest.Decode(eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "x"))
	ev.SenderData.SenderName = ""
	n := New(ev, nil, nil)

	if name, ok := n.SenderName(); !ok || name != "Thomas" {
		t.Fatalf("expected contact name, got %q %v", name, ok)
	}
}

func TestTextAbsentForNonTextKinds(t *testing.T) {
	for _, kind := range []event.MessageKind{event.ImageMessage, event.LocationMessage, event.PollMessage} {
		n, _, _ := newNotification(eventtest.Kind(kind))
		if _, ok := n.Text(); ok {
			t.Errorf("%s should have no text", kind)
		}
	}

	n, _, _ := newNotification(eventtest.ExtendedText(eventtest.Chat, "https://green-api.com"))
	if text, ok := n.Text(); !ok || text != "https://green-api.com" {
		t.Errorf("extended text = %q %v", text, ok)
	}
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	n, rec, _ := newNotification(eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "hi"))

	res, err := n.Answer(ctx, "hello back", api.WithQuote(), api.WithLinkPreview(false))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.IDMessage == "" {
		t.Error("expected a message id")
	}

	call, _ := rec.Last()
	req := call.Request.(*api.SendMessageRequest)
	if call.Method != "sendMessage" || req.ChatID != eventtest.Chat || req.Message != "hello back" {
		t.Fatalf("unexpected call %+v", call)
	}
	if req.QuotedMessageID != "BAE5F4886F6F2D05" {
		t.Errorf("expected quote of incoming message, got %q", req.QuotedMessageID)
	}
	if req.LinkPreview == nil || *req.LinkPreview {
		t.Error("link preview should be disabled")
	}

	n.Answer(ctx, "plain")
	call, _ = rec.Last()
	if call.Request.(*api.SendMessageRequest).QuotedMessageID != "" {
		t.Error("plain answer must not quote")
	}
}

func TestAnswerWithoutChat(t *testing.T) {
	n, rec, _ := newNotification(eventtest.Status("read"))

	if _, err := n.Answer(context.Background(), "x"); !errors.Is(err, ErrNoChat) {
		t.Fatalf("expected ErrNoChat, got %v", err)
	}
	if _, err := n.AnswerPoll(context.Background(), "q", []string{"a"}, false); !errors.Is(err, ErrNoChat) {
		t.Fatalf("expected ErrNoChat, got %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Fatal("nothing should be sent")
	}

	bare := New(eventtest.Decode(eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "x")), nil, nil)
	if _, err := bare.Answer(context.Background(), "x"); !errors.Is(err, ErrNoAPI) {
		t.Fatalf("expected ErrNoAPI, got %v", err)
	}
}

func TestAnswerHelpersSendToChat(t *testing.T) {
	ctx := context.Background()
	n, rec, _ := newNotification(eventtest.IncomingText(eventtest.Group, eventtest.Sender, "hi"))

	n.AnswerWithFile(ctx, "/tmp/report.pdf", "", "report")
	n.AnswerWithFileByURL(ctx, "https://example.com/a.png", "a.png", "")
	n.AnswerButtons(ctx, "Choose", []api.Button{{ButtonID: "1", ButtonText: "Red"}}, "footer")
	n.AnswerInteractiveButtons(ctx, "body", []api.InteractiveButton{{Type: api.ButtonTypeURL, ButtonID: "1", ButtonText: "Site", URL: "https://green-api.com"}}, "h", "f")
	n.AnswerInteractiveButtonsReply(ctx, "body", []api.InteractiveButton{{ButtonID: "1", ButtonText: "Yes"}}, "", "")
	n.AnswerPoll(ctx, "Color?", []string{"Red", "Blue"}, true)
	n.AnswerLocation(ctx, "Office", "Street 1", 55.75, 37.61)
	n.AnswerContact(ctx, api.Contact{PhoneContact: 79001234567, FirstName: "Neo"})

	want := []string{
		"sendFileByUpload", "sendFileByUrl", "sendButtons", "sendInteractiveButtons",
		"sendInteractiveButtonsReply", "sendPoll", "sendLocation", "sendContact",
	}
	calls := rec.Calls()
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, call := range calls {
		if call.Method != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], call.Method)
		}
		if call.ChatID != eventtest.Group {
			t.Errorf("call %d went to %s", i, call.ChatID)
		}
	}

	poll := calls[5].Request.(*api.SendPollRequest)
	if len(poll.Options) != 2 || poll.Options[1].OptionName != "Blue" || !poll.MultipleAnswers {
		t.Errorf("unexpected poll %+v", poll)
	}
}

func TestStateShortcuts(t *testing.T) {
	ctx := context.Background()
	n, _, store := newNotification(eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "hi"))

	if _, ok, _ := n.State(ctx); ok {
		t.Fatal("expected no state")
	}
	if err := n.SetState(ctx, "login"); err != nil {
		t.Fatalf("set state: %v", err)
	}
	n.UpdateStateData(ctx, map[string]any{"step": 1})
	n.UpdateState(ctx, "password")

	st, ok, _ := store.Get(ctx, eventtest.Sender)
	if !ok || st.Name != "password" || st.Data["step"] != 1 {
		t.Fatalf("unexpected stored state %+v", st)
	}

	data, ok, _ := n.StateData(ctx)
	if !ok || data["step"] != 1 {
		t.Fatalf("unexpected data %v", data)
	}

	n.SetStateData(ctx, map[string]any{"login": "neo"})
	n.DeleteStateData(ctx)
	if _, ok, _ := n.StateData(ctx); ok {
		t.Fatal("data should be gone")
	}

	n.DeleteState(ctx)
	if _, ok, _ := store.Get(ctx, eventtest.Sender); ok {
		t.Fatal("state should be gone")
	}
}

func TestStateShortcutsWithoutSender(t *testing.T) {
	ctx := context.Background()
	n, _, _ := newNotification(eventtest.Status("sent"))

	if st, ok, err := n.State(ctx); st != nil || ok || err != nil {
		t.Fatalf("expected absent state, got %v %v %v", st, ok, err)
	}
	if err := n.SetState(ctx, "x"); !errors.Is(err, ErrNoSender) {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
	if err := n.UpdateStateData(ctx, map[string]any{"a": 1}); !errors.Is(err, ErrNoSender) {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}

	noStore := New(eventtest.Decode(eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "x")), nil, nil)
	if err := noStore.SetState(ctx, "x"); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}
