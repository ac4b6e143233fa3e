package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"greenbot/pkg/api"
	"greenbot/pkg/api/apitest"
	"greenbot/pkg/event"
	"greenbot/pkg/event/eventtest"
	"greenbot/pkg/filters"
	"greenbot/pkg/notification"
)

func newTestRouter() (*Router, *apitest.Recorder) {
	rec := &apitest.Recorder{}
	return New(rec, nil), rec
}

// counter returns a handler that counts its invocations.
func counter(calls *int) HandlerFunc {
	return func(context.Context, *notification.Notification) error {
		*calls++
		return nil
	}
}

func TestHandlerWithoutFiltersAlwaysExecutes(t *testing.T) {
	calls := 0
	h := NewHandler(counter(&calls))
	n := notification.New(eventtest.Decode(eventtest.Status("read")), nil, nil)

	matched, err := h.Execute(context.Background(), n)
	if !matched || err != nil {
		t.Fatalf("expected match, got %v %v", matched, err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestHandlerExecuteSkipsCallbackWhenFiltersFail(t *testing.T) {
	calls := 0
	h := NewHandler(counter(&calls), filters.TextMessage("bye"))
	n := notification.New(eventtest.Decode(eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "hi")), nil, nil)

	matched, err := h.Execute(context.Background(), n)
	if matched || err != nil || calls != 0 {
		t.Fatalf("expected no match, got %v %v calls=%d", matched, err, calls)
	}
}

func TestScenarioA_TextWithoutFilters(t *testing.T) {
	r, _ := newTestRouter()

	var got string
	r.Message.AddHandler(func(_ context.Context, n *notification.Notification) error {
		got, _ = n.Text()
		return nil
	})

	payload := []byte(`{"typeWebhook":"incomingMessageReceived","messageData":{"typeMessage":"textMessage","textMessageData":{"textMessage":"Hello"}}}`)
	if err := r.RouteRaw(context.Background(), payload); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("expected Hello, got %q", got)
	}
}

func TestScenarioB_CommandDoesNotMatch(t *testing.T) {
	r, _ := newTestRouter()

	calls := 0
	r.Message.AddHandler(counter(&calls), filters.Command("help"))

	payload := []byte(`{"typeWebhook":"incomingMessageReceived","messageData":{"typeMessage":"textMessage","textMessageData":{"textMessage":"Hello"}}}`)
	if err := r.RouteRaw(context.Background(), payload); err != nil {
		t.Fatalf("route: %v", err)
	}
	if calls != 0 {
		t.Fatal("command handler should not fire")
	}
	if m := r.Metrics(); m.Unhandled != 1 {
		t.Fatalf("expected one unhandled event, got %+v", m)
	}
}

func TestScenarioC_StanzaOnPollUpdate(t *testing.T) {
	r, _ := newTestRouter()

	var votes []event.PollVote
	r.PollUpdates.AddHandler(func(_ context.Context, n *notification.Notification) error {
		votes = n.Event.MessageData.PollMessageData.Votes
		return nil
	}, filters.Stanza("s1"))

	payload := []byte(`{
		"typeWebhook": "incomingMessageReceived",
		"senderData": {"chatId": "u1@c.us", "sender": "u1@c.us"},
		"messageData": {
			"typeMessage": "pollUpdateMessage",
			"pollMessageData": {"stanzaId": "s1", "name": "Q", "votes": [{"optionName": "A", "optionVoters": ["u1"]}]}
		}
	}`)
	if err := r.RouteRaw(context.Background(), payload); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(votes) != 1 || votes[0].OptionName != "A" || votes[0].OptionVoters[0] != "u1" {
		t.Fatalf("handler did not see the votes: %+v", votes)
	}
}

func TestScenarioD_ButtonsObserver(t *testing.T) {
	r, _ := newTestRouter()
	ctx := context.Background()

	calls := 0
	r.Buttons.AddHandler(counter(&calls))

	if err := r.RouteRaw(ctx, eventtest.ButtonsResponse("1", "Red")); err != nil {
		t.Fatalf("route: %v", err)
	}
	if calls != 1 {
		t.Fatalf("button reply should fire, calls=%d", calls)
	}

	if err := r.RouteRaw(ctx, eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "Red")); err != nil {
		t.Fatalf("route: %v", err)
	}
	if calls != 1 {
		t.Fatalf("text message should not fire, calls=%d", calls)
	}
}

func TestKindObserverTypeMessageOverride(t *testing.T) {
	r, _ := newTestRouter()

	subset := r.Buttons.AddHandler(counter(new(int)), filters.TypeMessage(event.ListResponseMessage))
	f, _ := subset.Filters().Get(filters.NameTypeMessage)
	if kinds := f.(*filters.TypeMessageFilter).Kinds; len(kinds) != 1 || kinds[0] != event.ListResponseMessage {
		t.Fatalf("subset should be kept, got %v", kinds)
	}

	outside := r.Buttons.AddHandler(counter(new(int)), filters.TypeMessage(event.TextMessage))
	f, _ = outside.Filters().Get(filters.NameTypeMessage)
	if kinds := f.(*filters.TypeMessageFilter).Kinds; len(kinds) != len(ButtonKinds) {
		t.Fatalf("kinds outside the set should be forced, got %v", kinds)
	}

	empty := r.Polls.AddHandler(counter(new(int)), filters.TypeMessage())
	f, _ = empty.Filters().Get(filters.NameTypeMessage)
	if kinds := f.(*filters.TypeMessageFilter).Kinds; len(kinds) != 1 || kinds[0] != event.PollMessage {
		t.Fatalf("empty kinds should be forced, got %v", kinds)
	}

	if got := len(r.Message.Handlers()); got != 3 {
		t.Fatalf("kind observers register on the message observer, got %d handlers", got)
	}
}

func TestPollObservers(t *testing.T) {
	r, _ := newTestRouter()
	ctx := context.Background()

	var fired []string
	r.Polls.AddHandler(func(context.Context, *notification.Notification) error {
		fired = append(fired, "poll")
		return nil
	})
	r.PollUpdates.AddHandler(func(context.Context, *notification.Notification) error {
		fired = append(fired, "update")
		return nil
	})

	r.RouteRaw(ctx, eventtest.PollUpdate("s1"))
	r.RouteRaw(ctx, eventtest.Poll("Color?"))

	if len(fired) != 2 || fired[0] != "update" || fired[1] != "poll" {
		t.Fatalf("unexpected dispatch order %v", fired)
	}
}

func TestFirstMatchWins(t *testing.T) {
	r, _ := newTestRouter()

	var fired []int
	record := func(i int) HandlerFunc {
		return func(context.Context, *notification.Notification) error {
			fired = append(fired, i)
			return nil
		}
	}
	r.Message.AddHandler(record(0), filters.TextMessage("nope"))
	r.Message.AddHandler(record(1), filters.FromChat(eventtest.Chat))
	r.Message.AddHandler(record(2))
	r.Message.AddHandler(record(3), filters.FromChat(eventtest.Chat))

	r.RouteRaw(context.Background(), eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "hi"))

	if len(fired) != 1 || fired[0] != 1 {
		t.Fatalf("expected only handler 1, got %v", fired)
	}
}

func TestDuplicateRegistrationsAreKept(t *testing.T) {
	r, _ := newTestRouter()
	calls := 0
	fn := counter(&calls)

	r.IncomingCall.AddHandler(fn)
	r.IncomingCall.AddHandler(fn)

	if len(r.IncomingCall.Handlers()) != 2 {
		t.Fatal("both registrations should be kept")
	}
	r.RouteRaw(context.Background(), eventtest.Call("x@c.us", "offer"))
	if calls != 1 {
		t.Fatalf("only the first registration runs, calls=%d", calls)
	}
}

func TestCallbackErrorPropagates(t *testing.T) {
	r, _ := newTestRouter()
	boom := errors.New("boom")

	later := 0
	r.Message.AddHandler(func(context.Context, *notification.Notification) error { return boom })
	r.Message.AddHandler(counter(&later))

	err := r.RouteRaw(context.Background(), eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "hi"))
	if err != boom {
		t.Fatalf("expected the callback error unchanged, got %v", err)
	}
	if later != 0 {
		t.Fatal("propagation must stop at the failing handler")
	}
	if m := r.Metrics(); m.Failed != 1 || m.Handled != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestCategoriesReachTheirObservers(t *testing.T) {
	r, _ := newTestRouter()
	ctx := context.Background()

	got := map[event.Category]int{}
	for _, cat := range []event.Category{
		event.IncomingMessageReceived, event.OutgoingMessageReceived, event.OutgoingAPIMessageReceived,
		event.OutgoingMessageStatus, event.IncomingCall,
	} {
		obs, ok := r.Observer(cat)
		if !ok {
			t.Fatalf("no observer for %s", cat)
		}
		obs.AddHandler(func(_ context.Context, n *notification.Notification) error {
			got[n.Category()]++
			return nil
		})
	}

	r.RouteRaw(ctx, eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "in"))
	r.RouteRaw(ctx, eventtest.OutgoingText(event.OutgoingMessageReceived, eventtest.Chat, "out"))
	r.RouteRaw(ctx, eventtest.OutgoingText(event.OutgoingAPIMessageReceived, eventtest.Chat, "api"))
	r.RouteRaw(ctx, eventtest.Status("delivered"))
	r.RouteRaw(ctx, eventtest.Call("x@c.us", "offer"))

	for cat, n := range got {
		if n != 1 {
			t.Errorf("%s dispatched %d times", cat, n)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 categories, got %v", got)
	}
}

func TestUnknownCategoryIsDropped(t *testing.T) {
	r, _ := newTestRouter()
	calls := 0
	r.Message.AddHandler(counter(&calls))

	err := r.RouteRaw(context.Background(), []byte(`{"typeWebhook":"stateInstanceChanged","stateInstance":"authorized"}`))
	if err != nil {
		t.Fatalf("unknown category must not fail: %v", err)
	}
	if calls != 0 {
		t.Fatal("no handler should run")
	}
	if m := r.Metrics(); m.Dropped != 1 || m.Routed != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestMalformedEvent(t *testing.T) {
	r, _ := newTestRouter()

	for _, payload := range []string{`not json`, `{"senderData":{}}`, `{"typeWebhook":""}`} {
		if err := r.RouteRaw(context.Background(), []byte(payload)); !errors.Is(err, event.ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", payload, err)
		}
	}
}

func TestNoHandlersIsNotAnError(t *testing.T) {
	r, _ := newTestRouter()
	if err := r.RouteRaw(context.Background(), eventtest.Status("read")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestHandlersShareStateAcrossEvents(t *testing.T) {
	r, rec := newTestRouter()
	ctx := context.Background()

	r.Message.AddHandler(func(ctx context.Context, n *notification.Notification) error {
		n.Answer(ctx, "What is your name?")
		return n.SetState(ctx, "ask_name")
	}, filters.Command("start"), filters.NoState())

	r.Message.AddHandler(func(ctx context.Context, n *notification.Notification) error {
		name, _ := n.Text()
		n.Answer(ctx, "Hello, "+name)
		return n.DeleteState(ctx)
	}, filters.State("ask_name"))

	r.RouteRaw(ctx, eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "/start"))
	r.RouteRaw(ctx, eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "Neo"))

	calls := rec.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(calls))
	}
	if msg := calls[1].Request.(*api.SendMessageRequest).Message; msg != "Hello, Neo" {
		t.Fatalf("unexpected second answer %q", msg)
	}
	if _, ok, _ := r.Store().Get(ctx, eventtest.Sender); ok {
		t.Fatal("flow should end without state")
	}
}

func TestRouteSerializesDispatch(t *testing.T) {
	r, _ := newTestRouter()

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	r.Message.AddHandler(func(context.Context, *notification.Notification) error {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RouteRaw(context.Background(), eventtest.IncomingText(eventtest.Chat, eventtest.Sender, "hi"))
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected one dispatch at a time, saw %d", maxSeen)
	}
	if m := r.Metrics(); m.Handled != 10 {
		t.Fatalf("expected 10 handled, got %+v", m)
	}
}
