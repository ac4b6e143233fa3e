package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"greenbot/pkg/logger"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Header http.Header
}

type fakeAPI struct {
	t      *testing.T
	mu     sync.Mutex
	reqs   []capturedRequest
	status int
	answer string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.reqs = append(f.reqs, capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
		Header: r.Header.Clone(),
	})
	status, answer := f.status, f.answer
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, answer)
}

func (f *fakeAPI) respond(status int, answer string) {
	f.mu.Lock()
	f.status, f.answer = status, answer
	f.mu.Unlock()
}

func (f *fakeAPI) last() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		f.t.Fatal("no request captured")
	}
	return f.reqs[len(f.reqs)-1]
}

func newTestClient(t *testing.T, answer string) (*Client, *fakeAPI) {
	t.Helper()

	fake := &fakeAPI{t: t, answer: answer}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	log, err := logger.New(&logger.Config{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	client, err := New(log, &Config{
		APIURL:     srv.URL,
		MediaURL:   srv.URL + "/media",
		IDInstance: "1101000001",
		APIToken:   "secret-token",
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client, fake
}

func TestNewRequiresCredentials(t *testing.T) {
	log, _ := logger.New(&logger.Config{Level: "error"})
	if _, err := New(log, &Config{APIURL: "http://x"}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	client, fake := newTestClient(t, `{"idMessage":"BAE5F4886F6F2D05"}`)

	res, err := client.SendMessage(context.Background(), &SendMessageRequest{
		ChatID:          "79001234567@c.us",
		Message:         "hello",
		QuotedMessageID: "Q1",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.IDMessage != "BAE5F4886F6F2D05" {
		t.Fatalf("unexpected id %q", res.IDMessage)
	}

	req := fake.last()
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.Path != "/waInstance1101000001/sendMessage/secret-token" {
		t.Errorf("unexpected path %s", req.Path)
	}

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["chatId"] != "79001234567@c.us" || body["message"] != "hello" || body["quotedMessageId"] != "Q1" {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["linkPreview"]; ok {
		t.Error("unset link preview should be omitted")
	}
}

func TestSendMethodsUseTheirEndpoints(t *testing.T) {
	client, fake := newTestClient(t, `{"idMessage":"X"}`)
	ctx := context.Background()

	cases := []struct {
		method string
		call   func() error
	}{
		{"sendFileByUrl", func() error {
			_, err := client.SendFileByURL(ctx, &SendFileByURLRequest{ChatID: "c", URLFile: "https://x/y.png", FileName: "y.png"})
			return err
		}},
		{"sendButtons", func() error {
			_, err := client.SendButtons(ctx, &SendButtonsRequest{ChatID: "c", Message: "m", Buttons: []Button{{ButtonID: "1", ButtonText: "Red"}}})
			return err
		}},
		{"sendInteractiveButtons", func() error {
			_, err := client.SendInteractiveButtons(ctx, &SendInteractiveButtonsRequest{ChatID: "c", Body: "b"})
			return err
		}},
		{"sendInteractiveButtonsReply", func() error {
			_, err := client.SendInteractiveButtonsReply(ctx, &SendInteractiveButtonsRequest{ChatID: "c", Body: "b"})
			return err
		}},
		{"sendPoll", func() error {
			_, err := client.SendPoll(ctx, &SendPollRequest{ChatID: "c", Message: "q", Options: []PollOption{{OptionName: "a"}, {OptionName: "b"}}})
			return err
		}},
		{"sendLocation", func() error {
			_, err := client.SendLocation(ctx, &SendLocationRequest{ChatID: "c", Latitude: 1.5, Longitude: 2.5})
			return err
		}},
		{"sendContact", func() error {
			_, err := client.SendContact(ctx, &SendContactRequest{ChatID: "c", Contact: Contact{PhoneContact: 79001234567, FirstName: "A"}})
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("call failed: %v", err)
			}
			want := "/waInstance1101000001/" + tc.method + "/secret-token"
			if got := fake.last().Path; got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestSendFileByUploadUsesMediaHost(t *testing.T) {
	client, fake := newTestClient(t, `{"idMessage":"F1"}`)

	_, err := client.SendFileByUpload(context.Background(), &SendFileByUploadRequest{
		ChatID:   "79001234567@c.us",
		Content:  strings.NewReader("file-bytes"),
		FileName: "report.txt",
		Caption:  "see attached",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	req := fake.last()
	if req.Path != "/media/waInstance1101000001/sendFileByUpload/secret-token" {
		t.Fatalf("unexpected path %s", req.Path)
	}
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		t.Fatalf("expected multipart body, got %s", req.Header.Get("Content-Type"))
	}
	body := string(req.Body)
	for _, want := range []string{"file-bytes", "report.txt", "see attached", "79001234567@c.us"} {
		if !strings.Contains(body, want) {
			t.Errorf("multipart body missing %q", want)
		}
	}
}

func TestSendFileByUploadRequiresFile(t *testing.T) {
	client, _ := newTestClient(t, `{}`)
	if _, err := client.SendFileByUpload(context.Background(), &SendFileByUploadRequest{ChatID: "c"}); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}

func TestHTTPErrorMapsToError(t *testing.T) {
	client, fake := newTestClient(t, `{"message":"bad chatId"}`)
	fake.respond(http.StatusBadRequest, `{"message":"bad chatId"}`)

	_, err := client.SendMessage(context.Background(), &SendMessageRequest{ChatID: "bad"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Method != "sendMessage" || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if !strings.Contains(apiErr.Body, "bad chatId") {
		t.Fatalf("body not kept: %q", apiErr.Body)
	}
	if !IsStatus(err, http.StatusBadRequest) {
		t.Fatal("IsStatus should match")
	}
}

func TestReceiveNotification(t *testing.T) {
	client, fake := newTestClient(t, `{"receiptId":42,"body":{"typeWebhook":"incomingMessageReceived"}}`)

	receipt, err := client.ReceiveNotification(context.Background(), 5)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if receipt == nil || receipt.ReceiptID != 42 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if !strings.Contains(string(receipt.Body), "incomingMessageReceived") {
		t.Fatalf("unexpected body %s", receipt.Body)
	}

	req := fake.last()
	if req.Method != http.MethodGet || req.Path != "/waInstance1101000001/receiveNotification/secret-token" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	if req.Query != "receiveTimeout=5" {
		t.Fatalf("unexpected query %q", req.Query)
	}
}

func TestReceiveNotificationEmptyQueue(t *testing.T) {
	client, _ := newTestClient(t, `null`)

	receipt, err := client.ReceiveNotification(context.Background(), 5)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if receipt != nil {
		t.Fatalf("expected nil receipt, got %+v", receipt)
	}
}

func TestDeleteNotification(t *testing.T) {
	client, fake := newTestClient(t, `{"result":true}`)

	if err := client.DeleteNotification(context.Background(), 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	req := fake.last()
	if req.Method != http.MethodDelete || req.Path != "/waInstance1101000001/deleteNotification/secret-token/42" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
}

func TestGetStateInstance(t *testing.T) {
	client, _ := newTestClient(t, `{"stateInstance":"authorized"}`)

	state, err := client.GetStateInstance(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != StateAuthorized {
		t.Fatalf("unexpected state %q", state)
	}
}

type fakeAccount struct {
	settings Settings
	saved    []Settings
}

func (f *fakeAccount) GetSettings(context.Context) (Settings, error) { return f.settings, nil }
func (f *fakeAccount) SetSettings(_ context.Context, s Settings) error {
	f.saved = append(f.saved, s)
	return nil
}
func (f *fakeAccount) GetStateInstance(context.Context) (string, error) { return StateAuthorized, nil }

func TestEnableWebhooks(t *testing.T) {
	off := &fakeAccount{settings: Settings{
		"incomingWebhook":           "no",
		"outgoingMessageWebhook":    "no",
		"outgoingAPIMessageWebhook": "no",
	}}
	changed, err := EnableWebhooks(context.Background(), off)
	if err != nil || !changed {
		t.Fatalf("expected change, got %v %v", changed, err)
	}
	if len(off.saved) != 1 || off.saved[0]["incomingWebhook"] != "yes" || off.saved[0]["outgoingAPIMessageWebhook"] != "yes" {
		t.Fatalf("unexpected saved settings %v", off.saved)
	}

	partial := &fakeAccount{settings: Settings{
		"incomingWebhook":           "yes",
		"outgoingMessageWebhook":    "no",
		"outgoingAPIMessageWebhook": "no",
	}}
	changed, err = EnableWebhooks(context.Background(), partial)
	if err != nil || changed || len(partial.saved) != 0 {
		t.Fatalf("partially enabled settings must be left alone, got %v %v %v", changed, err, partial.saved)
	}
}

func TestSetSettings(t *testing.T) {
	client, fake := newTestClient(t, `{"saveSettings":true}`)

	if err := client.SetSettings(context.Background(), Settings{"delaySendMessagesMilliseconds": 1000}); err != nil {
		t.Fatalf("set settings: %v", err)
	}
	if !strings.Contains(string(fake.last().Body), "delaySendMessagesMilliseconds") {
		t.Fatalf("settings not sent: %s", fake.last().Body)
	}

	fake.respond(http.StatusOK, `{"saveSettings":false}`)
	if err := client.SetSettings(context.Background(), Settings{}); err == nil {
		t.Fatal("expected an error when settings are not saved")
	}
}
