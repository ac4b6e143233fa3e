// Package apitest provides an in-memory api.Sender for tests and dry runs.
package apitest

import (
	"context"
	"fmt"
	"sync"

	"greenbot/pkg/api"
)

// Call is one recorded send.
type Call struct {
	Method  string
	ChatID  string
	Request any
}

// Recorder records every send instead of performing it. If Err is set, each
// send records the call and then fails with Err. OnSend, when set, observes
// each call as it is recorded.
type Recorder struct {
	Err    error
	OnSend func(Call)

	mu    sync.Mutex
	calls []Call
	next  int
}

var _ api.Sender = (*Recorder)(nil)

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Last returns the most recent call.
func (r *Recorder) Last() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) == 0 {
		return Call{}, false
	}
	return r.calls[len(r.calls)-1], true
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *Recorder) record(method, chatID string, req any) (*api.SendResult, error) {
	call := Call{Method: method, ChatID: chatID, Request: req}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.next++
	id := fmt.Sprintf("TEST%08d", r.next)
	onSend := r.OnSend
	r.mu.Unlock()

	if onSend != nil {
		onSend(call)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &api.SendResult{IDMessage: id}, nil
}

func (r *Recorder) SendMessage(_ context.Context, req *api.SendMessageRequest) (*api.SendResult, error) {
	return r.record("sendMessage", req.ChatID, req)
}

func (r *Recorder) SendFileByUpload(_ context.Context, req *api.SendFileByUploadRequest) (*api.SendResult, error) {
	return r.record("sendFileByUpload", req.ChatID, req)
}

func (r *Recorder) SendFileByURL(_ context.Context, req *api.SendFileByURLRequest) (*api.SendResult, error) {
	return r.record("sendFileByUrl", req.ChatID, req)
}

func (r *Recorder) SendButtons(_ context.Context, req *api.SendButtonsRequest) (*api.SendResult, error) {
	return r.record("sendButtons", req.ChatID, req)
}

func (r *Recorder) SendInteractiveButtons(_ context.Context, req *api.SendInteractiveButtonsRequest) (*api.SendResult, error) {
	return r.record("sendInteractiveButtons", req.ChatID, req)
}

func (r *Recorder) SendInteractiveButtonsReply(_ context.Context, req *api.SendInteractiveButtonsRequest) (*api.SendResult, error) {
	return r.record("sendInteractiveButtonsReply", req.ChatID, req)
}

func (r *Recorder) SendPoll(_ context.Context, req *api.SendPollRequest) (*api.SendResult, error) {
	return r.record("sendPoll", req.ChatID, req)
}

func (r *Recorder) SendLocation(_ context.Context, req *api.SendLocationRequest) (*api.SendResult, error) {
	return r.record("sendLocation", req.ChatID, req)
}

func (r *Recorder) SendContact(_ context.Context, req *api.SendContactRequest) (*api.SendResult, error) {
	return r.record("sendContact", req.ChatID, req)
}
