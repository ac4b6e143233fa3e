package notification

import (
	"context"

	"greenbot/pkg/api"
)

// target resolves the chat to answer and the options to apply.
func (n *Notification) target(opts []api.Option) (string, api.Options, string, error) {
	if n.api == nil {
		return "", api.Options{}, "", ErrNoAPI
	}
	chat, ok := n.Chat()
	if !ok {
		return "", api.Options{}, "", ErrNoChat
	}
	o := api.ApplyOptions(opts...)
	var quoted string
	if o.Quote {
		quoted = n.Event.IDMessage
	}
	return chat, o, quoted, nil
}

// Answer sends text to the event's chat.
func (n *Notification) Answer(ctx context.Context, text string, opts ...api.Option) (*api.SendResult, error) {
	chat, o, quoted, err := n.target(opts)
	if err != nil {
		return nil, err
	}
	return n.api.SendMessage(ctx, &api.SendMessageRequest{
		ChatID:          chat,
		Message:         text,
		QuotedMessageID: quoted,
		LinkPreview:     o.LinkPreview,
		TypingTime:      o.TypingTime,
	})
}

// AnswerWithFile uploads a local file to the event's chat.
func (n *Notification) AnswerWithFile(ctx context.Context, path, fileName, caption string, opts ...api.Option) (*api.SendResult, error) {
	chat, _, quoted, err := n.target(opts)
	if err != nil {
		return nil, err
	}
	return n.api.SendFileByUpload(ctx, &api.SendFileByUploadRequest{
		ChatID:          chat,
		FilePath:        path,
		FileName:        fileName,
		Caption:         caption,
		QuotedMessageID: quoted,
	})
}

// AnswerWithFileByURL sends a file hosted at url.
func (n *Notification) AnswerWithFileByURL(ctx context.Context, url, fileName, caption string, opts ...api.Option) (*api.SendResult, error) {
	chat, _, quoted, err := n.target(opts)
	if err != nil {
		return nil, err
	}
	return n.api.SendFileByURL(ctx, &api.SendFileByURLRequest{
		ChatID:          chat,
		URLFile:         url,
		FileName:        fileName,
		Caption:         caption,
		QuotedMessageID: quoted,
	})
}

func (n *Notification) AnswerButtons(ctx context.Context, text string, buttons []api.Button, footer string, opts ...api.Option) (*api.SendResult, error) {
	chat, _, quoted, err := n.target(opts)
	if err != nil {
		return nil, err
	}
	return n.api.SendButtons(ctx, &api.SendButtonsRequest{
		ChatID:          chat,
		Message:         text,
		Footer:          footer,
		Buttons:         buttons,
		QuotedMessageID: quoted,
	})
}

// AnswerInteractiveButtons sends call, url or copy buttons.
func (n *Notification) AnswerInteractiveButtons(ctx context.Context, body string, buttons []api.InteractiveButton, header, footer string) (*api.SendResult, error) {
	chat, _, _, err := n.target(nil)
	if err != nil {
		return nil, err
	}
	return n.api.SendInteractiveButtons(ctx, &api.SendInteractiveButtonsRequest{
		ChatID:  chat,
		Header:  header,
		Body:    body,
		Footer:  footer,
		Buttons: buttons,
	})
}

// AnswerInteractiveButtonsReply sends quick-reply buttons.
func (n *Notification) AnswerInteractiveButtonsReply(ctx context.Context, body string, buttons []api.InteractiveButton, header, footer string) (*api.SendResult, error) {
	chat, _, _, err := n.target(nil)
	if err != nil {
		return nil, err
	}
	return n.api.SendInteractiveButtonsReply(ctx, &api.SendInteractiveButtonsRequest{
		ChatID:  chat,
		Header:  header,
		Body:    body,
		Footer:  footer,
		Buttons: buttons,
	})
}

func (n *Notification) AnswerPoll(ctx context.Context, question string, options []string, multipleAnswers bool, opts ...api.Option) (*api.SendResult, error) {
	chat, _, quoted, err := n.target(opts)
	if err != nil {
		return nil, err
	}
	pollOptions := make([]api.PollOption, 0, len(options))
	for _, opt := range options {
		pollOptions = append(pollOptions, api.PollOption{OptionName: opt})
	}
	return n.api.SendPoll(ctx, &api.SendPollRequest{
		ChatID:          chat,
		Message:         question,
		Options:         pollOptions,
		MultipleAnswers: multipleAnswers,
		QuotedMessageID: quoted,
	})
}

func (n *Notification) AnswerLocation(ctx context.Context, name, address string, latitude, longitude float64, opts ...api.Option) (*api.SendResult, error) {
	chat, _, quoted, err := n.target(opts)
	if err != nil {
		return nil, err
	}
	return n.api.SendLocation(ctx, &api.SendLocationRequest{
		ChatID:          chat,
		NameLocation:    name,
		Address:         address,
		Latitude:        latitude,
		Longitude:       longitude,
		QuotedMessageID: quoted,
	})
}

func (n *Notification) AnswerContact(ctx context.Context, contact api.Contact, opts ...api.Option) (*api.SendResult, error) {
	chat, _, quoted, err := n.target(opts)
	if err != nil {
		return nil, err
	}
	return n.api.SendContact(ctx, &api.SendContactRequest{
		ChatID:          chat,
		Contact:         contact,
		QuotedMessageID: quoted,
	})
}
