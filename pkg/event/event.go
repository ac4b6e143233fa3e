// Package event decodes GREEN-API webhook notifications.
//
// An Event is decoded once from the wire payload and is read-only for the
// rest of its dispatch. Fields that a category or message kind does not carry
// are left nil or empty; callers test for presence rather than relying on
// errors.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks payloads that are not JSON objects or lack typeWebhook.
var ErrMalformed = errors.New("malformed event")

// Category is the top-level typeWebhook tag.
type Category string

const (
	IncomingMessageReceived    Category = "incomingMessageReceived"
	OutgoingMessageReceived    Category = "outgoingMessageReceived"
	OutgoingAPIMessageReceived Category = "outgoingAPIMessageReceived"
	OutgoingMessageStatus      Category = "outgoingMessageStatus"
	IncomingCall               Category = "incomingCall"
)

// Known reports whether the router has an observer for c.
func (c Category) Known() bool {
	switch c {
	case IncomingMessageReceived, OutgoingMessageReceived, OutgoingAPIMessageReceived,
		OutgoingMessageStatus, IncomingCall:
		return true
	}
	return false
}

// CarriesMessage reports whether events of this category have messageData and senderData.
func (c Category) CarriesMessage() bool {
	switch c {
	case IncomingMessageReceived, OutgoingMessageReceived, OutgoingAPIMessageReceived:
		return true
	}
	return false
}

// MessageKind is the messageData.typeMessage tag.
type MessageKind string

const (
	TextMessage                 MessageKind = "textMessage"
	ExtendedTextMessage         MessageKind = "extendedTextMessage"
	QuotedMessage               MessageKind = "quotedMessage"
	ImageMessage                MessageKind = "imageMessage"
	VideoMessage                MessageKind = "videoMessage"
	DocumentMessage             MessageKind = "documentMessage"
	AudioMessage                MessageKind = "audioMessage"
	StickerMessage              MessageKind = "stickerMessage"
	LocationMessage             MessageKind = "locationMessage"
	ContactMessage              MessageKind = "contactMessage"
	ContactsArrayMessage        MessageKind = "contactsArrayMessage"
	PollMessage                 MessageKind = "pollMessage"
	PollUpdateMessage           MessageKind = "pollUpdateMessage"
	ButtonsResponseMessage      MessageKind = "buttonsResponseMessage"
	TemplateButtonsReplyMessage MessageKind = "templateButtonsReplyMessage"
	ListResponseMessage         MessageKind = "listResponseMessage"
	InteractiveButtonsResponse  MessageKind = "interactiveButtonsResponse"
	ReactionMessage             MessageKind = "reactionMessage"
)

// HasText reports whether messages of this kind carry a plain text body.
func (k MessageKind) HasText() bool {
	switch k {
	case TextMessage, ExtendedTextMessage, QuotedMessage:
		return true
	}
	return false
}

// Event is one decoded webhook notification.
type Event struct {
	Type         Category      `json:"typeWebhook"`
	InstanceData *InstanceData `json:"instanceData,omitempty"`
	Timestamp    int64         `json:"timestamp,omitempty"`
	IDMessage    string        `json:"idMessage,omitempty"`
	SenderData   *SenderData   `json:"senderData,omitempty"`
	MessageData  *MessageData  `json:"messageData,omitempty"`

	// outgoingMessageStatus
	ChatID    string `json:"chatId,omitempty"`
	Status    string `json:"status,omitempty"`
	SendByAPI bool   `json:"sendByApi,omitempty"`

	// incomingCall
	From string `json:"from,omitempty"`

	// Raw is the payload the event was decoded from.
	Raw json.RawMessage `json:"-"`
}

// InstanceData identifies the receiving instance.
type InstanceData struct {
	IDInstance   int64  `json:"idInstance"`
	Wid          string `json:"wid"`
	TypeInstance string `json:"typeInstance"`
}

// SenderData describes the chat and participant an event came from.
type SenderData struct {
	ChatID            string `json:"chatId"`
	ChatName          string `json:"chatName,omitempty"`
	Sender            string `json:"sender"`
	SenderName        string `json:"senderName,omitempty"`
	SenderContactName string `json:"senderContactName,omitempty"`
}

// MessageData carries the message kind and its kind-specific payload.
type MessageData struct {
	TypeMessage MessageKind `json:"typeMessage"`

	TextMessageData            *TextMessageData            `json:"textMessageData,omitempty"`
	ExtendedTextMessageData    *ExtendedTextMessageData    `json:"extendedTextMessageData,omitempty"`
	QuotedMessage              *QuotedMessageData          `json:"quotedMessage,omitempty"`
	FileMessageData            *FileMessageData            `json:"fileMessageData,omitempty"`
	LocationMessageData        *LocationMessageData        `json:"locationMessageData,omitempty"`
	ContactMessageData         *ContactMessageData         `json:"contactMessageData,omitempty"`
	PollMessageData            *PollMessageData            `json:"pollMessageData,omitempty"`
	ButtonsResponseMessage     *ButtonsResponseData        `json:"buttonsResponseMessage,omitempty"`
	TemplateButtonReplyMessage *TemplateButtonReplyMessage `json:"templateButtonReplyMessage,omitempty"`
	ListResponseMessage        *ListResponseData           `json:"listResponseMessage,omitempty"`
}

type TextMessageData struct {
	TextMessage string `json:"textMessage"`
}

type ExtendedTextMessageData struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`
	StanzaID    string `json:"stanzaId,omitempty"`
	Participant string `json:"participant,omitempty"`
}

// QuotedMessageData is the message a quotedMessage replies to.
type QuotedMessageData struct {
	StanzaID    string      `json:"stanzaId"`
	Participant string      `json:"participant"`
	TypeMessage MessageKind `json:"typeMessage"`
	TextMessage string      `json:"textMessage,omitempty"`
}

type FileMessageData struct {
	DownloadURL string `json:"downloadUrl"`
	Caption     string `json:"caption,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type LocationMessageData struct {
	NameLocation string  `json:"nameLocation,omitempty"`
	Address      string  `json:"address,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

type ContactMessageData struct {
	DisplayName string `json:"displayName"`
	VCard       string `json:"vcard"`
}

// PollMessageData is shared by pollMessage and pollUpdateMessage.
// StanzaID and Votes are only set on updates.
type PollMessageData struct {
	StanzaID        string       `json:"stanzaId,omitempty"`
	Name            string       `json:"name"`
	Options         []PollOption `json:"options,omitempty"`
	Votes           []PollVote   `json:"votes,omitempty"`
	MultipleAnswers bool         `json:"multipleAnswers"`
}

type PollOption struct {
	OptionName string `json:"optionName"`
}

type PollVote struct {
	OptionName   string   `json:"optionName"`
	OptionVoters []string `json:"optionVoters"`
}

type ButtonsResponseData struct {
	StanzaID           string `json:"stanzaId"`
	SelectedButtonID   string `json:"selectedButtonId"`
	SelectedButtonText string `json:"selectedButtonText"`
}

type TemplateButtonReplyMessage struct {
	StanzaID            string `json:"stanzaId"`
	SelectedIndex       int    `json:"selectedIndex"`
	SelectedID          string `json:"selectedId"`
	SelectedDisplayText string `json:"selectedDisplayText"`
}

type ListResponseData struct {
	StanzaID          string `json:"stanzaId"`
	Title             string `json:"title"`
	ListType          int    `json:"listType"`
	SingleSelectReply string `json:"singleSelectReply"`
	SelectedRowID     string `json:"selectedRowId"`
}

// Decode parses a webhook payload. Unknown categories decode successfully;
// a missing typeWebhook is an ErrMalformed.
func Decode(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(string(ev.Type)) == "" {
		return nil, fmt.Errorf("%w: missing typeWebhook", ErrMalformed)
	}
	ev.Raw = append(json.RawMessage(nil), data...)
	return &ev, nil
}

// Kind returns the message kind, or "" when the event has no messageData.
func (e *Event) Kind() MessageKind {
	if e.MessageData == nil {
		return ""
	}
	return e.MessageData.TypeMessage
}

// Text returns the plain text body for text-bearing kinds.
func (e *Event) Text() (string, bool) {
	md := e.MessageData
	if md == nil {
		return "", false
	}

	switch md.TypeMessage {
	case TextMessage:
		if md.TextMessageData != nil {
			return md.TextMessageData.TextMessage, true
		}
	case ExtendedTextMessage, QuotedMessage:
		if md.ExtendedTextMessageData != nil {
			return md.ExtendedTextMessageData.Text, true
		}
	}
	return "", false
}

// PollStanzaID returns the stanza id of the poll a pollUpdateMessage refers to.
func (e *Event) PollStanzaID() (string, bool) {
	if e.Kind() != PollUpdateMessage || e.MessageData.PollMessageData == nil {
		return "", false
	}
	return e.MessageData.PollMessageData.StanzaID, true
}
