// Package eventtest holds webhook payloads for tests.
package eventtest

import (
	"fmt"

	"greenbot/pkg/event"
)

const (
	Chat   = "79001234567@c.us"
	Sender = "79001234567@c.us"
	Group  = "120363043968066561@g.us"
)

// IncomingText is an incomingMessageReceived textMessage payload.
func IncomingText(chat, sender, text string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "incomingMessageReceived",
  "instanceData": {"idInstance": 1101000001, "wid": "79990000000@c.us", "typeInstance": "whatsapp"},
  "timestamp": 1700000000,
  "idMessage": "BAE5F4886F6F2D05",
  "senderData": {"chatId": %q, "chatName": "Neo", "sender": %q, "senderName": "Neo", "senderContactName": "Thomas"},
  "messageData": {"typeMessage": "textMessage", "textMessageData": {"textMessage": %q}}
}`, chat, sender, text))
}

// OutgoingText is an outgoing message of the given category.
func OutgoingText(category event.Category, chat, text string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": %q,
  "idMessage": "OUT1",
  "senderData": {"chatId": %q, "sender": "79990000000@c.us", "senderName": "Bot"},
  "messageData": {"typeMessage": "textMessage", "textMessageData": {"textMessage": %q}}
}`, category, chat, text))
}

// ExtendedText is an incoming extendedTextMessage payload.
func ExtendedText(chat, text string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "incomingMessageReceived",
  "idMessage": "EXT1",
  "senderData": {"chatId": %q, "sender": %q, "senderName": "Neo"},
  "messageData": {"typeMessage": "extendedTextMessage", "extendedTextMessageData": {"text": %q, "description": "", "title": ""}}
}`, chat, chat, text))
}

// Kind is an incoming message of the given kind with no kind payload.
func Kind(kind event.MessageKind) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "incomingMessageReceived",
  "idMessage": "KIND1",
  "senderData": {"chatId": %q, "sender": %q, "senderName": "Neo"},
  "messageData": {"typeMessage": %q}
}`, Chat, Sender, kind))
}

// ButtonsResponse is an incoming legacy button reply.
func ButtonsResponse(buttonID, text string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "incomingMessageReceived",
  "idMessage": "BTN1",
  "senderData": {"chatId": %q, "sender": %q, "senderName": "Neo"},
  "messageData": {
    "typeMessage": "buttonsResponseMessage",
    "buttonsResponseMessage": {"stanzaId": "ST1", "selectedButtonId": %q, "selectedButtonText": %q}
  }
}`, Chat, Sender, buttonID, text))
}

// Poll is an incoming poll.
func Poll(name string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "incomingMessageReceived",
  "idMessage": "POLL1",
  "senderData": {"chatId": %q, "sender": %q, "senderName": "Neo"},
  "messageData": {
    "typeMessage": "pollMessage",
    "pollMessageData": {"name": %q, "options": [{"optionName": "Red"}, {"optionName": "Blue"}], "multipleAnswers": false}
  }
}`, Chat, Sender, name))
}

// PollUpdate is a vote update for the poll with the given stanza id.
func PollUpdate(stanzaID string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "incomingMessageReceived",
  "idMessage": "PU1",
  "senderData": {"chatId": %q, "sender": %q, "senderName": "Neo"},
  "messageData": {
    "typeMessage": "pollUpdateMessage",
    "pollMessageData": {
      "stanzaId": %q,
      "name": "Color?",
      "votes": [{"optionName": "Red", "optionVoters": [%q]}, {"optionName": "Blue", "optionVoters": []}],
      "multipleAnswers": false
    }
  }
}`, Chat, Sender, stanzaID, Sender))
}

// Status is an outgoingMessageStatus payload.
func Status(status string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "outgoingMessageStatus",
  "chatId": %q,
  "idMessage": "OUT1",
  "status": %q,
  "sendByApi": true
}`, Chat, status))
}

// Call is an incomingCall payload.
func Call(from, status string) []byte {
	return []byte(fmt.Sprintf(`{
  "typeWebhook": "incomingCall",
  "from": %q,
  "idMessage": "CALL1",
  "status": %q
}`, from, status))
}

// Decode decodes payload and panics on error.
func Decode(payload []byte) *event.Event {
	ev, err := event.Decode(payload)
	if err != nil {
		panic(err)
	}
	return ev
}
