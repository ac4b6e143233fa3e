package event

import (
	"encoding/json"
	"time"
)

// NewTextMessage builds an incoming text message event as the API would
// deliver it, with Raw filled in.
func NewTextMessage(chatID, sender, senderName, text string) *Event {
	ev := &Event{
		Type:      IncomingMessageReceived,
		Timestamp: time.Now().Unix(),
		IDMessage: "LOCAL" + time.Now().Format("150405.000000"),
		SenderData: &SenderData{
			ChatID:     chatID,
			Sender:     sender,
			SenderName: senderName,
		},
		MessageData: &MessageData{
			TypeMessage:     TextMessage,
			TextMessageData: &TextMessageData{TextMessage: text},
		},
	}
	ev.Raw, _ = json.Marshal(ev)
	return ev
}
