package api

import (
	"encoding/json"
	"io"
)

// SendResult is returned by every send method.
type SendResult struct {
	IDMessage string `json:"idMessage"`
}

// SendMessageRequest sends a text message.
type SendMessageRequest struct {
	ChatID          string `json:"chatId"`
	Message         string `json:"message"`
	QuotedMessageID string `json:"quotedMessageId,omitempty"`
	LinkPreview     *bool  `json:"linkPreview,omitempty"`
	TypingTime      int    `json:"typingTime,omitempty"`
}

// SendFileByUploadRequest uploads a local file. Content takes precedence over
// FilePath when both are set.
type SendFileByUploadRequest struct {
	ChatID          string
	FilePath        string
	Content         io.Reader
	FileName        string
	Caption         string
	QuotedMessageID string
}

// SendFileByURLRequest sends a file the API downloads from URLFile.
type SendFileByURLRequest struct {
	ChatID          string `json:"chatId"`
	URLFile         string `json:"urlFile"`
	FileName        string `json:"fileName"`
	Caption         string `json:"caption,omitempty"`
	QuotedMessageID string `json:"quotedMessageId,omitempty"`
}

// Button is a legacy quick-reply button.
type Button struct {
	ButtonID   string `json:"buttonId"`
	ButtonText string `json:"buttonText"`
}

// SendButtonsRequest sends a message with legacy buttons.
type SendButtonsRequest struct {
	ChatID          string   `json:"chatId"`
	Message         string   `json:"message"`
	Footer          string   `json:"footer,omitempty"`
	Buttons         []Button `json:"buttons"`
	QuotedMessageID string   `json:"quotedMessageId,omitempty"`
}

// Interactive button types. Reply buttons leave Type empty.
const (
	ButtonTypeCopy = "copy"
	ButtonTypeCall = "call"
	ButtonTypeURL  = "url"
)

// InteractiveButton is one button of an interactive message.
type InteractiveButton struct {
	Type        string `json:"type,omitempty"`
	ButtonID    string `json:"buttonId"`
	ButtonText  string `json:"buttonText"`
	CopyCode    string `json:"copyCode,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	URL         string `json:"url,omitempty"`
}

// SendInteractiveButtonsRequest is shared by the action and reply variants.
type SendInteractiveButtonsRequest struct {
	ChatID  string              `json:"chatId"`
	Header  string              `json:"header,omitempty"`
	Body    string              `json:"body"`
	Footer  string              `json:"footer,omitempty"`
	Buttons []InteractiveButton `json:"buttons"`
}

// PollOption is one answer of a poll.
type PollOption struct {
	OptionName string `json:"optionName"`
}

// SendPollRequest sends a poll.
type SendPollRequest struct {
	ChatID          string       `json:"chatId"`
	Message         string       `json:"message"`
	Options         []PollOption `json:"options"`
	MultipleAnswers bool         `json:"multipleAnswers,omitempty"`
	QuotedMessageID string       `json:"quotedMessageId,omitempty"`
}

// SendLocationRequest sends a map location.
type SendLocationRequest struct {
	ChatID          string  `json:"chatId"`
	NameLocation    string  `json:"nameLocation,omitempty"`
	Address         string  `json:"address,omitempty"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	QuotedMessageID string  `json:"quotedMessageId,omitempty"`
}

// Contact is a phone book entry.
type Contact struct {
	PhoneContact int64  `json:"phoneContact"`
	FirstName    string `json:"firstName,omitempty"`
	MiddleName   string `json:"middleName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Company      string `json:"company,omitempty"`
}

// SendContactRequest sends a contact card.
type SendContactRequest struct {
	ChatID          string  `json:"chatId"`
	Contact         Contact `json:"contact"`
	QuotedMessageID string  `json:"quotedMessageId,omitempty"`
}

// Receipt is one entry taken from the notification queue.
type Receipt struct {
	ReceiptID int64           `json:"receiptId"`
	Body      json.RawMessage `json:"body"`
}

// Settings is the account settings document. Webhook switches hold "yes" or "no".
type Settings map[string]any

// Webhook switches toggled by EnableWebhooks.
var WebhookSettings = []string{
	"incomingWebhook",
	"outgoingMessageWebhook",
	"outgoingAPIMessageWebhook",
}

// WebhooksDisabled reports whether every webhook switch is "no".
func (s Settings) WebhooksDisabled() bool {
	for _, key := range WebhookSettings {
		if v, _ := s[key].(string); v != "no" {
			return false
		}
	}
	return true
}

// Instance states reported by getStateInstance.
const (
	StateAuthorized    = "authorized"
	StateNotAuthorized = "notAuthorized"
	StateBlocked       = "blocked"
	StateStarting      = "starting"
)
