// Package api is a client for the GREEN-API WhatsApp HTTP API.
//
// Every call goes to {apiUrl}/waInstance{idInstance}/{method}/{apiTokenInstance};
// file uploads use the media host instead.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"greenbot/pkg/logger"
	"greenbot/pkg/version"
)

const endpoint = "/waInstance{idInstance}/{method}/{apiTokenInstance}"

// Sender is the outbound capability exposed to handlers.
type Sender interface {
	SendMessage(ctx context.Context, req *SendMessageRequest) (*SendResult, error)
	SendFileByUpload(ctx context.Context, req *SendFileByUploadRequest) (*SendResult, error)
	SendFileByURL(ctx context.Context, req *SendFileByURLRequest) (*SendResult, error)
	SendButtons(ctx context.Context, req *SendButtonsRequest) (*SendResult, error)
	SendInteractiveButtons(ctx context.Context, req *SendInteractiveButtonsRequest) (*SendResult, error)
	SendInteractiveButtonsReply(ctx context.Context, req *SendInteractiveButtonsRequest) (*SendResult, error)
	SendPoll(ctx context.Context, req *SendPollRequest) (*SendResult, error)
	SendLocation(ctx context.Context, req *SendLocationRequest) (*SendResult, error)
	SendContact(ctx context.Context, req *SendContactRequest) (*SendResult, error)
}

// Queue is the inbound notification queue used by the long-poll transport.
type Queue interface {
	// ReceiveNotification waits up to timeoutSeconds and returns nil when
	// the queue stayed empty.
	ReceiveNotification(ctx context.Context, timeoutSeconds int) (*Receipt, error)
	DeleteNotification(ctx context.Context, receiptID int64) error
}

// Account covers instance settings and status.
type Account interface {
	GetSettings(ctx context.Context) (Settings, error)
	SetSettings(ctx context.Context, settings Settings) error
	GetStateInstance(ctx context.Context) (string, error)
}

// Config for the client.
type Config struct {
	APIURL     string
	MediaURL   string
	IDInstance string
	APIToken   string
	Timeout    time.Duration // per call, default 30s
}

// Client implements Sender, Queue and Account.
type Client struct {
	http     *resty.Client
	log      *logger.Logger
	mediaURL string
	timeout  time.Duration
}

// New creates a client.
func New(log *logger.Logger, cfg *Config) (*Client, error) {
	if cfg.IDInstance == "" || cfg.APIToken == "" {
		return nil, ErrNoCredentials
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	mediaURL := cfg.MediaURL
	if mediaURL == "" {
		mediaURL = cfg.APIURL
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetHeader("User-Agent", version.UserAgent()).
		SetPathParams(map[string]string{
			"idInstance":       cfg.IDInstance,
			"apiTokenInstance": cfg.APIToken,
		})

	return &Client{
		http:     httpClient,
		log:      log.Named("api"),
		mediaURL: strings.TrimRight(mediaURL, "/"),
		timeout:  timeout,
	}, nil
}

func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendResult, error) {
	return c.send(ctx, "sendMessage", req)
}

func (c *Client) SendFileByURL(ctx context.Context, req *SendFileByURLRequest) (*SendResult, error) {
	return c.send(ctx, "sendFileByUrl", req)
}

func (c *Client) SendButtons(ctx context.Context, req *SendButtonsRequest) (*SendResult, error) {
	return c.send(ctx, "sendButtons", req)
}

func (c *Client) SendInteractiveButtons(ctx context.Context, req *SendInteractiveButtonsRequest) (*SendResult, error) {
	return c.send(ctx, "sendInteractiveButtons", req)
}

func (c *Client) SendInteractiveButtonsReply(ctx context.Context, req *SendInteractiveButtonsRequest) (*SendResult, error) {
	return c.send(ctx, "sendInteractiveButtonsReply", req)
}

func (c *Client) SendPoll(ctx context.Context, req *SendPollRequest) (*SendResult, error) {
	return c.send(ctx, "sendPoll", req)
}

func (c *Client) SendLocation(ctx context.Context, req *SendLocationRequest) (*SendResult, error) {
	return c.send(ctx, "sendLocation", req)
}

func (c *Client) SendContact(ctx context.Context, req *SendContactRequest) (*SendResult, error) {
	return c.send(ctx, "sendContact", req)
}

// SendFileByUpload posts the file as multipart form data to the media host.
func (c *Client) SendFileByUpload(ctx context.Context, req *SendFileByUploadRequest) (*SendResult, error) {
	if req.Content == nil && req.FilePath == "" {
		return nil, ErrNoFile
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = filepath.Base(req.FilePath)
	}

	form := map[string]string{"chatId": req.ChatID, "fileName": fileName}
	if req.Caption != "" {
		form["caption"] = req.Caption
	}
	if req.QuotedMessageID != "" {
		form["quotedMessageId"] = req.QuotedMessageID
	}

	r := c.http.R().SetFormData(form)
	if req.Content != nil {
		r.SetFileReader("file", fileName, req.Content)
	} else {
		r.SetFile("file", req.FilePath)
	}

	var result SendResult
	if err := c.do(ctx, r, resty.MethodPost, c.mediaURL+endpoint, "sendFileByUpload", &result, c.timeout); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ReceiveNotification(ctx context.Context, timeoutSeconds int) (*Receipt, error) {
	r := c.http.R()
	if timeoutSeconds > 0 {
		r.SetQueryParam("receiveTimeout", strconv.Itoa(timeoutSeconds))
	}

	var receipt *Receipt
	wait := c.timeout + time.Duration(timeoutSeconds)*time.Second
	if err := c.do(ctx, r, resty.MethodGet, endpoint, "receiveNotification", &receipt, wait); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) DeleteNotification(ctx context.Context, receiptID int64) error {
	r := c.http.R().SetPathParam("receiptId", strconv.FormatInt(receiptID, 10))

	var result struct {
		Result bool `json:"result"`
	}
	if err := c.do(ctx, r, resty.MethodDelete, endpoint+"/{receiptId}", "deleteNotification", &result, c.timeout); err != nil {
		return err
	}
	if !result.Result {
		c.log.Debug("Notification already deleted", zap.Int64("receipt_id", receiptID))
	}
	return nil
}

func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	var settings Settings
	if err := c.do(ctx, c.http.R(), resty.MethodGet, endpoint, "getSettings", &settings, c.timeout); err != nil {
		return nil, err
	}
	return settings, nil
}

func (c *Client) SetSettings(ctx context.Context, settings Settings) error {
	var result struct {
		SaveSettings bool `json:"saveSettings"`
	}
	r := c.http.R().SetBody(settings)
	if err := c.do(ctx, r, resty.MethodPost, endpoint, "setSettings", &result, c.timeout); err != nil {
		return err
	}
	if !result.SaveSettings {
		return errors.New("settings were not saved")
	}
	return nil
}

func (c *Client) GetStateInstance(ctx context.Context) (string, error) {
	var result struct {
		StateInstance string `json:"stateInstance"`
	}
	if err := c.do(ctx, c.http.R(), resty.MethodGet, endpoint, "getStateInstance", &result, c.timeout); err != nil {
		return "", err
	}
	return result.StateInstance, nil
}

func (c *Client) send(ctx context.Context, method string, body any) (*SendResult, error) {
	var result SendResult
	r := c.http.R().SetBody(body)
	if err := c.do(ctx, r, resty.MethodPost, endpoint, method, &result, c.timeout); err != nil {
		return nil, err
	}
	c.log.Debug("Message sent", zap.String("method", method), zap.String("id_message", result.IDMessage))
	return &result, nil
}

// do executes r against url and decodes a JSON answer into result.
func (c *Client) do(ctx context.Context, r *resty.Request, httpMethod, url, method string, result any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := r.SetContext(ctx).SetPathParam("method", method).Execute(httpMethod, url)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	if resp.IsError() {
		return &Error{
			Method:     method,
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}

	body := bytes.TrimSpace(resp.Body())
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

// EnableWebhooks switches on incoming and outgoing webhooks when all of them
// are off, and reports whether it changed anything.
func EnableWebhooks(ctx context.Context, account Account) (bool, error) {
	settings, err := account.GetSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("reading settings: %w", err)
	}
	if !settings.WebhooksDisabled() {
		return false, nil
	}

	update := Settings{}
	for _, key := range WebhookSettings {
		update[key] = "yes"
	}
	if err := account.SetSettings(ctx, update); err != nil {
		return false, fmt.Errorf("enabling webhooks: %w", err)
	}
	return true, nil
}
