// Thin client over the Telegram Bot API for the handful of methods the webhook
// pipeline needs - sending replies and fetching photo bytes. Anything heavier
// (long polling, media groups) is out of scope for this service.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eensymachines/qrbot/models"
	log "github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	httpTimeout    = 10 * time.Second
)

// SendOpts are the optional knobs on sendMessage / sendContact.
// Zero value sends a plain standalone message.
type SendOpts struct {
	ParseMode string // "Markdown", "HTML" or empty for plain text
	ReplyTo   string // message_id to reply to, empty for no reply threading
	VCard     string // raw vcard payload attached to sendContact, ignored by sendMessage
}

// BotAPI is what the dispatch pipeline consumes, lets the tests swap in a recorder.
type BotAPI interface {
	SendMessage(ctx context.Context, chatID, text string, opts SendOpts) error
	SendContact(ctx context.Context, chatID, phone, name string, opts SendOpts) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// envelope every Bot API response comes wrapped in
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Client is a token bound Bot API client. The http.Client is shared across all
// bots of the process for connection reuse - construct that once at startup.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewClient(token string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: httpTimeout}
	}
	return &Client{token: token, baseURL: defaultBaseURL, client: httpc}
}

// WithBaseURL overrides the Bot API base URL (for testing).
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// postForm : all Bot API mutations are form posts, responses share the same envelope
func (c *Client) postForm(ctx context.Context, method string, form url.Values) (*apiResponse, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		log.WithFields(log.Fields{
			"method": method,
			"err":    err,
		}).Debug("error making http request to telegram server, check internet connection")
		return nil, fmt.Errorf("failed to send %s to Telegram server: %w", method, err)
	}
	defer resp.Body.Close()
	byt, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading the %s response body: %w", method, err)
	}
	result := &apiResponse{}
	if err := json.Unmarshal(byt, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s response from server: %w", method, err)
	}
	if !result.OK {
		log.WithFields(log.Fields{
			"method":      method,
			"status_code": resp.StatusCode,
			"description": result.Description,
		}).Debug("unfavorable response from the telegram server")
		return nil, fmt.Errorf("telegram server refused %s: %s", method, result.Description)
	}
	return result, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts SendOpts) error {
	form := url.Values{
		"chat_id": {chatID},
		"text":    {text},
	}
	if opts.ParseMode != "" {
		form.Set("parse_mode", opts.ParseMode)
	}
	if opts.ReplyTo != "" {
		form.Set("reply_to_message_id", opts.ReplyTo)
	}
	_, err := c.postForm(ctx, "sendMessage", form)
	return err
}

func (c *Client) SendContact(ctx context.Context, chatID, phone, name string, opts SendOpts) error {
	form := url.Values{
		"chat_id":      {chatID},
		"phone_number": {phone},
		"first_name":   {name},
	}
	if opts.VCard != "" {
		form.Set("vcard", opts.VCard)
	}
	if opts.ReplyTo != "" {
		form.Set("reply_to_message_id", opts.ReplyTo)
	}
	_, err := c.postForm(ctx, "sendContact", form)
	return err
}

// DownloadFile : the two step Telegram file fetch.
// getFile resolves the file_id to a server side path, the actual bytes then come
// from the file download host under that path. Bytes are returned in memory,
// nothing is staged on local disk.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.postForm(ctx, "getFile", url.Values{"file_id": {fileID}})
	if err != nil {
		return nil, err
	}
	f := models.File{}
	if err := json.Unmarshal(resp.Result, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal getFile result: %w", err)
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("getFile result for %s carries no file_path", fileID)
	}
	dlurl := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dlurl, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	dl, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error response downloading file %s: %d", fileID, dl.StatusCode)
	}
	byt, err := io.ReadAll(dl.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading file bytes for %s: %w", fileID, err)
	}
	log.WithFields(log.Fields{
		"file_id": fileID,
		"bytes":   len(byt),
	}).Debug("downloaded photo file from telegram server")
	return byt, nil
}
