package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL      = "https://slack.com/api"
	contentType = "application/json; charset=utf-8"
)

// Client is a minimal Slack Web API client: the dispatcher only ever posts
// messages, optionally threaded under an earlier one.
type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(ctx context.Context, logger *zap.Logger, token string) *Client {
	return &Client{
		ctx:    ctx,
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type chatMessage struct {
	Channel  string  `json:"channel"`
	Text     string  `json:"text"`
	Blocks   []Block `json:"blocks,omitempty"`
	ThreadTS string  `json:"thread_ts,omitempty"`
}

type postResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error,omitempty"`
}

// PostMessage posts a message and returns its timestamp, which identifies the
// message for threading follow-ups.
func (c *Client) PostMessage(channel, text string, blocks []Block, threadTS string) (string, error) {
	body, err := json.Marshal(chatMessage{
		Channel:  channel,
		Text:     text,
		Blocks:   blocks,
		ThreadTS: threadTS,
	})
	if err != nil {
		return "", err
	}

	rawURL := fmt.Sprintf("%s/chat.postMessage", c.APIURL)
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("make request", zap.String("url", req.URL.Path))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	var response postResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}

	if !response.OK {
		return "", fmt.Errorf("chat.postMessage: %s", response.Error)
	}

	return response.TS, nil
}
