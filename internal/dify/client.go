package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fachebot/chat-summary-bot/internal/config"
	"github.com/fachebot/chat-summary-bot/internal/summarizer"
)

type chatMessageRequest struct {
	Inputs           map[string]any `json:"inputs"`
	Query            string         `json:"query"`
	ResponseMode     string         `json:"response_mode"`
	ConversationID   *string        `json:"conversation_id"`
	User             string         `json:"user"`
	Files            []any          `json:"files"`
	AutoGenerateName bool           `json:"auto_generate_name"`
}

type chatMessageResponse struct {
	Answer string `json:"answer"`
}

// Client Dify 总结服务客户端
type Client struct {
	config     *config.Dify
	httpClient *http.Client
}

func NewClient(c *config.Dify) (*Client, error) {
	httpClient := &http.Client{}
	if c.HttpProxy != "" {
		proxyURL, err := url.Parse(c.HttpProxy)
		if err != nil {
			return nil, fmt.Errorf("解析 HttpProxy 失败: %w", err)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &Client{config: c, httpClient: httpClient}, nil
}

// Summarize 调用 Dify chat-messages 接口生成聊天总结
// response_mode 必须是 blocking
func (c *Client) Summarize(ctx context.Context, chatID int64, transcript string) (string, error) {
	payload := chatMessageRequest{
		Inputs:       map[string]any{},
		Query:        summarizer.SummaryPrompt + "\n\n" + transcript,
		ResponseMode: "blocking",
		User:         strconv.FormatInt(chatID, 10),
		Files:        []any{},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", summarizer.ErrProvider, err)
	}

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat-messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", summarizer.ErrProvider, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "", fmt.Errorf("%w: %v", summarizer.ErrTimeout, err)
		case errors.Is(err, context.Canceled):
			return "", err
		default:
			return "", fmt.Errorf("%w: %v", summarizer.ErrNetwork, err)
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", summarizer.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: status: %d, body: %s", summarizer.ErrAuth, resp.StatusCode, data)
		}
		return "", fmt.Errorf("%w: status: %d, body: %s", summarizer.ErrProvider, resp.StatusCode, data)
	}

	var result chatMessageResponse
	if err = json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("%w: 解析响应失败, %v", summarizer.ErrProvider, err)
	}
	if result.Answer == "" {
		return "", fmt.Errorf("%w: 响应缺少 answer 字段", summarizer.ErrProvider)
	}

	return result.Answer, nil
}
