package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fachebot/chat-summary-bot/internal/config"
	"github.com/fachebot/chat-summary-bot/internal/logger"
	"github.com/fachebot/chat-summary-bot/internal/summarizer"

	"github.com/sashabaranov/go-openai"
)

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client 兼容 OpenAI API 的备用总结服务客户端
type Client struct {
	config         *config.LLM
	openaiClient   openAIClientInterface
	maxInputTokens int
}

// NewClient transport 非 nil 时通过该代理访问 API
func NewClient(cfg *config.LLM, transport *http.Transport) *Client {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL
	if transport != nil {
		openaiConfig.HTTPClient = &http.Client{Transport: transport}
	}

	client := &Client{
		config:         cfg,
		openaiClient:   openai.NewClientWithConfig(openaiConfig),
		maxInputTokens: cfg.MaxTokens - 2000, // 预留 2000 tokens 给 system prompt 和输出
	}

	return client
}

// estimateTokens 估算文本的 token 数量
func estimateTokens(text string) int {
	// 简单估算：中文约 1.5 token/字，英文约 1.3 token/词
	// 这里使用字符数 * 1.2 作为近似值
	chineseChars := 0
	englishWords := 0

	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			chineseChars++
		} else if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			englishWords++
		}
	}

	// 英文词数估算（简单按空格分割）
	words := strings.Fields(text)
	englishWords = len(words)

	// 总 token 估算
	tokens := int(float64(chineseChars)*1.5 + float64(englishWords)*1.3)
	if tokens < len(text)/4 {
		// 如果估算值太小，使用字符数的 1/4 作为下限
		tokens = len(text) / 4
	}

	return tokens
}

// splitTranscript 将聊天记录按行拆分为多个 chunk，每个 chunk 的 token 估算不超过上限
func splitTranscript(transcript string, maxTokensPerChunk int) []string {
	lines := strings.Split(transcript, "\n")
	chunks := make([]string, 0)
	current := make([]string, 0)
	currentTokens := 0

	for _, line := range lines {
		tokens := estimateTokens(line)
		if currentTokens+tokens > maxTokensPerChunk && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			currentTokens = 0
		}
		current = append(current, line)
		currentTokens += tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// Summarize 将聊天记录总结为群聊报告
// 记录过长时拆分为多段，逐段合并出完整总结
func (c *Client) Summarize(ctx context.Context, chatID int64, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", summarizer.ErrInsufficientHistory
	}

	tokens := estimateTokens(transcript)
	if tokens <= c.maxInputTokens {
		return c.summarizeOnce(ctx, transcript, "")
	}

	logger.Infof("[LLM] 聊天记录过长 (%d tokens)，将拆分为多个 chunk 进行总结", tokens)
	chunks := splitTranscript(transcript, c.maxInputTokens)

	var accumulated string
	for i, chunk := range chunks {
		logger.Debugf("[LLM] 处理 chunk %d/%d", i+1, len(chunks))

		summary, err := c.summarizeOnce(ctx, chunk, accumulated)
		if err != nil {
			return "", fmt.Errorf("总结 chunk %d 失败: %w", i+1, err)
		}
		accumulated = summary
	}

	return accumulated, nil
}

// summarizeOnce 执行一次总结请求
// prevSummary 非空时要求模型在已有总结基础上合并新内容
func (c *Client) summarizeOnce(ctx context.Context, chunkContent, prevSummary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var userPrompt string
	if prevSummary != "" {
		userPrompt = "【上一轮已有总结，请在此基础上合并新内容后输出更新后的完整总结】\n\n" +
			"上一轮总结：\n" + prevSummary + "\n\n" +
			"新消息内容：\n" + chunkContent + "\n\n请输出更新后的完整群聊报告。"
	} else {
		userPrompt = "群聊内容：\n" + chunkContent
	}

	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizer.SummaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   4000,
	}

	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: LLM API 返回空结果", summarizer.ErrProvider)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```markdown")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	return content, nil
}

// classifyError 将 OpenAI 客户端错误归入统一的错误类别
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", summarizer.ErrAuth, err)
		}
		return fmt.Errorf("%w: %v", summarizer.ErrProvider, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", summarizer.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", summarizer.ErrNetwork, err)
}
