package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/fachebot/chat-summary-bot/internal/config"
	"github.com/fachebot/chat-summary-bot/internal/summarizer"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockOpenAIClient 模拟 OpenAI 客户端
type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

// newTestClient 创建用于测试的客户端，注入 mock
func newTestClient(cfg *config.LLM, mockClient openAIClientInterface) *Client {
	return newTestClientWithMaxTokens(cfg, mockClient, 0)
}

// newTestClientWithMaxTokens 可指定 maxInputTokens，0 表示使用 cfg.MaxTokens-2000
func newTestClientWithMaxTokens(cfg *config.LLM, mockClient openAIClientInterface, maxInputTokens int) *Client {
	if maxInputTokens <= 0 {
		maxInputTokens = cfg.MaxTokens - 2000
		if maxInputTokens <= 0 {
			maxInputTokens = 6000
		}
	}
	return &Client{
		config:         cfg,
		openaiClient:   mockClient,
		maxInputTokens: maxInputTokens,
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMin int
		wantMax int
	}{
		{"空文本", "", 0, 0},
		{"纯中文", "这是一段中文测试文本", 8, 50},
		{"纯英文", "This is a test message", 4, 30},
		{"中英混合", "Hello 世界 test 测试", 4, 40},
		{"长文本", "这是一段很长的中文文本。" + "重复" + "重复" + "重复" + "重复" + "重复", 20, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimateTokens(tt.text)
			assert.GreaterOrEqual(t, got, tt.wantMin)
			assert.LessOrEqual(t, got, tt.wantMax)
		})
	}
}

func TestSplitTranscript(t *testing.T) {
	tests := []struct {
		name              string
		transcript        string
		maxTokensPerChunk int
		wantChunks        int
	}{
		{
			name:              "短记录不分块",
			transcript:        "张三 (09:30:15): 早上好",
			maxTokensPerChunk: 1000,
			wantChunks:        1,
		},
		{
			name: "长记录按 token 分块",
			transcript: func() string {
				var lines []string
				for i := 0; i < 20; i++ {
					lines = append(lines, "用户 (10:00:00): 这是一条较长的中文测试消息内容")
				}
				return strings.Join(lines, "\n")
			}(),
			maxTokensPerChunk: 50,
			wantChunks:        -1, // -1 表示只校验多块且内容守恒
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitTranscript(tt.transcript, tt.maxTokensPerChunk)
			if tt.wantChunks > 0 {
				assert.Len(t, chunks, tt.wantChunks)
			} else {
				assert.GreaterOrEqual(t, len(chunks), 2, "应拆分为多块")
			}
			assert.Equal(t, tt.transcript, strings.Join(chunks, "\n"), "拼接所有分块应还原原始记录")
		})
	}
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClient(cfg, &mockOpenAIClient{})

	_, err := client.Summarize(context.Background(), 1, "")
	assert.ErrorIs(t, err, summarizer.ErrInsufficientHistory)

	_, err = client.Summarize(context.Background(), 1, "  \n  ")
	assert.ErrorIs(t, err, summarizer.ErrInsufficientHistory)
}

func TestSummarize_Success(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Messages[0].Content == summarizer.SummaryPrompt &&
			strings.Contains(req.Messages[1].Content, "张三 (09:30:15): 早上好")
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "1️⃣话题一：打招呼"}},
		},
	}, nil)

	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClient(cfg, mockAPI)

	result, err := client.Summarize(context.Background(), 1, "张三 (09:30:15): 早上好")
	assert.NoError(t, err)
	assert.Equal(t, "1️⃣话题一：打招呼", result)
	mockAPI.AssertExpectations(t)
}

func TestSummarize_AuthError(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "invalid api key"})

	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClient(cfg, mockAPI)

	_, err := client.Summarize(context.Background(), 1, "聊天记录")
	assert.ErrorIs(t, err, summarizer.ErrAuth)
}

func TestSummarize_ProviderError(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "server error"})

	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClient(cfg, mockAPI)

	_, err := client.Summarize(context.Background(), 1, "聊天记录")
	assert.ErrorIs(t, err, summarizer.ErrProvider)
}

func TestSummarize_NetworkError(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("connection refused"))

	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClient(cfg, mockAPI)

	_, err := client.Summarize(context.Background(), 1, "聊天记录")
	assert.ErrorIs(t, err, summarizer.ErrNetwork)
}

func TestSummarize_EmptyResponse(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{Choices: nil}, nil)

	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClient(cfg, mockAPI)

	_, err := client.Summarize(context.Background(), 1, "聊天记录")
	assert.ErrorIs(t, err, summarizer.ErrProvider)
	assert.Contains(t, err.Error(), "返回空结果")
}

func TestSummarize_TrimsMarkdownCodeBlock(t *testing.T) {
	wrapped := "```markdown\n1️⃣话题一：测试\n```"
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: wrapped}},
			},
		}, nil)

	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClient(cfg, mockAPI)

	result, err := client.Summarize(context.Background(), 1, "聊天记录")
	assert.NoError(t, err)
	assert.Equal(t, "1️⃣话题一：测试", result)
}

func TestSummarize_LongTranscriptChunked(t *testing.T) {
	// 使用极小的 maxInputTokens 强制触发分块
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		// 第一次调用无上一轮总结
		return !strings.Contains(req.Messages[1].Content, "上一轮已有总结")
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "第一段总结"}}},
	}, nil).Once()
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return strings.Contains(req.Messages[1].Content, "上一轮已有总结") &&
			strings.Contains(req.Messages[1].Content, "第一段总结")
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "合并后的完整总结"}}},
	}, nil).Once()

	cfg := &config.LLM{Model: "test", MaxTokens: 10000}
	client := newTestClientWithMaxTokens(cfg, mockAPI, 30) // 很小，强制分块

	transcript := "张三 (09:30:15): 第一条较长的中文消息内容\n李四 (09:31:00): 第二条较长的中文消息内容"
	result, err := client.Summarize(context.Background(), 1, transcript)
	assert.NoError(t, err)
	assert.Equal(t, "合并后的完整总结", result)
	mockAPI.AssertExpectations(t)
}
