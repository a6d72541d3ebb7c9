package notify

import (
	"strings"
	"testing"

	"github.com/fachebot/chat-summary-bot/internal/summarizer"

	"github.com/stretchr/testify/assert"
)

func TestFormatReply(t *testing.T) {
	tests := []struct {
		name   string
		result summarizer.Result
		want   string
	}{
		{
			name:   "成功结果带固定前缀",
			result: summarizer.Result{Succeeded: true, Text: "1️⃣话题一：项目进度"},
			want:   "-----聊天总结-----\n1️⃣话题一：项目进度",
		},
		{
			name:   "记录不足",
			result: summarizer.Result{ErrorKind: summarizer.ErrorKindInsufficientHistory},
			want:   "没有足够的聊天记录可以总结。",
		},
		{
			name:   "超时",
			result: summarizer.Result{ErrorKind: summarizer.ErrorKindTimeout},
			want:   "总结超时，请稍后重试。",
		},
		{
			name:   "网络异常",
			result: summarizer.Result{ErrorKind: summarizer.ErrorKindNetwork},
			want:   "网络异常，总结失败，请稍后重试。",
		},
		{
			name:   "鉴权失败",
			result: summarizer.Result{ErrorKind: summarizer.ErrorKindAuth},
			want:   "总结服务鉴权失败，请联系管理员检查 API Key。",
		},
		{
			name:   "配置无效",
			result: summarizer.Result{ErrorKind: summarizer.ErrorKindConfigInvalid},
			want:   "总结功能暂不可用，请联系管理员检查配置。",
		},
		{
			name:   "服务异常",
			result: summarizer.Result{ErrorKind: summarizer.ErrorKindProvider},
			want:   "总结失败，请稍后重试。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReply(tt.result))
		})
	}
}

func TestSplitMessage_Short(t *testing.T) {
	n := &Notifier{}
	messages := n.splitMessage("一条短消息")
	assert.Equal(t, []string{"一条短消息"}, messages)
}

func TestSplitMessage_LongParagraphs(t *testing.T) {
	n := &Notifier{}
	para := strings.Repeat("这是总结内容。", 100)
	content := para + "\n\n" + para + "\n\n" + para

	messages := n.splitMessage(content)
	assert.GreaterOrEqual(t, len(messages), 2, "超长内容应拆分为多条")
	for i, msg := range messages {
		assert.LessOrEqual(t, len(msg), MaxMessageLength, "第 %d 条消息超长", i+1)
		assert.NotEmpty(t, msg)
	}
}

func TestSplitMessage_SingleHugeParagraph(t *testing.T) {
	n := &Notifier{}
	content := strings.Repeat("句子内容重复多次来构造超长段落。", 400)

	messages := n.splitMessage(content)
	assert.GreaterOrEqual(t, len(messages), 2)
	for _, msg := range messages {
		assert.LessOrEqual(t, len(msg), MaxMessageLength)
	}
}
