package summarizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fachebot/chat-summary-bot/internal/history"
)

// historyProvider 读取会话最近消息（便于测试注入 mock）
type historyProvider interface {
	Recent(chatID int64, count int) []history.Message
}

// Builder 从历史窗口取出消息并组装总结请求
type Builder struct {
	store        historyProvider
	defaultCount int
}

func NewBuilder(store *history.Store, defaultCount int) *Builder {
	return &Builder{
		store:        store,
		defaultCount: defaultCount,
	}
}

// Build 组装指定会话的总结请求
// count <= 0 时使用默认数量；窗口为空时返回 ErrInsufficientHistory
func (b *Builder) Build(chatID int64, count int) (*Request, error) {
	if count <= 0 {
		count = b.defaultCount
	}

	messages := b.store.Recent(chatID, count)
	if len(messages) == 0 {
		return nil, ErrInsufficientHistory
	}

	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		name := msg.SenderName
		if name == "" {
			name = strconv.FormatInt(msg.SenderID, 10)
		}
		sb.WriteString(fmt.Sprintf("%s (%s): %s", name, msg.SentAt.Format("15:04:05"), msg.Text))
	}

	return &Request{
		ChatID:     chatID,
		Transcript: sb.String(),
		Count:      len(messages),
	}, nil
}
