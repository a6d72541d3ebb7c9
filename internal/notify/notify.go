package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/fachebot/chat-summary-bot/internal/logger"
	"github.com/fachebot/chat-summary-bot/internal/summarizer"

	"github.com/zelenin/go-tdlib/client"
)

const (
	MaxMessageLength = 5000 // Telegram 消息最大长度
)

// replyPrefix 总结成功时回复的固定前缀
const replyPrefix = "-----聊天总结-----\n"

type Notifier struct {
	tdClient *client.Client
}

func NewNotifier(tdClient *client.Client) *Notifier {
	return &Notifier{
		tdClient: tdClient,
	}
}

// FormatReply 将总结结果渲染为回复文本
// 失败时按错误类别返回固定的提示语
func FormatReply(result summarizer.Result) string {
	if result.Succeeded {
		return replyPrefix + result.Text
	}

	switch result.ErrorKind {
	case summarizer.ErrorKindInsufficientHistory:
		return "没有足够的聊天记录可以总结。"
	case summarizer.ErrorKindTimeout:
		return "总结超时，请稍后重试。"
	case summarizer.ErrorKindNetwork:
		return "网络异常，总结失败，请稍后重试。"
	case summarizer.ErrorKindAuth:
		return "总结服务鉴权失败，请联系管理员检查 API Key。"
	case summarizer.ErrorKindConfigInvalid:
		return "总结功能暂不可用，请联系管理员检查配置。"
	default:
		return "总结失败，请稍后重试。"
	}
}

// DispatchResult 将总结结果回复到所属会话
func (n *Notifier) DispatchResult(ctx context.Context, result summarizer.Result) error {
	return n.sendText(ctx, result.ChatID, FormatReply(result))
}

// SendNotice 发送一条固定提示到指定会话
func (n *Notifier) SendNotice(ctx context.Context, chatID int64, text string) error {
	return n.sendText(ctx, chatID, text)
}

func (n *Notifier) sendText(ctx context.Context, chatID int64, content string) error {
	if content == "" {
		return nil
	}

	messages := n.splitMessage(content)

	for _, msg := range messages {
		_, err := n.tdClient.SendMessage(&client.SendMessageRequest{
			ChatId: chatID,
			InputMessageContent: &client.InputMessageText{
				Text: &client.FormattedText{Text: msg},
			},
		})
		if err != nil {
			return fmt.Errorf("发送消息到会话 %d 失败: %w", chatID, err)
		}
		logger.Infof("[Notify] 已发送消息到会话 %d", chatID)
	}

	return nil
}

// splitMessage 将消息按长度拆分为多条
func (n *Notifier) splitMessage(content string) []string {
	if len(content) <= MaxMessageLength {
		return []string{content}
	}

	// 按段落拆分
	paragraphs := strings.Split(content, "\n\n")
	if len(paragraphs) == 1 {
		// 如果没有段落分隔，按换行拆分
		paragraphs = strings.Split(content, "\n")
	}

	messages := make([]string, 0)
	currentMsg := ""

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		testMsg := currentMsg
		if testMsg != "" {
			testMsg += "\n\n"
		}
		testMsg += para

		if len(testMsg) <= MaxMessageLength {
			currentMsg = testMsg
		} else {
			// 当前消息已满，保存并开始新消息
			if currentMsg != "" {
				messages = append(messages, currentMsg)
			}
			// 如果单个段落就超过长度，需要进一步拆分
			if len(para) > MaxMessageLength {
				// 按句子拆分
				sentences := strings.Split(para, "。")
				for _, sentence := range sentences {
					sentence = strings.TrimSpace(sentence)
					if sentence == "" {
						continue
					}
					if len(currentMsg)+len(sentence)+2 > MaxMessageLength {
						if currentMsg != "" {
							messages = append(messages, currentMsg)
							currentMsg = ""
						}
					}
					if currentMsg != "" {
						currentMsg += "。"
					}
					currentMsg += sentence
				}
			} else {
				currentMsg = para
			}
		}
	}

	if currentMsg != "" {
		messages = append(messages, currentMsg)
	}

	return messages
}
