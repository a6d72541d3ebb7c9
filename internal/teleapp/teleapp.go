package teleapp

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fachebot/chat-summary-bot/internal/history"
	"github.com/fachebot/chat-summary-bot/internal/logger"
	"github.com/fachebot/chat-summary-bot/internal/summarizer"
	"github.com/fachebot/chat-summary-bot/internal/svc"

	"github.com/zelenin/go-tdlib/client"
)

type TeleApp struct {
	svcCtx      *svc.ServiceContext
	coordinator *summarizer.Coordinator
	user        *client.User
	tdClient    *client.Client
	listener    *client.Listener
	parameters  *client.SetTdlibParametersRequest
	usersMu     sync.RWMutex
	usersCache  map[int64]*client.User
	chatsMu     sync.RWMutex
	chatsCache  map[int64]*client.Chat
	ctx         context.Context
	cancel      context.CancelFunc
	ctxMu       sync.Mutex
}

func NewApp(svcCtx *svc.ServiceContext, apiId int32, apiHash, dataDir string) *TeleApp {
	_, err := client.SetLogVerbosityLevel(&client.SetLogVerbosityLevelRequest{
		NewVerbosityLevel: 1,
	})
	if err != nil {
		logger.Fatalf("[TeleApp] 设置日志级别错误, %s", err)
	}

	parameters := &client.SetTdlibParametersRequest{
		UseTestDc:           false,
		DatabaseDirectory:   filepath.Join(dataDir, ".tdlib", "database"),
		FilesDirectory:      filepath.Join(dataDir, ".tdlib", "files"),
		UseFileDatabase:     true,
		UseChatInfoDatabase: true,
		UseMessageDatabase:  true,
		UseSecretChats:      false,
		ApiId:               apiId,
		ApiHash:             apiHash,
		SystemLanguageCode:  "en",
		DeviceModel:         "Server",
		SystemVersion:       "1.0.0",
		ApplicationVersion:  "1.0.0",
	}

	app := &TeleApp{
		svcCtx:     svcCtx,
		parameters: parameters,
		chatsCache: make(map[int64]*client.Chat),
		usersCache: make(map[int64]*client.User),
	}
	return app
}

func (app *TeleApp) Login(options ...client.Option) (*client.User, error) {
	if app.user != nil {
		return app.user, nil
	}

	authorizer := client.ClientAuthorizer(app.parameters)
	go client.CliInteractor(authorizer)

	tdlibClient, err := client.NewClient(authorizer, options...)
	if err != nil {
		return nil, err
	}

	me, err := tdlibClient.GetMe()
	if err != nil {
		return nil, err
	}

	app.user = me
	app.tdClient = tdlibClient

	chats, err := app.tdClient.GetChats(&client.GetChatsRequest{Limit: 100})
	if err != nil {
		logger.Warnf("[TeleApp] 获取聊天列表失败: %v", err)
	} else {
		for _, chatId := range chats.ChatIds {
			chat, err := app.tdClient.GetChat(&client.GetChatRequest{ChatId: chatId})
			if err != nil {
				logger.Warnf("[TeleApp] 获取聊天信息失败, id: %d, %v", chatId, err)
				continue
			}
			logger.Infof("[TeleApp] 聊天列表: %s[%d]", chat.Title, chat.Id)
		}
	}

	return me, nil
}

// Start 开始接收消息更新，命令触发交给 coordinator 处理
func (app *TeleApp) Start(coordinator *summarizer.Coordinator) {
	app.coordinator = coordinator

	listener := app.tdClient.GetListener()
	app.listener = listener

	app.ctxMu.Lock()
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.ctxMu.Unlock()

	go app.getUpdates(listener)
}

func (app *TeleApp) Client() *client.Client {
	return app.tdClient
}

func (app *TeleApp) Close() error {
	if app.tdClient == nil {
		return nil
	}

	app.ctxMu.Lock()
	if app.cancel != nil {
		app.cancel()
	}
	app.ctxMu.Unlock()

	if app.listener != nil {
		app.listener.Close()
	}

	_, err := app.tdClient.Close()
	return err
}

func (app *TeleApp) getChat(chatId int64) (*client.Chat, error) {
	// 先尝试读锁读取缓存
	app.chatsMu.RLock()
	chat, ok := app.chatsCache[chatId]
	app.chatsMu.RUnlock()
	if ok {
		return chat, nil
	}

	// 缓存未命中，获取数据
	chat, err := app.tdClient.GetChat(&client.GetChatRequest{ChatId: chatId})
	if err != nil {
		return nil, err
	}

	// 写锁更新缓存
	app.chatsMu.Lock()
	app.chatsCache[chatId] = chat
	app.chatsMu.Unlock()
	return chat, nil
}

func (app *TeleApp) getUser(userId int64) (*client.User, error) {
	// 先尝试读锁读取缓存
	app.usersMu.RLock()
	user, ok := app.usersCache[userId]
	app.usersMu.RUnlock()
	if ok {
		return user, nil
	}

	// 缓存未命中，获取数据
	user, err := app.tdClient.GetUser(&client.GetUserRequest{UserId: userId})
	if err != nil {
		return nil, err
	}

	// 写锁更新缓存
	app.usersMu.Lock()
	app.usersCache[userId] = user
	app.usersMu.Unlock()
	return user, nil
}

func (app *TeleApp) getUpdates(listener *client.Listener) {
	app.ctxMu.Lock()
	ctx := app.ctx
	app.ctxMu.Unlock()

	for listener.IsActive() {
		select {
		case <-ctx.Done():
			logger.Infof("[TeleApp] 更新循环已取消，退出")
			return
		case update := <-listener.Updates:
			if update.GetType() != "updateNewMessage" {
				continue
			}

			// 仅处理文本消息
			updateNewMessage := update.(*client.UpdateNewMessage)
			message := updateNewMessage.Message
			if message.Content.MessageContentType() != "messageText" {
				continue
			}

			text := message.Content.(*client.MessageText)
			if text.Text == nil || text.Text.Text == "" {
				continue
			}

			// 跳过自己发出的消息，总结回复本身包含命令关键词，不跳过会循环触发
			if message.IsOutgoing {
				continue
			}

			if !app.svcCtx.Config.Summary.Enable {
				continue
			}

			// 获取来源Chat信息
			chat, err := app.getChat(message.ChatId)
			if err != nil {
				logger.Warnf("[TeleApp] 获取聊天信息失败, id: %d, %v", message.ChatId, err)
				continue
			}

			logger.Debugf("[TeleApp] 接收消息: %s[%d] -> %s", chat.Title, chat.Id, text.Text.Text)

			// 过滤密聊
			if chat.Type.ChatTypeType() == client.TypeChatTypeSecret {
				continue
			}

			// 获取发送者信息
			senderID := int64(0)
			var senderName string

			if message.SenderId != nil {
				switch sender := message.SenderId.(type) {
				case *client.MessageSenderUser:
					senderID = sender.UserId
					user, err := app.getUser(sender.UserId)
					if err != nil {
						logger.Warnf("[TeleApp] 获取用户信息失败, id: %d, %v", sender.UserId, err)
						continue
					}
					senderName = user.FirstName
					if user.LastName != "" {
						senderName += " " + user.LastName
					}
				case *client.MessageSenderChat:
					senderID = sender.ChatId
					senderName = chat.Title
				}
			}

			// 记录到会话消息窗口
			app.svcCtx.History.Append(history.Message{
				MessageID:  message.Id,
				ChatID:     message.ChatId,
				SenderID:   senderID,
				SenderName: senderName,
				Text:       text.Text.Text,
				SentAt:     time.Unix(int64(message.Date), 0),
			})

			// 检查是否为总结命令
			count, ok := summarizer.ParseCommand(text.Text.Text, app.svcCtx.Config.Summary.Commands)
			if !ok {
				continue
			}

			logger.Infof("[TeleApp] 收到总结命令: %s[%d] -> %s", chat.Title, chat.Id, text.Text.Text)
			app.coordinator.Trigger(summarizer.Event{
				ChatID:      message.ChatId,
				RequestedAt: time.Now(),
				Count:       count,
				Origin:      summarizer.OriginCommand,
			})
		}
	}
}
