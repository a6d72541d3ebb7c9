package summarizer

import (
	"context"
	"sync"
	"time"

	"github.com/fachebot/chat-summary-bot/internal/config"
	"github.com/fachebot/chat-summary-bot/internal/logger"

	"github.com/google/uuid"
)

// Provider 外部总结服务，一次调用对应一次外部请求
type Provider interface {
	Summarize(ctx context.Context, chatID int64, transcript string) (string, error)
}

// Sender 将总结结果或提示文本发回会话
type Sender interface {
	DispatchResult(ctx context.Context, result Result) error
	SendNotice(ctx context.Context, chatID int64, text string) error
}

// Archive 总结结果归档存储
type Archive interface {
	Save(ctx context.Context, result Result) error
}

// 冷却期内重复触发时的提示文案
const (
	noticeInProgress  = "聊天记录正在总结中，请稍候。"
	noticeCoolingDown = "刚刚已经总结过聊天记录，请稍后再试。"
)

// 会话的总结状态，同一会话同时只允许一个进行中的总结
type phase int

const (
	phaseIdle phase = iota
	phasePending
	phaseCooling
)

type convState struct {
	phase       phase
	completedAt time.Time
}

// Coordinator 接收总结触发，为每个会话维护独立的防抖状态机
// 状态迁移: Idle -> Pending (任务启动) -> Cooling (任务完成) -> Idle (冷却期满)
// 冷却期满不依赖定时器，由下一次触发时对照完成时间判定
type Coordinator struct {
	builder        *Builder
	provider       Provider
	sender         Sender
	archive        Archive
	wait           time.Duration
	callTimeout    time.Duration
	notifyOnRepeat bool

	mu     sync.Mutex
	states map[int64]*convState
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

func NewCoordinator(cfg *config.Summary, builder *Builder, provider Provider, sender Sender, archive Archive) *Coordinator {
	callTimeout := time.Duration(cfg.RequestTimeout) * time.Second
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		builder:        builder,
		provider:       provider,
		sender:         sender,
		archive:        archive,
		wait:           time.Duration(cfg.SummaryWaitTime) * time.Second,
		callTimeout:    callTimeout,
		notifyOnRepeat: cfg.NotifyOnRepeat,
		states:         make(map[int64]*convState),
		ctx:            ctx,
		cancel:         cancel,
		now:            time.Now,
	}
}

// Trigger 处理一次总结触发，立即返回，不阻塞调用方
// 同一会话已有任务进行中或仍在冷却期时丢弃本次触发，不同会话互不影响
func (c *Coordinator) Trigger(event Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	state, ok := c.states[event.ChatID]
	if !ok {
		state = &convState{}
		c.states[event.ChatID] = state
	}

	switch state.phase {
	case phasePending:
		c.mu.Unlock()
		logger.Infof("[Coordinator] 会话 %d 已有总结任务进行中，忽略本次触发", event.ChatID)
		c.notifyRepeat(event.ChatID, noticeInProgress)
		return
	case phaseCooling:
		if elapsed := c.now().Sub(state.completedAt); elapsed < c.wait {
			c.mu.Unlock()
			logger.Infof("[Coordinator] 会话 %d 在冷却期内重复触发，忽略本次触发", event.ChatID)
			c.notifyRepeat(event.ChatID, noticeCoolingDown)
			return
		}
	}

	state.phase = phasePending
	requestID := uuid.NewString()
	c.wg.Add(1)
	c.mu.Unlock()

	logger.Infof("[Coordinator] 会话 %d 触发总结: requestID=%s, origin=%s, count=%d",
		event.ChatID, requestID, event.Origin, event.Count)
	go c.run(requestID, event)
}

// Close 取消进行中的总结任务并等待全部退出
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	logger.Infof("[Coordinator] 总结协调器已停止")
}

// run 执行一次完整的总结流程：组装请求、调用服务、发送结果、归档
func (c *Coordinator) run(requestID string, event Event) {
	defer c.wg.Done()

	result := c.execute(requestID, event)

	c.mu.Lock()
	state := c.states[event.ChatID]
	state.phase = phaseCooling
	state.completedAt = c.now()
	c.mu.Unlock()

	// 服务正在关闭时丢弃结果，不再发送
	if c.ctx.Err() != nil {
		logger.Infof("[Coordinator] 服务正在关闭，丢弃会话 %d 的总结结果", event.ChatID)
		return
	}

	if err := c.sender.DispatchResult(c.ctx, result); err != nil {
		logger.Errorf("[Coordinator] 发送总结结果失败: chatID=%d, requestID=%s, %v", event.ChatID, requestID, err)
	}

	if c.archive != nil {
		if err := c.archive.Save(c.ctx, result); err != nil {
			logger.Warnf("[Coordinator] 归档总结结果失败: requestID=%s, %v", requestID, err)
		}
	}
}

// execute 组装请求并调用总结服务，任何失败都转换为带错误类别的 Result
// 窗口为空或服务未配置时不会发起外部调用
func (c *Coordinator) execute(requestID string, event Event) Result {
	result := Result{RequestID: requestID, ChatID: event.ChatID}

	request, err := c.builder.Build(event.ChatID, event.Count)
	if err != nil {
		logger.Infof("[Coordinator] 会话 %d 无法组装总结请求: %v", event.ChatID, err)
		result.ErrorKind = KindOf(err)
		return result
	}

	if c.provider == nil {
		logger.Warnf("[Coordinator] 总结服务未配置，会话 %d 的请求无法处理", event.ChatID)
		result.ErrorKind = ErrorKindConfigInvalid
		return result
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.callTimeout)
	defer cancel()

	text, err := c.provider.Summarize(ctx, event.ChatID, request.Transcript)
	if err != nil {
		logger.Errorf("[Coordinator] 会话 %d 总结失败: requestID=%s, %v", event.ChatID, requestID, err)
		result.ErrorKind = KindOf(err)
		return result
	}

	result.Succeeded = true
	result.Text = text
	logger.Infof("[Coordinator] 会话 %d 总结完成: requestID=%s, 纳入 %d 条消息", event.ChatID, requestID, request.Count)
	return result
}

// notifyRepeat 冷却期内重复触发时按配置回复提示，默认静默丢弃
func (c *Coordinator) notifyRepeat(chatID int64, text string) {
	if !c.notifyOnRepeat {
		return
	}
	if err := c.sender.SendNotice(c.ctx, chatID, text); err != nil {
		logger.Warnf("[Coordinator] 发送重复触发提示失败: chatID=%d, %v", chatID, err)
	}
}
