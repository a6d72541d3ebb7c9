package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/chat-summary-bot/internal/archive"
	"github.com/fachebot/chat-summary-bot/internal/config"
	"github.com/fachebot/chat-summary-bot/internal/history"
	"github.com/fachebot/chat-summary-bot/internal/logger"
	"github.com/fachebot/chat-summary-bot/internal/summarizer"

	"github.com/robfig/cron/v3"
)

// triggerSink 接收总结触发事件
type triggerSink interface {
	Trigger(event summarizer.Event)
}

// conversationLister 列出当前有聊天记录的会话
type conversationLister interface {
	Conversations() []int64
}

// archiveCleaner 按时间清理归档的总结
type archiveCleaner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	cron          *cron.Cron
	coordinator   triggerSink
	conversations conversationLister
	archive       archiveCleaner
	config        *config.Summary
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
}

// locUTC UTC 标准时间（UTC）
var locUTC = time.UTC

func NewScheduler(
	coordinator *summarizer.Coordinator,
	store *history.Store,
	archiveStore *archive.Store,
	cfg *config.Summary,
) *Scheduler {
	s := &Scheduler{
		cron:          cron.New(cron.WithLocation(locUTC)),
		coordinator:   coordinator,
		conversations: store,
		config:        cfg,
	}
	if archiveStore != nil {
		s.archive = archiveStore
	}
	return s
}

// Start 启动调度器，未配置 Cron 时不启动
func (s *Scheduler) Start() error {
	if s.config.Cron == "" {
		logger.Infof("[Scheduler] 未配置定时总结，调度器不启动")
		return nil
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	// 注册定时总结任务
	_, err := s.cron.AddFunc(s.config.Cron, s.runScheduledSummary)
	if err != nil {
		return fmt.Errorf("注册定时总结任务失败: %w", err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，定时总结任务: %s", s.config.Cron)

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] 调度器已停止")
}

// runScheduledSummary 对所有有记录的会话触发一次总结（cron 触发）
// 冷却和并发控制由 coordinator 统一处理
func (s *Scheduler) runScheduledSummary() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		logger.Infof("[Scheduler] 任务已取消，退出")
		return
	default:
	}

	chatIDs := s.conversations.Conversations()
	if len(chatIDs) == 0 {
		logger.Infof("[Scheduler] 当前没有活跃会话，跳过定时总结")
		s.cleanupArchive(ctx)
		return
	}

	logger.Infof("[Scheduler] 开始定时总结，共 %d 个会话", len(chatIDs))
	now := time.Now().In(locUTC)
	for _, chatID := range chatIDs {
		select {
		case <-ctx.Done():
			logger.Infof("[Scheduler] 任务已取消，退出")
			return
		default:
		}
		s.coordinator.Trigger(summarizer.Event{
			ChatID:      chatID,
			RequestedAt: now,
			Origin:      summarizer.OriginSchedule,
		})
	}

	s.cleanupArchive(ctx)
}

// cleanupArchive 按保留天数清理归档的总结
func (s *Scheduler) cleanupArchive(ctx context.Context) {
	if s.archive == nil || s.config.RetentionDays <= 0 {
		return
	}

	cutoff := time.Now().In(locUTC).AddDate(0, 0, -s.config.RetentionDays)
	logger.Infof("[Scheduler] 开始清理 %s 之前的归档总结", cutoff.Format("2006-01-02"))
	deleted, err := s.archive.DeleteBefore(ctx, cutoff)
	if err != nil {
		logger.Errorf("[Scheduler] 清理归档失败: %v", err)
		return
	}
	logger.Infof("[Scheduler] 已清理 %d 条归档总结", deleted)
}
