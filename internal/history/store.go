package history

import (
	"sync"
	"time"
)

// Message 单条聊天消息，记录后不再修改
type Message struct {
	MessageID  int64
	ChatID     int64
	SenderID   int64
	SenderName string
	Text       string
	SentAt     time.Time
}

// Store 按会话维护最近消息的内存窗口
// 每个会话最多保留 capacity 条消息，写满后淘汰最早的一条
type Store struct {
	mu       sync.RWMutex
	capacity int
	windows  map[int64][]Message
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 100
	}
	return &Store{
		capacity: capacity,
		windows:  make(map[int64][]Message),
	}
}

// Append 将消息按到达顺序记录到所属会话的窗口
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[msg.ChatID], msg)
	if len(window) > s.capacity {
		window = window[len(window)-s.capacity:]
	}
	s.windows[msg.ChatID] = window
}

// Recent 返回会话最近的 min(count, 现有条数) 条消息，按时间先后排列
// 未知会话或 count <= 0 返回空，返回的切片是副本
func (s *Store) Recent(chatID int64, count int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.windows[chatID]
	if count <= 0 {
		return nil
	}
	if count > len(window) {
		count = len(window)
	}
	if count == 0 {
		return nil
	}

	result := make([]Message, count)
	copy(result, window[len(window)-count:])
	return result
}

// Conversations 返回当前持有消息的会话 ID 列表
func (s *Store) Conversations() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.windows))
	for id, window := range s.windows {
		if len(window) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len 返回会话当前持有的消息条数
func (s *Store) Len(chatID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows[chatID])
}
