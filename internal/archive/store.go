package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fachebot/chat-summary-bot/internal/summarizer"

	_ "github.com/mattn/go-sqlite3"
)

// Record 一条归档的总结记录
type Record struct {
	ID        int64
	RequestID string
	ChatID    int64
	Content   string
	Succeeded bool
	ErrorKind string
	CreatedAt time.Time
}

// Store 总结结果的 sqlite 归档，定时任务按保留天数清理
type Store struct {
	db *sql.DB
}

// Open 打开或创建归档数据库
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开归档数据库失败: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err = store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL UNIQUE,
	chat_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	succeeded INTEGER NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_chat_created ON summaries(chat_id, created_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化归档表失败: %w", err)
	}
	return nil
}

// Save 归档一条总结结果
func (s *Store) Save(ctx context.Context, result summarizer.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (request_id, chat_id, content, succeeded, error_kind, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		result.RequestID, result.ChatID, result.Text, result.Succeeded, string(result.ErrorKind), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("写入归档失败: %w", err)
	}
	return nil
}

// RecentByChat 查询指定会话最近的归档记录，按时间倒序
func (s *Store) RecentByChat(ctx context.Context, chatID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, chat_id, content, succeeded, error_kind, created_at FROM summaries WHERE chat_id = ? ORDER BY id DESC LIMIT ?`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询归档失败: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		var createdAt int64
		if err = rows.Scan(&r.ID, &r.RequestID, &r.ChatID, &r.Content, &r.Succeeded, &r.ErrorKind, &createdAt); err != nil {
			return nil, fmt.Errorf("读取归档记录失败: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteBefore 删除指定时间之前的归档记录，返回删除的条数
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("清理归档失败: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
