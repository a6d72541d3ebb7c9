package summarizer

import (
	"context"
	"errors"
	"time"
)

// 触发来源
const (
	OriginCommand  = "command"
	OriginSchedule = "schedule"
)

// Event 一次总结触发（命令或定时任务）
type Event struct {
	ChatID      int64
	RequestedAt time.Time
	Count       int    // 0 表示使用默认数量
	Origin      string // OriginCommand / OriginSchedule
}

// Request 组装好的总结请求
type Request struct {
	ChatID     int64
	Transcript string
	Count      int // 实际纳入的消息条数
}

// Result 一次总结的结果，成功或失败都会生成且只消费一次
type Result struct {
	RequestID string
	ChatID    int64
	Text      string
	Succeeded bool
	ErrorKind ErrorKind
}

// ErrorKind 总结失败的错误类别
type ErrorKind string

const (
	ErrorKindNone                ErrorKind = ""
	ErrorKindInsufficientHistory ErrorKind = "insufficient_history"
	ErrorKindNetwork             ErrorKind = "network_error"
	ErrorKindTimeout             ErrorKind = "timeout"
	ErrorKindAuth                ErrorKind = "auth_error"
	ErrorKindProvider            ErrorKind = "provider_error"
	ErrorKindConfigInvalid       ErrorKind = "config_invalid"
)

// 供各总结服务客户端包装返回的哨兵错误，用 errors.Is 归类
var (
	ErrInsufficientHistory = errors.New("没有足够的聊天记录可以总结")
	ErrNetwork             = errors.New("网络连接失败")
	ErrTimeout             = errors.New("总结请求超时")
	ErrAuth                = errors.New("总结服务鉴权失败")
	ErrProvider            = errors.New("总结服务返回异常")
	ErrConfigInvalid       = errors.New("总结服务配置无效")
)

// KindOf 将错误归类为 ErrorKind，未知错误一律视为服务方异常
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrInsufficientHistory):
		return ErrorKindInsufficientHistory
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrAuth):
		return ErrorKindAuth
	case errors.Is(err, ErrNetwork):
		return ErrorKindNetwork
	case errors.Is(err, ErrConfigInvalid):
		return ErrorKindConfigInvalid
	default:
		return ErrorKindProvider
	}
}
