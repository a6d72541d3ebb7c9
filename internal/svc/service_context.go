package svc

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/fachebot/chat-summary-bot/internal/archive"
	"github.com/fachebot/chat-summary-bot/internal/config"
	"github.com/fachebot/chat-summary-bot/internal/dify"
	"github.com/fachebot/chat-summary-bot/internal/history"
	"github.com/fachebot/chat-summary-bot/internal/llm"
	"github.com/fachebot/chat-summary-bot/internal/logger"
	"github.com/fachebot/chat-summary-bot/internal/summarizer"

	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	History        *history.Store
	Archive        *archive.Store
	Provider       summarizer.Provider
	TransportProxy *http.Transport
}

func NewServiceContext(c *config.Config) *ServiceContext {
	// 创建归档数据库
	archiveStore, err := archive.Open("data/sqlite.db")
	if err != nil {
		logger.Fatalf("打开归档数据库失败, %v", err)
	}

	// 创建SOCKS5代理
	var transportProxy *http.Transport
	if c.Sock5Proxy.Enable {
		socks5Proxy := fmt.Sprintf("%s:%d", c.Sock5Proxy.Host, c.Sock5Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
		if err != nil {
			logger.Fatalf("创建SOCKS5代理失败, %v", err)
		}

		transportProxy = &http.Transport{
			Dial:            dialer.Dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	// 会话消息窗口容量，MaxHistory 为 0 时与 DefaultNumMessages 相同
	capacity := c.Summary.DefaultNumMessages
	if c.Summary.MaxHistory > capacity {
		capacity = c.Summary.MaxHistory
	}

	svcCtx := &ServiceContext{
		Config:         c,
		History:        history.NewStore(capacity),
		Archive:        archiveStore,
		Provider:       newProvider(c, transportProxy),
		TransportProxy: transportProxy,
	}
	return svcCtx
}

// newProvider 选择总结服务，Dify 优先，LLM 兜底
// 都不可用时返回 nil，此时触发总结会收到功能不可用的提示，进程不退出
func newProvider(c *config.Config, transportProxy *http.Transport) summarizer.Provider {
	if c.DifyReady() {
		client, err := dify.NewClient(&c.Dify)
		if err != nil {
			logger.Warnf("创建 Dify 客户端失败, %v", err)
		} else {
			logger.Infof("总结服务使用 Dify: %s", c.Dify.BaseURL)
			return client
		}
	} else if c.Dify.Enable {
		logger.Warnf("Dify 配置不完整，请检查配置文件")
	}

	if c.LLM.Enable {
		logger.Infof("总结服务使用 LLM: %s", c.LLM.Model)
		return llm.NewClient(&c.LLM, transportProxy)
	}

	logger.Warnf("未配置可用的总结服务，总结功能不可用")
	return nil
}

func (svcCtx *ServiceContext) Close() {
	if err := svcCtx.Archive.Close(); err != nil {
		logger.Errorf("关闭归档数据库失败, %v", err)
	}
}
