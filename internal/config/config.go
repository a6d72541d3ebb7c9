package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type TelegramApp struct {
	ApiId   int32  `yaml:"ApiId"`
	ApiHash string `yaml:"ApiHash"`
}

type Dify struct {
	Enable    bool   `yaml:"Enable"`
	APIKey    string `yaml:"APIKey"`
	BaseURL   string `yaml:"BaseURL"`   // 如 https://api.dify.ai/v1
	HttpProxy string `yaml:"HttpProxy"` // 可选的 HTTP 代理地址
}

type LLM struct {
	Enable    bool   `yaml:"Enable"`    // Dify 不可用时的备用总结服务
	BaseURL   string `yaml:"BaseURL"`   // 兼容 OpenAI API 的端点
	APIKey    string `yaml:"APIKey"`
	Model     string `yaml:"Model"`     // 如 gpt-4o, deepseek-chat, qwen-plus
	MaxTokens int    `yaml:"MaxTokens"` // 模型上下文窗口大小
}

type Summary struct {
	Enable             bool     `yaml:"Enable"`
	Commands           []string `yaml:"Commands"`           // 触发总结的命令关键词
	DefaultNumMessages int      `yaml:"DefaultNumMessages"` // 默认总结的消息条数
	SummaryWaitTime    int      `yaml:"SummaryWaitTime"`    // 总结完成后的冷却时间（秒），0 表示不限制
	MaxHistory         int      `yaml:"MaxHistory"`         // 每个会话保留的最大消息条数，0 表示与 DefaultNumMessages 相同
	RequestTimeout     int      `yaml:"RequestTimeout"`     // 单次总结请求的超时时间（秒）
	NotifyOnRepeat     bool     `yaml:"NotifyOnRepeat"`     // 冷却期内重复触发时是否回复提示
	Cron               string   `yaml:"Cron"`               // 定时总结 cron 表达式，空表示不启用
	RetentionDays      int      `yaml:"RetentionDays"`      // 归档总结保留天数，0 表示不清理
}

type Config struct {
	Sock5Proxy  Sock5Proxy  `yaml:"Sock5Proxy"`
	TelegramApp TelegramApp `yaml:"TelegramApp"`
	Dify        Dify        `yaml:"Dify"`
	LLM         LLM         `yaml:"LLM"`
	Summary     Summary     `yaml:"Summary"`
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal([]byte(data), &c)
	if err != nil {
		return nil, err
	}

	c.applyDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// applyDefaults 填充未配置的默认值
// SummaryWaitTime 不设默认值：显式的 0 和省略都表示不做冷却限制
func (c *Config) applyDefaults() {
	if len(c.Summary.Commands) == 0 {
		c.Summary.Commands = []string{"总结", "summary"}
	}
	if c.Summary.DefaultNumMessages == 0 {
		c.Summary.DefaultNumMessages = 100
	}
	if c.Summary.RequestTimeout == 0 {
		c.Summary.RequestTimeout = 120
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 TelegramApp
	if c.TelegramApp.ApiId == 0 {
		return fmt.Errorf("TelegramApp.ApiId 不能为空")
	}
	if c.TelegramApp.ApiHash == "" {
		return fmt.Errorf("TelegramApp.ApiHash 不能为空")
	}

	// 验证 Summary
	if c.Summary.DefaultNumMessages <= 0 {
		return fmt.Errorf("Summary.DefaultNumMessages 必须大于 0")
	}
	if c.Summary.SummaryWaitTime < 0 {
		return fmt.Errorf("Summary.SummaryWaitTime 必须 >= 0")
	}
	if c.Summary.RequestTimeout <= 0 {
		return fmt.Errorf("Summary.RequestTimeout 必须大于 0")
	}
	if c.Summary.MaxHistory < 0 {
		return fmt.Errorf("Summary.MaxHistory 必须 >= 0")
	}
	if c.Summary.MaxHistory > 0 && c.Summary.MaxHistory < c.Summary.DefaultNumMessages {
		return fmt.Errorf("Summary.MaxHistory 不能小于 Summary.DefaultNumMessages")
	}
	if c.Summary.RetentionDays < 0 {
		return fmt.Errorf("Summary.RetentionDays 必须 >= 0")
	}

	// 验证 LLM（仅在启用备用服务时）
	if c.LLM.Enable {
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM.APIKey 不能为空")
		}
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("LLM.BaseURL 不能为空")
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("LLM.Model 不能为空")
		}
		if c.LLM.MaxTokens <= 0 {
			return fmt.Errorf("LLM.MaxTokens 必须大于 0")
		}
	}

	// Dify 配置不完整不视为错误：启动时会告警并停用 Dify 通道
	return nil
}

// DifyReady Dify 配置是否完整可用
func (c *Config) DifyReady() bool {
	return c.Dify.Enable && c.Dify.APIKey != "" && c.Dify.BaseURL != ""
}
