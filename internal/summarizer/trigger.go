package summarizer

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+`)

// ParseCommand 判断消息文本是否命中任一总结命令
// 命中时从文本中提取第一个整数作为本次总结的消息数量，count 为 0 表示未指定
func ParseCommand(text string, commands []string) (count int, ok bool) {
	matched := false
	for _, cmd := range commands {
		if cmd != "" && strings.Contains(text, cmd) {
			matched = true
			break
		}
	}
	if !matched {
		return 0, false
	}

	digits := numberPattern.FindString(text)
	if digits == "" {
		return 0, true
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, true
	}
	return n, true
}
