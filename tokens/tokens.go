// Package tokens provides token counting for prompt-window budgeting.
package tokens

import "strings"

// Counter counts tokens in a piece of text.
type Counter interface {
	Count(text string) (int, error)
	Name() string
}

// EstimateCounter 启发式计数器：约 4 字符一个 token，无需编码表
// 作为 tiktoken 初始化失败时的回退方案。
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	// CJK 与表情符号按字符计，其余按 4 字符估算
	chars := len([]rune(text))
	words := len(strings.Fields(text))
	est := chars / 4
	if words > est {
		est = words
	}
	if est == 0 {
		est = 1
	}
	return est, nil
}

func (EstimateCounter) Name() string { return "estimate" }
