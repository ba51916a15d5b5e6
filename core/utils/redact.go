package utils

import (
	"strings"
)

// RedactedMark 替换敏感信息的占位符
const RedactedMark = "***"

// Redact 将 s 中出现的 secret 全部替换为占位符
func Redact(s, secret string) string {
	if secret == "" || s == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, RedactedMark)
}

// Truncate 限制字符串长度，避免日志过大
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
