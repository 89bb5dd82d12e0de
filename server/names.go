package server

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// NamePolicy 显示名清洗规则：去首尾空白与控制字符，按显示宽度截断，空名替换为默认名。
// 清洗后的名字一定非空。
type NamePolicy struct {
	MaxWidth int
	Fallback string
}

// Sanitize 返回可直接写入世界模型的名字
func (p NamePolicy) Sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(truncateWidth(strings.TrimSpace(name), p.MaxWidth))
	if name == "" {
		return p.Fallback
	}
	return name
}

// truncateWidth 截断到不超过 max 个显示单元（全角/宽字符占 2）
func truncateWidth(s string, max int) string {
	used := 0
	for i, r := range s {
		w := runeWidth(r)
		if used+w > max {
			return s[:i]
		}
		used += w
	}
	return s
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}
