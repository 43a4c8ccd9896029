package biz

import (
	"regexp"
	"strings"
)

var (
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(` {2,}`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
	markdownLink = regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`)
	pageMarker   = regexp.MustCompile(`(?i)\b(?:Page|Sayfa)\s*\d+`)
	hyphenBreak  = regexp.MustCompile(`(\pL+)-[ \t]*\n[ \t]*(\pL+)`)
)

// Clean 规范化原始文本：CRLF 与孤立 CR 转为 LF，空格/制表符连续出现压缩为一个空格，
// 三个及以上换行压缩为两个，去除首尾空白。Clean(Clean(x)) == Clean(x)。
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRun.ReplaceAllString(s, " ")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CleanAdvanced 在 Clean 之前去除 HTML 标签、Markdown 链接、页码标记，并拼接跨行断词。
func CleanAdvanced(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = htmlTag.ReplaceAllString(s, " ")
	s = markdownLink.ReplaceAllString(s, " ")
	s = pageMarker.ReplaceAllString(s, " ")
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	return Clean(s)
}

// Reflower 将多栏文本重排为单一阅读流。
type Reflower interface {
	Reflow(text string) string
}

// Reflow strategies.
const (
	ReflowAbstract = "abstract"
	ReflowNone     = "none"
)

// NewReflower 按策略名创建 Reflower，未知策略返回 nil。
func NewReflower(strategy, marker string) Reflower {
	switch strategy {
	case ReflowAbstract, "":
		return &AbstractReflower{Marker: marker}
	case ReflowNone:
		return NoopReflower{}
	default:
		return nil
	}
}

// AbstractReflower 以标记词（默认 "Abstract"）首次出现处为界：
// 之前的部分原样保留，之后的正文（以标记词开头）合并为单行。
// 文本中不含标记词时不做任何改动。
type AbstractReflower struct {
	Marker string
}

// Reflow implements Reflower.
func (r *AbstractReflower) Reflow(text string) string {
	marker := r.Marker
	if marker == "" {
		marker = "Abstract"
	}

	idx := strings.Index(text, marker)
	if idx < 0 {
		return text
	}

	head := strings.TrimRightFunc(text[:idx], isSpace)
	body := strings.ReplaceAll(text[idx:], "\n", " ")
	body = multiSpace.ReplaceAllString(body, " ")

	if head == "" {
		return body
	}
	return head + "\n\n" + body
}

// NoopReflower 原样返回文本。
type NoopReflower struct{}

// Reflow implements Reflower.
func (NoopReflower) Reflow(text string) string {
	return text
}

// Normalizer 组合清洗与重排。
type Normalizer struct {
	Advanced bool
	Reflower Reflower
}

// NewNormalizer 创建 Normalizer，reflower 为 nil 时使用 AbstractReflower。
func NewNormalizer(advanced bool, reflower Reflower) *Normalizer {
	if reflower == nil {
		reflower = &AbstractReflower{}
	}
	return &Normalizer{Advanced: advanced, Reflower: reflower}
}

// Clean 按配置选择 Clean 或 CleanAdvanced。
func (n *Normalizer) Clean(raw string) string {
	if n.Advanced {
		return CleanAdvanced(raw)
	}
	return Clean(raw)
}

// Reflow 使用配置的策略重排文本。
func (n *Normalizer) Reflow(text string) string {
	return n.Reflower.Reflow(text)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// collapseWhitespace 将任意空白序列压缩为一个空格。
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
