package biz

import (
	"regexp"
	"strings"
	"unicode"
)

// minReferenceLength 参考文献条目的最小长度（字符数，不含）。
const minReferenceLength = 10

// referenceHeaders 参考文献章节标题（大小写敏感，按原文排版习惯为全大写）。
var referenceHeaders = []string{
	"KAYNAKÇA",
	"KAYNAKLAR",
	"REFERENCES",
	"BIBLIOGRAPHY",
	"REFERANSLAR",
	"KAYNAK LİSTESİ",
}

var bracketedReference = regexp.MustCompile(`(?m)^[ \t]*\[\d+\][^\n]*`)

// ExtractReferences 从文本中提取参考文献条目。
//
// 从最早出现的参考文献标题之后开始按行分组：含数字的行开启新条目，
// 空行结束当前条目，其余行并入当前条目。此外全文中以 "[n]" 开头的行
// 也作为条目。结果压缩空白、仅保留长度大于 10 且含数字的条目，并按出现顺序去重。
func ExtractReferences(text string) []string {
	var candidates []string

	if start := referencesStart(text); start >= 0 {
		candidates = append(candidates, groupReferenceLines(text[start:])...)
	}
	candidates = append(candidates, bracketedReference.FindAllString(text, -1)...)

	seen := make(map[string]struct{}, len(candidates))
	refs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = collapseWhitespace(c)
		if len([]rune(c)) <= minReferenceLength || !strings.ContainsFunc(c, unicode.IsDigit) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		refs = append(refs, c)
	}
	return refs
}

// referencesStart 返回最早出现的标题行之后的偏移，未找到返回 -1。
func referencesStart(text string) int {
	start := -1
	for _, h := range referenceHeaders {
		idx := strings.Index(text, h)
		if idx < 0 || (start >= 0 && idx >= start) {
			continue
		}
		start = idx
	}
	if start < 0 {
		return -1
	}
	if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
		return start + nl + 1
	}
	return len(text)
}

func groupReferenceLines(section string) []string {
	var (
		entries []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			entries = append(entries, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.ContainsFunc(line, unicode.IsDigit):
			flush()
			current = append(current, line)
		default:
			current = append(current, line)
		}
	}
	flush()
	return entries
}
