package biz

import (
	"regexp"
	"strings"
)

// Caption kinds.
const (
	CaptionTable  = "table"
	CaptionFigure = "figure"
)

var (
	tableCaption  = regexp.MustCompile(`^(?:Tablo|Table|Çizelge|Chart)\s+\d+(?:\.\d+)?\b`)
	figureCaption = regexp.MustCompile(`^(?:Şekil|Figure|Fig\.)\s*\d+(?:\.\d+)?\b`)
	cellSeparator = regexp.MustCompile(`\t+| {3,}`)
)

// Table 是一个检测到的表格或图的标题及其后的行。
type Table struct {
	Kind    string     `json:"kind"`
	Caption string     `json:"caption"`
	Line    int        `json:"line"`
	Rows    [][]string `json:"rows,omitempty"`
}

// DetectTables 检测表格/图标题行，并收集其后以制表符或三个以上空格
// 分隔的行作为表格行，直到空行或下一个标题为止。
// 应在 Clean 之前的文本上调用，否则列分隔会被压缩。
func DetectTables(text string) []Table {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		tables  []Table
		current *Table
	)
	flush := func() {
		if current != nil {
			tables = append(tables, *current)
			current = nil
		}
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if kind := captionKind(line); kind != "" {
			flush()
			current = &Table{Kind: kind, Caption: collapseWhitespace(line), Line: i + 1}
			continue
		}
		if current == nil {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		if !cellSeparator.MatchString(line) {
			continue
		}
		var cells []string
		for _, c := range cellSeparator.Split(line, -1) {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		current.Rows = append(current.Rows, cells)
	}
	flush()
	return tables
}

func captionKind(line string) string {
	switch {
	case tableCaption.MatchString(line):
		return CaptionTable
	case figureCaption.MatchString(line):
		return CaptionFigure
	default:
		return ""
	}
}
