package biz

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Section names.
const (
	SectionAbstract        = "Abstract"
	SectionIntroduction    = "Introduction"
	SectionMethods         = "Methods"
	SectionResults         = "Results"
	SectionDiscussion      = "Discussion"
	SectionConclusion      = "Conclusion"
	SectionTableOfContents = "TableOfContents"
	SectionTables          = "Tables"
	SectionCharts          = "Charts"
	SectionFigures         = "Figures"
	SectionIndex           = "Index"
)

// sectionHeaders 双语（英文/土耳其语）章节标题，按输出顺序排列。
var sectionHeaders = []struct {
	name    string
	headers string
}{
	{SectionAbstract, `Abstract|Özet`},
	{SectionIntroduction, `Introduction|Giriş`},
	{SectionMethods, `Materials and Methods|Methods|Methodology|Yöntemler|Yöntem|Metot`},
	{SectionResults, `Results|Bulgular`},
	{SectionDiscussion, `Discussion|Tartışma`},
	{SectionConclusion, `Conclusions?|Sonuçlar|Sonuç`},
	{SectionTableOfContents, `Table of Contents|Contents|İçindekiler`},
	{SectionTables, `List of Tables|Tables|Tablolar`},
	{SectionCharts, `Charts|Çizelgeler|Grafikler`},
	{SectionFigures, `List of Figures|Figures|Şekiller|Resimler`},
	{SectionIndex, `Index|İndeks|Dizin`},
}

type sectionPattern struct {
	name string
	re   *regexp.Regexp
}

var sectionPatterns = func() []sectionPattern {
	out := make([]sectionPattern, 0, len(sectionHeaders))
	for _, h := range sectionHeaders {
		out = append(out, sectionPattern{
			name: h.name,
			re:   regexp.MustCompile(`(?i)(?:^|\n)(` + h.headers + `):?[ \t\r\f\v]*\n`),
		})
	}
	return out
}()

// SectionNames 返回全部章节名（固定顺序）。
func SectionNames() []string {
	names := make([]string, 0, len(sectionHeaders))
	for _, h := range sectionHeaders {
		names = append(names, h.name)
	}
	return names
}

// Section 是文本中的一个章节区间，Content == text[Start:End]。
type Section struct {
	Name    string `json:"name"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Content string `json:"content"`
}

// ColumnLayout 是分栏检测结果。
type ColumnLayout struct {
	Multicolumn bool `json:"multicolumn"`
	GapLines    int  `json:"gap_lines"`
	TotalLines  int  `json:"total_lines"`
}

// SectionMap 包含每个章节名的定位结果（未找到为 nil）以及分栏结构。
type SectionMap struct {
	Sections map[string]*Section `json:"sections"`
	Columns  ColumnLayout        `json:"column_structure"`
}

// Found 按起始位置返回已找到的章节。
func (m *SectionMap) Found() []*Section {
	out := make([]*Section, 0, len(m.Sections))
	for _, s := range m.Sections {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// SectionMapper 检测分栏与章节。阈值可配置。
type SectionMapper struct {
	// MinGap 一行内被视为栏间隔的最少连续空格数。
	MinGap int
	// LineFraction 含栏间隔的行数超过总行数的该比例时视为多栏。
	LineFraction float64

	gap *regexp.Regexp
}

// NewSectionMapper 创建 SectionMapper，非正参数使用默认值 4 / 0.2。
func NewSectionMapper(minGap int, lineFraction float64) *SectionMapper {
	if minGap <= 0 {
		minGap = 4
	}
	if lineFraction <= 0 {
		lineFraction = 0.2
	}
	return &SectionMapper{
		MinGap:       minGap,
		LineFraction: lineFraction,
		gap:          regexp.MustCompile(` {` + strconv.Itoa(minGap) + `,}`),
	}
}

// DetectColumns 统计含 MinGap 个以上连续空格的行，超过 LineFraction 比例即判定为多栏。
func (m *SectionMapper) DetectColumns(text string) ColumnLayout {
	lines := strings.Split(text, "\n")
	gapLines := 0
	for _, line := range lines {
		if m.gap.MatchString(line) {
			gapLines++
		}
	}
	return ColumnLayout{
		Multicolumn: float64(gapLines) > float64(len(lines))*m.LineFraction,
		GapLines:    gapLines,
		TotalLines:  len(lines),
	}
}

// Map 定位每个章节标题的首次出现（行首、不区分大小写），按起点排序后
// 以下一章节的起点（或文本末尾）作为终点。文本本身不被修改。
//
// 只取首次出现：目录页中的同名标题会造成误判。
func (m *SectionMapper) Map(text string) *SectionMap {
	result := &SectionMap{
		Sections: make(map[string]*Section, len(sectionPatterns)),
		Columns:  m.DetectColumns(text),
	}

	var found []*Section
	for _, p := range sectionPatterns {
		result.Sections[p.name] = nil
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		found = append(found, &Section{Name: p.name, Start: loc[2]})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })
	for i, s := range found {
		s.End = len(text)
		if i+1 < len(found) {
			s.End = found[i+1].Start
		}
		s.Content = text[s.Start:s.End]
		result.Sections[s.Name] = s
	}
	return result
}
