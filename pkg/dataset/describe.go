package dataset

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"pdbgraph/pkg/contract"
)

// Stats: 数据集级统计。
type Stats struct {
	Name       string
	Graphs     int
	MeanNodes  float64
	MinNodes   int
	MaxNodes   int
	MeanEdges  float64
	MeanDegree float64
	MultiChain int
	FeatureDim int
	Attrs      []string
	Digest     string
}

// Describe 汇总数据集统计。
func Describe(name string, ds *Dataset) Stats {
	s := Stats{Name: name, Graphs: len(ds.Graphs), Digest: hex.EncodeToString(ds.Header.Digest[:])}
	if s.Graphs == 0 {
		return s
	}
	attrs := map[string]struct{}{}
	var nodes, edges int
	s.MinNodes = ds.Graphs[0].NumNodes()
	for i := range ds.Graphs {
		g := &ds.Graphs[i]
		n := g.NumNodes()
		nodes += n
		edges += len(g.Edges)
		s.MinNodes = min(s.MinNodes, n)
		s.MaxNodes = max(s.MaxNodes, n)
		if n > 0 && s.FeatureDim == 0 {
			s.FeatureDim = len(g.X[0])
		}
		if len(distinct(g.ChainID)) > 1 {
			s.MultiChain++
		}
		for k := range g.Attrs {
			attrs[k] = struct{}{}
		}
	}
	s.MeanNodes = float64(nodes) / float64(s.Graphs)
	s.MeanEdges = float64(edges) / float64(s.Graphs)
	if nodes > 0 {
		s.MeanDegree = float64(edges) / float64(nodes)
	}
	for k := range attrs {
		s.Attrs = append(s.Attrs, k)
	}
	sort.Strings(s.Attrs)
	return s
}

func distinct(v []string) map[string]struct{} {
	m := make(map[string]struct{}, 2)
	for _, s := range v {
		m[s] = struct{}{}
	}
	return m
}

var statsHeaders = []string{"name", "graphs", "mean nodes", "min nodes", "max nodes", "mean edges", "mean degree", "multi chain", "feature dim", "attrs"}

func (s Stats) row() []string {
	return []string{
		s.Name,
		strconv.Itoa(s.Graphs),
		strconv.FormatFloat(s.MeanNodes, 'f', 1, 64),
		strconv.Itoa(s.MinNodes),
		strconv.Itoa(s.MaxNodes),
		strconv.FormatFloat(s.MeanEdges, 'f', 1, 64),
		strconv.FormatFloat(s.MeanDegree, 'f', 2, 64),
		strconv.Itoa(s.MultiChain),
		strconv.Itoa(s.FeatureDim),
		strings.Join(s.Attrs, ","),
	}
}

// 输出格式。
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatLatex    = "latex"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF")).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Render 以指定格式输出若干数据集的统计表。
func Render(w io.Writer, format string, stats ...Stats) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, s.row())
	}
	var out string
	switch format {
	case "", FormatTable:
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(statsHeaders...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		out = t.String() + "\n"
	case FormatMarkdown:
		out = markdown(statsHeaders, rows)
	case FormatLatex:
		out = latex(statsHeaders, rows)
	default:
		return fmt.Errorf("%w: format %q (want table|markdown|latex)", contract.ErrInvalidInput, format)
	}
	_, err := io.WriteString(w, out)
	return err
}

func markdown(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(headers)) + "\n")
	for _, r := range rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
	return b.String()
}

var latexEscaper = strings.NewReplacer(`\`, `\textbackslash{}`, "_", `\_`, "&", `\&`, "%", `\%`, "#", `\#`, "$", `\$`, "{", `\{`, "}", `\}`)

func latex(headers []string, rows [][]string) string {
	esc := func(v []string) string {
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = latexEscaper.Replace(s)
		}
		return strings.Join(out, " & ")
	}
	var b strings.Builder
	b.WriteString(`\begin{tabular}{` + strings.Repeat("l", len(headers)) + "}\n")
	b.WriteString("\\toprule\n" + esc(headers) + " \\\\\n\\midrule\n")
	for _, r := range rows {
		b.WriteString(esc(r) + " \\\\\n")
	}
	b.WriteString("\\bottomrule\n\\end{tabular}\n")
	return b.String()
}
