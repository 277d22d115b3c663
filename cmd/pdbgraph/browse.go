package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdbgraph/pkg/contract"
	"pdbgraph/pkg/dataset"
)

var (
	browseTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF00FF")).MarginLeft(1)
	detailBox   = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1)
	browseHelp = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginLeft(1)
)

type browseKeys struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

func (k browseKeys) ShortHelp() []key.Binding { return []key.Binding{k.Up, k.Down, k.Quit} }

func (k browseKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var defaultBrowseKeys = browseKeys{
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// browseModel: 数据集逐图浏览（表格 + 选中图详情）。
type browseModel struct {
	name   string
	graphs []contract.Graph
	table  table.Model
	help   help.Model
	keys   browseKeys
}

func newBrowseModel(name string, ds *dataset.Dataset) browseModel {
	columns := []table.Column{
		{Title: "#", Width: 5},
		{Title: "ID", Width: 12},
		{Title: "Nodes", Width: 7},
		{Title: "Edges", Width: 8},
		{Title: "Chains", Width: 8},
		{Title: "Sequence", Width: 32},
	}
	rows := make([]table.Row, 0, len(ds.Graphs))
	for i := range ds.Graphs {
		g := &ds.Graphs[i]
		rows = append(rows, table.Row{
			fmt.Sprint(i),
			g.ID,
			fmt.Sprint(g.NumNodes()),
			fmt.Sprint(len(g.Edges)),
			strings.Join(chainsOf(g), ","),
			clip(g.Sequence, 32),
		})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(max(len(rows), 1), 15)),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)
	return browseModel{name: name, graphs: ds.Graphs, table: t, help: help.New(), keys: defaultBrowseKeys}
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	var s strings.Builder
	s.WriteString(browseTitle.Render(fmt.Sprintf("%s · %d graphs", m.name, len(m.graphs))))
	s.WriteString("\n\n")
	s.WriteString(m.table.View())
	s.WriteString("\n")
	if g := m.selected(); g != nil {
		s.WriteString(detailBox.Render(detail(g)))
		s.WriteString("\n")
	}
	s.WriteString(browseHelp.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m browseModel) selected() *contract.Graph {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.graphs) {
		return nil
	}
	return &m.graphs[i]
}

// detail: 选中图的文字摘要（属性向量给出非零个数）。
func detail(g *contract.Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID       %s\nFile     %s\n", g.ID, g.FileID)
	n := g.NumNodes()
	deg := 0.0
	if n > 0 {
		deg = float64(len(g.Edges)) / float64(n)
	}
	dim := 0
	if n > 0 {
		dim = len(g.X[0])
	}
	fmt.Fprintf(&b, "Nodes    %d  (feature dim %d)\nEdges    %d  (mean degree %.2f)\n", n, dim, len(g.Edges), deg)
	if n > 0 {
		fmt.Fprintf(&b, "Residues %d..%d\n", g.ResidueIndex[0], g.ResidueIndex[n-1])
	}
	names := make([]string, 0, len(g.Attrs))
	for k := range g.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		nz := 0
		for _, v := range g.Attrs[k] {
			if v != 0 {
				nz++
			}
		}
		fmt.Fprintf(&b, "%-8s %d/%d set\n", k, nz, len(g.Attrs[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func chainsOf(g *contract.Graph) []string {
	p := contract.Protein{ChainID: g.ChainID}
	return p.Chains()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// runBrowse: pdbgraph browse <file.pdbg>
func runBrowse(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}
	if fs.NArg() != 1 {
		fprintf(os.Stderr, "用法: pdbgraph browse <dataset%s>\n", dataset.Ext)
		return exitConfig
	}
	ds, err := dataset.Load(fs.Arg(0))
	if err != nil {
		fprintf(os.Stderr, "读取数据集失败: %v\n", err)
		return exitRun
	}
	p := tea.NewProgram(newBrowseModel(datasetName(fs.Arg(0)), ds), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fprintf(os.Stderr, "浏览失败: %v\n", err)
		return exitRun
	}
	return exitOK
}
