package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Terminal: 终端进度提示（非日志）。
// TTY 下单行 \r 覆盖；非 TTY 只在关键节点分行打印。并发安全，写失败后转为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	concurrency int
	builder     string
	runStart    time.Time

	files   int
	graphs  int
	skipped int

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

var (
	tagRun  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF"))
	tagOK   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00"))
	tagFail = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000"))
	tagSkip = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置进程级终端（nil 清除）。
func SetTerminal(t *Terminal) {
	termMu.Lock()
	term = t
	termMu.Unlock()
}

// GetTerminal 返回进程级终端（可能为 nil）。
func GetTerminal() *Terminal {
	termMu.RLock()
	defer termMu.RUnlock()
	return term
}

// NewTerminal 构造终端提示器；enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				t.isTTY = fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return t
}

// RunStart 记录运行上下文。
func (t *Terminal) RunStart(concurrency int, builder string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.concurrency, t.builder = concurrency, builder
	t.files, t.graphs, t.skipped = 0, 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("%s 并发=%d | graph=%s", tagRun.Render("[run]"), concurrency, safe(builder)))
}

// Cached 提示数据集已存在、未重建。
func (t *Terminal) Cached(artifact string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(fmt.Sprintf("%s %s 已存在，跳过构建（--force 强制重建）", tagOK.Render("[cached]"), safe(artifact)))
}

// FileDone 记录单个文件的结果（graph|skip），TTY 下节流刷新进度行。
func (t *Terminal) FileDone(fileID string, skipped bool, reason string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.files++
	if skipped {
		t.skipped++
		if !t.isTTY {
			t.println(fmt.Sprintf("%s %s | %s", tagSkip.Render("[skip]"), shortenBase(fileID, 48), safe(reason)))
		}
	} else {
		t.graphs++
	}
	if !t.isTTY {
		return
	}
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	t.printInline(fmt.Sprintf("[build] 文件 %d | 图 %d | 跳过 %d | %s",
		t.files, t.graphs, t.skipped, dim.Render("用时 "+formatDur(time.Since(t.runStart)))))
}

// RunFinish 输出结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	tag := tagOK.Render("[ok]")
	if !ok {
		tag = tagFail.Render("[fail]")
	}
	t.println(fmt.Sprintf("%s 文件 %d | 图 %d | 跳过 %d | 总用时 %s", tag, t.files, t.graphs, t.skipped, formatDur(dur)))
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if t.isTTY && t.lastLen > 0 {
		s = "\r" + strings.Repeat(" ", t.lastLen) + "\r" + s
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if !t.enabled {
		return
	}
	w := lipgloss.Width(s)
	pad := 0
	if t.lastLen > w {
		pad = t.lastLen - w
	}
	if _, err := io.WriteString(t.w, "\r"+s+strings.Repeat(" ", pad)); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = w
}

// shortenBase 取基名并按 rune 截断（尾部省略号）。
func shortenBase(s string, limit int) string {
	base := filepath.Base(strings.TrimSpace(s))
	rs := []rune(base)
	if limit <= 0 || len(rs) <= limit {
		return base
	}
	return string(rs[:limit-1]) + "…"
}

func safe(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", max(d.Milliseconds(), 0))
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
