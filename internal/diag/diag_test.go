package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"pdbgraph/pkg/contract"
)

// memSink 收集日志行。
type memSink struct {
	mu    sync.Mutex
	lines [][]byte
}

func (m *memSink) WriteLine(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, append([]byte(nil), b...))
	return nil
}

func (m *memSink) events(t *testing.T) []Event {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.lines))
	for _, l := range m.lines {
		var ev Event
		require.NoError(t, json.Unmarshal(l, &ev))
		out = append(out, ev)
	}
	return out
}

// 日志轮转：current 与时间戳文件并存
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	for i := 0; i < 4; i++ {
		require.NoError(t, w.WriteLine([]byte("a line that is fairly long")))
	}
	require.NoError(t, w.Close())
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	var current, rotated int
	for _, e := range ents {
		switch {
		case e.Name() == "pdbgraph-current.txt":
			current++
		case strings.HasPrefix(e.Name(), "pdbgraph-") && strings.HasSuffix(e.Name(), ".txt"):
			rotated++
		}
	}
	require.Equal(t, 1, current)
	require.GreaterOrEqual(t, rotated, 3)
	require.NoError(t, w.Close())
}

func TestRotatingFileDefaults(t *testing.T) {
	w := NewRotatingFile(t.TempDir(), 0)
	require.Equal(t, int64(10<<20), w.maxBytes)
	require.NoError(t, w.WriteLine([]byte("x")))
	require.NoError(t, w.Close())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("x: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("parse: %w", contract.ErrMalformed), CodeMalformed},
		{contract.ErrRejected, CodeRejected},
		{contract.ErrMissingInput, CodeMissing},
		{contract.ErrFormat, CodeFormat},
		{contract.ErrPathInvalid, CodeInvariant},
		{contract.ErrInvalidInput, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{&net.DNSError{Err: "x"}, CodeNetwork},
		{errors.New("other"), CodeUnknown},
	}
	for _, tt := range cases {
		require.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestLoggerEventsAndMetrics(t *testing.T) {
	sink := &memSink{}
	m := NewMetrics()
	l := NewLoggerWithSink("corr-1", "info", sink).WithMetrics(m)
	require.Equal(t, "corr-1", l.CorrID())

	tm := l.StartFile("parse", "parse file", "a.pdb")
	tm.Finish("ok", 12)
	l.Start("write", "write").Fail(&fs.PathError{Op: "open", Path: "x", Err: fs.ErrPermission})
	l.Skip("parse", "b.pdb", fmt.Errorf("bad: %w", contract.ErrMalformed))
	l.Debugf("parse", "c.pdb", nil, "hidden %d", 1)
	l.Infof("pipeline", map[string]string{"k": "v"}, "cached %s", "ds.pdbg")

	evs := sink.events(t)
	require.Len(t, evs, 6)
	require.Equal(t, "start", evs[0].Stage)
	require.Equal(t, "a.pdb", evs[0].FileID)
	require.Equal(t, "finish", evs[1].Stage)
	require.Equal(t, int64(12), evs[1].Count)
	require.Equal(t, "error", evs[3].Stage)
	require.Equal(t, "io", evs[3].Code)
	require.Equal(t, "warn", evs[4].Level)
	require.Equal(t, "malformed", evs[4].Code)
	require.Equal(t, "v", evs[5].KV["k"])
	for _, ev := range evs {
		require.Equal(t, "corr-1", ev.CorrID)
	}

	require.Equal(t, 1.0, testutil.ToFloat64(m.OpTotal.WithLabelValues("parse", "finish", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.OpTotal.WithLabelValues("write", "finish", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ErrorTotal.WithLabelValues("parse", "malformed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ErrorTotal.WithLabelValues("write", "io")))
}

func TestLoggerLevelFilter(t *testing.T) {
	sink := &memSink{}
	l := NewLoggerWithSink("c", "error", sink).WithMetrics(NewMetrics())
	l.Start("x", "start")
	l.Error("x", errors.New("boom"), "", nil)
	evs := sink.events(t)
	require.Len(t, evs, 1)
	require.Equal(t, "error", evs[0].Level)

	sink = &memSink{}
	l = NewLoggerWithSink("c", "debug", sink).WithMetrics(NewMetrics())
	l.Debugf("x", "", nil, "v=%d", 3)
	require.Equal(t, "v=3", sink.events(t)[0].Msg)
}

func TestNilLoggerNoop(t *testing.T) {
	var l *Logger
	l.Start("x", "y").Finish("z", 1)
	l.Skip("x", "f", errors.New("e"))
	l.Error("x", errors.New("e"), "", nil)
	require.NoError(t, l.Close())
	require.Equal(t, "", l.CorrID())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, Debug, ParseLevel(" DEBUG "))
	require.Equal(t, Warn, ParseLevel("warn"))
	require.Equal(t, Info, ParseLevel("verbose"))
	require.Equal(t, "error", Error.String())
}

func TestMetricsWriteText(t *testing.T) {
	m := NewMetrics()
	m.ObserveProtein("graph")
	m.ObserveProtein("malformed")
	m.ObserveGraph(40)
	m.ObserveDuration("build", "finish", 20*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	out := buf.String()
	require.Contains(t, out, `pdbgraph_proteins_total{result="graph"} 1`)
	require.Contains(t, out, "pdbgraph_graph_edges_count 1")
	require.Contains(t, out, "pdbgraph_op_duration_seconds_bucket")

	var metric dto.Metric
	require.NoError(t, m.GraphEdges.Write(&metric))
	require.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
	require.Equal(t, 40.0, metric.GetHistogram().GetSampleSum())

	path := t.TempDir() + "/metrics/run.prom"
	require.NoError(t, m.WriteFile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, out, string(b))
}

func TestDefaultMetricsSingleton(t *testing.T) {
	require.Same(t, DefaultMetrics(), DefaultMetrics())
}

func TestTerminalNonTTY(t *testing.T) {
	var buf bytes.Buffer
	tm := NewTerminal(&buf, true)
	tm.RunStart(4, "radius")
	tm.FileDone("dir/1abc.pdb", false, "")
	tm.FileDone("dir/2bad.pdb", true, "malformed")
	tm.RunFinish(true, 1500*time.Millisecond)
	out := buf.String()
	require.Contains(t, out, "并发=4")
	require.Contains(t, out, "2bad.pdb | malformed")
	require.Contains(t, out, "文件 2 | 图 1 | 跳过 1 | 总用时 1.5s")
}

func TestTerminalTTYInline(t *testing.T) {
	var buf bytes.Buffer
	tm := NewTerminal(&buf, true)
	tm.isTTY = true
	tm.RunStart(1, "knn")
	tm.FileDone("a.pdb", false, "")
	require.Contains(t, buf.String(), "\r[build] 文件 1")
	tm.RunFinish(false, 10*time.Millisecond)
	require.Contains(t, buf.String(), "文件 1 | 图 1 | 跳过 0 | 总用时 10ms")
	require.Zero(t, tm.lastLen)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTerminalDisableOnWriteError(t *testing.T) {
	tm := NewTerminal(failWriter{}, true)
	tm.RunStart(1, "radius")
	require.False(t, tm.enabled)
	tm.FileDone("a", false, "")
	tm.RunFinish(true, 0)
}

func TestTerminalNilAndDisabled(t *testing.T) {
	var tm *Terminal
	tm.RunStart(1, "x")
	tm.FileDone("a", true, "r")
	tm.Cached("x")
	tm.RunFinish(true, 0)

	var buf bytes.Buffer
	off := NewTerminal(&buf, false)
	off.RunStart(1, "x")
	off.Cached("ds.pdbg")
	require.Zero(t, buf.Len())

	SetTerminal(off)
	require.Same(t, off, GetTerminal())
	SetTerminal(nil)
	require.Nil(t, GetTerminal())
}

func TestHelpers(t *testing.T) {
	require.Equal(t, "abc.pdb", shortenBase(" /x/abc.pdb ", 10))
	require.Equal(t, "abcd…", shortenBase("abcdefgh", 5))
	require.Equal(t, "a b", safe("a\nb"))
	require.Equal(t, "0ms", formatDur(-time.Second))
	require.Equal(t, "2.0s", formatDur(2*time.Second))
	_, err := time.Parse(time.RFC3339, NowUTC())
	require.NoError(t, err)
}
