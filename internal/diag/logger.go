package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level 日志级别。
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel 解析级别名；未知值按 info。
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Event 为标准事件结构（单行 JSON）。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|skip|error
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	FileID string            `json:"file_id,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

// Logger 为结构化日志器：单行 JSON 写入 LineSink，并同步累加指标。
// nil *Logger 上的所有方法均为 no-op。
type Logger struct {
	corrID  string
	level   Level
	sink    LineSink
	metrics *Metrics
	mu      sync.Mutex
}

// NewLogger 写入 dir 下的轮转文件（10MiB）；dir 为空时使用 "logs"。
func NewLogger(corrID, level, dir string) *Logger {
	if dir == "" {
		dir = "logs"
	}
	return NewLoggerWithSink(corrID, level, NewRotatingFile(dir, 10<<20))
}

// NewLoggerWithSink 使用自定义输出。
func NewLoggerWithSink(corrID, level string, sink LineSink) *Logger {
	return &Logger{corrID: corrID, level: ParseLevel(level), sink: sink, metrics: DefaultMetrics()}
}

// WithMetrics 替换指标注册表（测试隔离）。
func (l *Logger) WithMetrics(m *Metrics) *Logger {
	if l != nil && m != nil {
		l.metrics = m
	}
	return l
}

// Metrics 返回关联的指标注册表。
func (l *Logger) Metrics() *Metrics {
	if l == nil {
		return DefaultMetrics()
	}
	return l.metrics
}

// CorrID 返回关联 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Close 关闭底层输出（若支持）。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	if c, ok := l.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		_, _ = os.Stderr.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Start 记录 start 事件，返回计时器。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartFile(comp, msg, "")
}

// StartFile 记录带 file_id 的 start 事件。
func (l *Logger) StartFile(comp, msg, fileID string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Debugf 输出调试事件（仅 level=debug 时生效）。
func (l *Logger) Debugf(comp, fileID string, kv map[string]string, format string, args ...any) {
	if l == nil || l.level > Debug {
		return
	}
	l.log(Debug, Event{Comp: comp, Stage: "debug", FileID: fileID, Msg: fmt.Sprintf(format, args...), KV: kv})
}

// Skip 记录被跳过的输入（warn 级别，计入 error_total）。
func (l *Logger) Skip(comp, fileID string, err error) {
	code := Classify(err)
	l.log(Warn, Event{Comp: comp, Stage: "skip", Code: string(code), FileID: fileID, Msg: errString(err)})
	l.Metrics().IncError(comp, string(code))
}

// Error 记录 error 事件（不采样）并计入 error_total。
func (l *Logger) Error(comp string, err error, fileID string, kv map[string]string) {
	code := Classify(err)
	l.log(Error, Event{Comp: comp, Stage: "error", Code: string(code), FileID: fileID, Msg: errString(err), KV: kv})
	l.Metrics().IncError(comp, string(code))
}

// Infof 记录一般信息事件。
func (l *Logger) Infof(comp string, kv map[string]string, format string, args ...any) {
	l.log(Info, Event{Comp: comp, Stage: "info", Msg: fmt.Sprintf(format, args...), KV: kv})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Since 返回已用时长。
func (t *Timer) Since() time.Duration { return time.Since(t.t0) }

// Finish 记录 finish 事件（可选 count），并累加 op_total/op_duration_seconds。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	d := time.Since(t.t0)
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: d.Milliseconds(), Count: count, FileID: t.fileID, Msg: msg})
	m := t.l.Metrics()
	m.IncOp(t.comp, "finish", "success")
	m.ObserveDuration(t.comp, "finish", d)
}

// Fail 记录失败并累加 op_total{result=error} 与 error_total。
func (t *Timer) Fail(err error) {
	if t == nil || t.l == nil {
		return
	}
	d := time.Since(t.t0)
	code := Classify(err)
	t.l.log(Error, Event{Comp: t.comp, Stage: "error", Code: string(code), DurMS: d.Milliseconds(), FileID: t.fileID, Msg: errString(err)})
	m := t.l.Metrics()
	m.IncOp(t.comp, "finish", "error")
	m.IncError(t.comp, string(code))
	m.ObserveDuration(t.comp, "finish", d)
}
