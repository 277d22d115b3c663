package diag

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics 持有私有 Prometheus 注册表与运行指标：
//   - pdbgraph_op_total{comp,stage,result}
//   - pdbgraph_error_total{comp,code}
//   - pdbgraph_op_duration_seconds{comp,stage}
//   - pdbgraph_proteins_total{result}
//   - pdbgraph_graph_edges
type Metrics struct {
	OpTotal    *prometheus.CounterVec
	ErrorTotal *prometheus.CounterVec
	OpDuration *prometheus.HistogramVec
	Proteins   *prometheus.CounterVec
	GraphEdges prometheus.Histogram
	registry   *prometheus.Registry
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// DefaultMetrics 返回进程级注册表。
func DefaultMetrics() *Metrics {
	metricsOnce.Do(func() { defaultMetrics = NewMetrics() })
	return defaultMetrics
}

// NewMetrics 创建独立注册表。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		OpTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdbgraph_op_total",
			Help: "Completed pipeline operations by component and result",
		}, []string{"comp", "stage", "result"}),
		ErrorTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdbgraph_error_total",
			Help: "Errors and skipped inputs by component and classification code",
		}, []string{"comp", "code"}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdbgraph_op_duration_seconds",
			Help:    "Operation duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"comp", "stage"}),
		Proteins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdbgraph_proteins_total",
			Help: "Structure files by outcome (graph, malformed, rejected, ignored)",
		}, []string{"result"}),
		GraphEdges: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdbgraph_graph_edges",
			Help:    "Edges per residue graph",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		}),
	}
}

// Registry 返回底层注册表。
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// IncOp 累加操作计数（result=success|error）。
func (m *Metrics) IncOp(comp, stage, result string) {
	m.OpTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func (m *Metrics) IncError(comp, code string) {
	m.ErrorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时。
func (m *Metrics) ObserveDuration(comp, stage string, d time.Duration) {
	m.OpDuration.WithLabelValues(comp, stage).Observe(d.Seconds())
}

// ObserveProtein 记录单个结构文件的处理结果。
func (m *Metrics) ObserveProtein(result string) {
	m.Proteins.WithLabelValues(result).Inc()
}

// ObserveGraph 记录单个图的边数。
func (m *Metrics) ObserveGraph(edges int) {
	m.GraphEdges.Observe(float64(edges))
}

// WriteText 以 Prometheus 文本格式导出全部指标。
func (m *Metrics) WriteText(w io.Writer) error {
	mfs, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile 导出到文件（先写临时文件再改名）。
func (m *Metrics) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return err
	}
	if err := m.WriteText(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
