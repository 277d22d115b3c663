package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"pdbgraph/internal/diag"
	"pdbgraph/pkg/contract"
)

// - 单点并发：仅此层管理并发与背压；原子组件均为同步、无内部并发。
// - 顺序门闩：按 Reader 给出的序号严格递增提交；乱序结果暂存，连续冲刷。
// - 首错取消：致命错误记录首错并 cancel 整体；可跳过错误（malformed/rejected）只计数。
// - 整体构建：数据集一次性写出；产物已存在且未 force 时直接返回。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Parser    contract.Parser
	Annotator contract.Annotator
	Embedder  contract.Embedder
	Graph     contract.GraphBuilder
	Collator  contract.Collator
	Writer    contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Name: 数据集名；产物 ID 为 Name + Collator.Ext()。
	Name        string
	Inputs      []string
	Concurrency int
	// Force: 忽略已有产物，重新构建。
	Force           bool
	OnlySingleChain bool
	CheckSequence   bool
	// GraphName 仅用于终端提示。
	GraphName string
}

// Summary 为一次运行的结果汇总。
type Summary struct {
	Artifact contract.ArtifactID
	Cached   bool
	Files    int
	Graphs   int
	Edges    int
	// Skipped: 跳过原因（错误码或 "ignored"）→ 文件数。
	Skipped map[string]int
}

// SkippedTotal 返回跳过文件总数。
func (s Summary) SkippedTotal() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// outcome: 单文件处理结果（仅非致命结果进入门闩）。
type outcome struct {
	seq    int
	fileID contract.FileID
	graph  *contract.Graph
	// reason 非空表示跳过
	reason string
}

const reasonIgnored = "ignored"

// Run 执行完整流水线：Reader → Parser → 校验 → Annotator → Embedder → GraphBuilder → Collator → Writer。
// 约束：
// - 所有组件均为同步实现；单文件处理在有界 worker 中并发；
// - 图按输入顺序提交，数据集记录顺序稳定；
// - 一张图都没有时返回 ErrInvalidInput，不写出任何内容。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	sum := Summary{Skipped: map[string]int{}}
	if err := sanity(comp, &set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}
	start := time.Now()
	sum.Artifact = contract.ArtifactID(set.Name + comp.Collator.Ext())

	// 缓存：产物已存在则不重建
	if !set.Force {
		if st, ok := comp.Writer.(contract.Stater); ok {
			exists, err := st.Exists(ctx, sum.Artifact)
			if err != nil {
				logger.Error("writer", err, "", map[string]string{"artifact": string(sum.Artifact)})
				return sum, fmt.Errorf("writer exists: %w", err)
			}
			if exists {
				sum.Cached = true
				logger.Infof("pipeline", map[string]string{"artifact": string(sum.Artifact)}, "dataset exists, skip build")
				diag.GetTerminal().Cached(string(sum.Artifact))
				return sum, nil
			}
		}
	}

	diag.GetTerminal().RunStart(set.Concurrency, set.GraphName)
	graphs, err := build(ctx, comp, set, logger, &sum)
	if err == nil && len(graphs) == 0 {
		err = fmt.Errorf("%w: no structures found in %v", contract.ErrInvalidInput, set.Inputs)
		logger.Error("pipeline", err, "", nil)
	}
	if err == nil {
		err = emit(ctx, comp, set, logger, graphs, sum.Artifact)
	}
	diag.GetTerminal().RunFinish(err == nil, time.Since(start))
	if err != nil {
		return sum, err
	}
	logger.Infof("pipeline", map[string]string{
		"artifact": string(sum.Artifact),
		"files":    fmt.Sprint(sum.Files),
		"graphs":   fmt.Sprint(sum.Graphs),
		"skipped":  fmt.Sprint(sum.SkippedTotal()),
	}, "dataset written")
	return sum, nil
}

// build 读取全部输入并按序收集图。
func build(ctx context.Context, comp Components, set Settings, logger *diag.Logger, sum *Summary) ([]contract.Graph, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(set.Concurrency)

	// 有界通道：2×并发度，提交方总在排空，worker 不会永久阻塞
	outCh := make(chan outcome, set.Concurrency*2)
	var graphs []contract.Graph
	commitDone := make(chan struct{})
	go func() {
		defer close(commitDone)
		expect := 0
		buf := make(map[int]outcome)
		for o := range outCh {
			buf[o.seq] = o
			for {
				next, ok := buf[expect]
				if !ok {
					break
				}
				delete(buf, expect)
				expect++
				commit(next, sum, logger, &graphs)
			}
		}
	}()

	rtimer := logger.Start("reader", "iterate")
	seq := 0
	iterErr := comp.Reader.Iterate(gctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		if err := gctx.Err(); err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read %s: %w", fid, err)
		}
		n := seq
		seq++
		g.Go(func() error {
			o, err := processFile(gctx, comp, set, logger, fid, data)
			if err != nil {
				return err
			}
			o.seq = n
			outCh <- o
			return nil
		})
		return nil
	})
	waitErr := g.Wait()
	close(outCh)
	<-commitDone

	// 首错优先：worker 的致命错误先于其引发的 Reader 取消
	if waitErr != nil {
		rtimer.Fail(waitErr)
		return nil, waitErr
	}
	if iterErr != nil {
		rtimer.Fail(iterErr)
		return nil, fmt.Errorf("reader iterate: %w", iterErr)
	}
	rtimer.Finish("iterate", int64(seq))
	return graphs, nil
}

// commit 在门闩内按序执行：计数、指标、终端提示。
func commit(o outcome, sum *Summary, logger *diag.Logger, graphs *[]contract.Graph) {
	sum.Files++
	m := logger.Metrics()
	if o.reason != "" {
		sum.Skipped[o.reason]++
		m.ObserveProtein(o.reason)
		diag.GetTerminal().FileDone(string(o.fileID), true, o.reason)
		return
	}
	sum.Graphs++
	sum.Edges += len(o.graph.Edges)
	*graphs = append(*graphs, *o.graph)
	m.ObserveProtein("graph")
	m.ObserveGraph(len(o.graph.Edges))
	diag.GetTerminal().FileDone(string(o.fileID), false, "")
}

// processFile: parse → 校验 → annotate → embed → build → NewGraph。
// 返回 error 仅表示致命错误；可跳过的情况写入 outcome.reason。
func processFile(ctx context.Context, comp Components, set Settings, logger *diag.Logger, fid contract.FileID, data []byte) (outcome, error) {
	o := outcome{fileID: fid}
	if err := ctx.Err(); err != nil {
		return o, err
	}
	skip := func(comp string, err error) (outcome, error) {
		logger.Skip(comp, string(fid), err)
		o.reason = string(diag.Classify(err))
		return o, nil
	}

	t := logger.StartFile("parser", "parse", string(fid))
	p, err := comp.Parser.Parse(ctx, fid, bytes.NewReader(data))
	if err != nil {
		if skippable(err) {
			return skip("parser", err)
		}
		t.Fail(err)
		return o, fmt.Errorf("parse %s: %w", fid, err)
	}
	if p == nil {
		logger.Debugf("parser", string(fid), nil, "not a structure file, ignored")
		o.reason = reasonIgnored
		return o, nil
	}
	t.Finish("parse", int64(p.Len()))

	if err := Validate(p, set); err != nil {
		return skip("validate", err)
	}

	t = logger.StartFile("annotator", "annotate", string(fid))
	if err := comp.Annotator.Annotate(ctx, p); err != nil {
		if skippable(err) {
			return skip("annotator", err)
		}
		t.Fail(err)
		return o, fmt.Errorf("annotate %s: %w", fid, err)
	}
	t.Finish("annotate", int64(len(p.Attrs)))

	x, err := comp.Embedder.Embed(ctx, p.Sequence)
	if err != nil {
		logger.Error("embedder", err, string(fid), nil)
		return o, fmt.Errorf("embed %s: %w", fid, err)
	}

	t = logger.StartFile("graph", "build", string(fid))
	edges, err := comp.Graph.Build(ctx, p.Coords)
	if err != nil {
		t.Fail(err)
		return o, fmt.Errorf("build graph %s: %w", fid, err)
	}
	gr, err := contract.NewGraph(p, x, edges)
	if err != nil {
		t.Fail(err)
		return o, fmt.Errorf("graph %s: %w", fid, err)
	}
	t.Finish("build", int64(len(edges)))
	o.graph = &gr
	return o, nil
}

// emit: Collator 序列化后交给 Writer 一次写出。
func emit(ctx context.Context, comp Components, set Settings, logger *diag.Logger, graphs []contract.Graph, id contract.ArtifactID) error {
	t := logger.Start("collator", "collate")
	r, err := comp.Collator.Collate(ctx, set.Name, graphs)
	if err != nil {
		t.Fail(err)
		return fmt.Errorf("collate: %w", err)
	}
	t.Finish("collate", int64(len(graphs)))

	t = logger.StartFile("writer", "write", string(id))
	if err := comp.Writer.Write(ctx, id, r); err != nil {
		t.Fail(err)
		return fmt.Errorf("writer write: %w", err)
	}
	t.Finish("write", 1)
	return nil
}

func skippable(err error) bool {
	return errors.Is(err, contract.ErrMalformed) || errors.Is(err, contract.ErrRejected)
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil || c.Parser == nil || c.Annotator == nil || c.Embedder == nil || c.Graph == nil || c.Collator == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.Name == "" {
		return fmt.Errorf("%w: empty dataset name", contract.ErrInvalidInput)
	}
	return nil
}

// SkipReasons 返回按名称排序的跳过原因（终端与日志输出稳定）。
func (s Summary) SkipReasons() []string {
	out := make([]string, 0, len(s.Skipped))
	for k := range s.Skipped {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
