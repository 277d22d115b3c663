package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pdbgraph/internal/diag"
	"pdbgraph/pkg/contract"
	"pdbgraph/pkg/dataset"
	"pdbgraph/plugins/collator/blob"
	"pdbgraph/plugins/embedder/onehot"
	"pdbgraph/plugins/graph/radius"
	"pdbgraph/plugins/parser/pdb"
)

// 通用桩件 ----------------------------------------------------
type stubReader struct {
	files []string
	calls atomic.Int32
}

func (r *stubReader) Iterate(ctx context.Context, roots []string, yield func(contract.FileID, io.ReadCloser) error) error {
	r.calls.Add(1)
	for _, f := range r.files {
		if err := yield(contract.FileID(f), io.NopCloser(strings.NewReader(f))); err != nil {
			return err
		}
	}
	return nil
}

// stubParser: 按内容决定结果；越靠前的文件越慢，制造乱序完成。
type stubParser struct {
	n int
}

func (p stubParser) Parse(ctx context.Context, fid contract.FileID, r io.Reader) (*contract.Protein, error) {
	b, _ := io.ReadAll(r)
	s := string(b)
	switch {
	case strings.HasPrefix(s, "bad"):
		return nil, fmt.Errorf("%w: %s", contract.ErrMalformed, s)
	case strings.HasPrefix(s, "skip"):
		return nil, nil
	case strings.HasPrefix(s, "boom"):
		return nil, fmt.Errorf("disk on fire")
	}
	var idx int
	_, _ = fmt.Sscanf(s, "f%d", &idx)
	if p.n > 0 {
		time.Sleep(time.Duration(p.n-idx) * time.Millisecond)
	}
	return &contract.Protein{
		ID:           s,
		FileID:       fid,
		Sequence:     "AC",
		ResidueIndex: []int{1, 2},
		ChainID:      []string{"A", "A"},
		Coords:       []contract.Coord{{0, 0, 0}, {1, 0, 0}},
	}, nil
}

type stubAnnotator struct{ err error }

func (a stubAnnotator) Annotate(ctx context.Context, p *contract.Protein) error { return a.err }

type stubEmbedder struct{}

func (stubEmbedder) Dim() int { return 1 }
func (stubEmbedder) Embed(ctx context.Context, seq string) ([][]float32, error) {
	out := make([][]float32, len(seq))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

type stubGraph struct{}

func (stubGraph) Build(ctx context.Context, coords []contract.Coord) ([]contract.Edge, error) {
	return []contract.Edge{{Src: 0, Dst: 1, Weight: 1}, {Src: 1, Dst: 0, Weight: 1}}, nil
}

type stubCollator struct {
	mu  sync.Mutex
	ids []string
}

func (c *stubCollator) Ext() string { return ".test" }
func (c *stubCollator) Collate(ctx context.Context, name string, gs []contract.Graph) (io.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range gs {
		c.ids = append(c.ids, g.ID)
	}
	return strings.NewReader(name), nil
}

type stubWriter struct {
	exists bool
	out    map[contract.ArtifactID]string
}

func (w *stubWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	b, _ := io.ReadAll(r)
	if w.out == nil {
		w.out = map[contract.ArtifactID]string{}
	}
	w.out[id] = string(b)
	return nil
}

func (w *stubWriter) Exists(ctx context.Context, id contract.ArtifactID) (bool, error) {
	return w.exists, nil
}

func stubComponents(files ...string) (Components, *stubCollator, *stubWriter) {
	col, w := &stubCollator{}, &stubWriter{}
	return Components{
		Reader:    &stubReader{files: files},
		Parser:    stubParser{},
		Annotator: stubAnnotator{},
		Embedder:  stubEmbedder{},
		Graph:     stubGraph{},
		Collator:  col,
		Writer:    w,
	}, col, w
}

func testLogger() (*diag.Logger, *diag.Metrics) {
	m := diag.NewMetrics()
	return diag.NewLoggerWithSink("t", "debug", discardSink{}).WithMetrics(m), m
}

type discardSink struct{}

func (discardSink) WriteLine([]byte) error { return nil }

// UT-PIP-01: 乱序完成仍按输入顺序提交
func TestRunOrderedCommit(t *testing.T) {
	var files []string
	for i := 0; i < 24; i++ {
		files = append(files, fmt.Sprintf("f%02d", i))
	}
	comp, col, w := stubComponents(files...)
	comp.Parser = stubParser{n: 24}
	logger, m := testLogger()

	sum, err := Run(context.Background(), comp, Settings{Name: "ds", Inputs: []string{"in"}, Concurrency: 8}, logger)
	require.NoError(t, err)
	require.Equal(t, files, col.ids)
	require.Equal(t, 24, sum.Files)
	require.Equal(t, 24, sum.Graphs)
	require.Equal(t, 48, sum.Edges)
	require.Equal(t, contract.ArtifactID("ds.test"), sum.Artifact)
	require.Equal(t, "ds", w.out["ds.test"])

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	require.Contains(t, buf.String(), `pdbgraph_proteins_total{result="graph"} 24`)
}

// UT-PIP-02: malformed / ignored / rejected 跳过并计数
func TestRunSkips(t *testing.T) {
	comp, col, _ := stubComponents("f01", "bad1", "skip1", "f02", "bad2")
	logger, _ := testLogger()
	sum, err := Run(context.Background(), comp, Settings{Name: "ds", Concurrency: 2}, logger)
	require.NoError(t, err)
	require.Equal(t, []string{"f01", "f02"}, col.ids)
	require.Equal(t, 5, sum.Files)
	require.Equal(t, map[string]int{"malformed": 2, "ignored": 1}, sum.Skipped)
	require.Equal(t, 3, sum.SkippedTotal())
	require.Equal(t, []string{"ignored", "malformed"}, sum.SkipReasons())

	comp, col, _ = stubComponents("f01", "f02")
	sum, err = Run(context.Background(), comp, Settings{Name: "ds", OnlySingleChain: true, CheckSequence: true}, logger)
	require.NoError(t, err)
	require.Len(t, col.ids, 2)
	require.Empty(t, sum.Skipped)
}

// UT-PIP-03: 致命错误中止且不写出
func TestRunFatal(t *testing.T) {
	comp, _, w := stubComponents("f01", "f02")
	comp.Annotator = stubAnnotator{err: fmt.Errorf("pocket: %w", contract.ErrMissingInput)}
	_, err := Run(context.Background(), comp, Settings{Name: "ds", Concurrency: 2}, nil)
	require.ErrorIs(t, err, contract.ErrMissingInput)
	require.Empty(t, w.out)

	comp, _, w = stubComponents("f01", "boom", "f02")
	_, err = Run(context.Background(), comp, Settings{Name: "ds", Concurrency: 1}, nil)
	require.ErrorContains(t, err, "disk on fire")
	require.Empty(t, w.out)
}

// UT-PIP-04: 无任何图
func TestRunNoGraphs(t *testing.T) {
	comp, _, w := stubComponents("bad", "skip")
	_, err := Run(context.Background(), comp, Settings{Name: "ds"}, nil)
	require.ErrorIs(t, err, contract.ErrInvalidInput)
	require.Empty(t, w.out)
}

// UT-PIP-05: 产物已存在时不重建；force 时重建
func TestRunCached(t *testing.T) {
	comp, _, w := stubComponents("f01")
	w.exists = true
	sum, err := Run(context.Background(), comp, Settings{Name: "ds"}, nil)
	require.NoError(t, err)
	require.True(t, sum.Cached)
	require.Zero(t, comp.Reader.(*stubReader).calls.Load())
	require.Empty(t, w.out)

	sum, err = Run(context.Background(), comp, Settings{Name: "ds", Force: true}, nil)
	require.NoError(t, err)
	require.False(t, sum.Cached)
	require.Equal(t, 1, sum.Graphs)
	require.Contains(t, w.out, contract.ArtifactID("ds.test"))
}

func TestRunSanity(t *testing.T) {
	_, err := Run(context.Background(), Components{}, Settings{Name: "ds"}, nil)
	require.Error(t, err)
	comp, _, _ := stubComponents("f01")
	_, err = Run(context.Background(), comp, Settings{}, nil)
	require.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestRunCanceled(t *testing.T) {
	comp, _, w := stubComponents("f01", "f02")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, comp, Settings{Name: "ds"}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, w.out)
}

func TestValidate(t *testing.T) {
	p := &contract.Protein{
		ID:           "x",
		Sequence:     "ACD",
		ResidueIndex: []int{1, 2, 4},
		ChainID:      []string{"A", "A", "B"},
		Coords:       make([]contract.Coord, 3),
	}
	require.NoError(t, Validate(p, Settings{}))
	require.ErrorIs(t, Validate(p, Settings{OnlySingleChain: true}), contract.ErrRejected)
	require.ErrorIs(t, Validate(p, Settings{CheckSequence: true}), contract.ErrRejected)
	p.ChainID = []string{"A", "A", "A"}
	p.ResidueIndex = []int{1, 2, 3}
	require.NoError(t, Validate(p, Settings{OnlySingleChain: true, CheckSequence: true}))
	p.ResidueIndex = []int{2, 3, 4}
	require.ErrorIs(t, Validate(p, Settings{CheckSequence: true}), contract.ErrRejected)
}

// 真实组件串联：PDB 文本 → radius 图 → blob → 解码
type memReader map[string]string

func (m memReader) Iterate(ctx context.Context, roots []string, yield func(contract.FileID, io.ReadCloser) error) error {
	for _, k := range roots {
		if err := yield(contract.FileID(k), io.NopCloser(strings.NewReader(m[k]))); err != nil {
			return err
		}
	}
	return nil
}

func caLine(serial int, res string, chain string, seq int, x, y, z float64) string {
	return fmt.Sprintf("ATOM  %5d  CA  %3s %1s%4d    %8.3f%8.3f%8.3f  1.00  0.00           C", serial, res, chain, seq, x, y, z)
}

func TestRunRealComponents(t *testing.T) {
	one := strings.Join([]string{
		caLine(1, "ALA", "A", 1, 0, 0, 0),
		caLine(2, "CYS", "A", 2, 3.8, 0, 0),
		caLine(3, "GLY", "A", 3, 20, 0, 0),
		"END",
	}, "\n")
	two := strings.Join([]string{
		caLine(1, "TRP", "A", 1, 0, 0, 0),
		caLine(2, "TYR", "B", 1, 0, 5, 0),
		"END",
	}, "\n")
	parser, err := pdb.New(&pdb.Options{})
	require.NoError(t, err)
	emb, err := onehot.New(&onehot.Options{})
	require.NoError(t, err)
	gb, err := radius.New(&radius.Options{})
	require.NoError(t, err)
	w := &stubWriter{}
	comp := Components{
		Reader:    memReader{"a/1abc.pdb": one, "a/2xyz.pdb": two, "a/notes.txt": "hello"},
		Parser:    parser,
		Annotator: stubAnnotator{},
		Embedder:  emb,
		Graph:     gb,
		Collator:  blob.New(&blob.Options{UniqueIDs: true}),
		Writer:    w,
	}
	set := Settings{Name: "demo", Inputs: []string{"a/1abc.pdb", "a/notes.txt", "a/2xyz.pdb"}, Concurrency: 2, OnlySingleChain: true}
	sum, err := Run(context.Background(), comp, set, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Graphs)
	require.Equal(t, map[string]int{"ignored": 1, "rejected": 1}, sum.Skipped)

	ds, err := dataset.Decode(strings.NewReader(w.out["demo"+dataset.Ext]))
	require.NoError(t, err)
	require.Len(t, ds.Graphs, 1)
	g := ds.Graphs[0]
	require.Equal(t, "1abc", g.ID)
	require.Equal(t, "ACG", g.Sequence)
	require.Equal(t, []contract.Edge{{Src: 0, Dst: 1, Weight: 1}, {Src: 1, Dst: 0, Weight: 1}}, g.Edges)
	require.Len(t, g.X[0], emb.Dim())
}

// 非有限坐标的文件按 malformed 跳过，其余图照常写出
func TestRunNonFiniteCoordSkipped(t *testing.T) {
	good := strings.Join([]string{
		caLine(1, "ALA", "A", 1, 0, 0, 0),
		caLine(2, "CYS", "A", 2, 3.8, 0, 0),
		"END",
	}, "\n")
	bad := strings.Join([]string{
		caLine(1, "ALA", "A", 1, math.NaN(), 0, 0),
		caLine(2, "CYS", "A", 2, 3.8, 0, 0),
		"END",
	}, "\n")
	parser, err := pdb.New(nil)
	require.NoError(t, err)
	emb, err := onehot.New(nil)
	require.NoError(t, err)
	gb, err := radius.New(&radius.Options{Weighted: true})
	require.NoError(t, err)
	w := &stubWriter{}
	comp := Components{
		Reader:    memReader{"a.pdb": good, "b.pdb": bad},
		Parser:    parser,
		Annotator: stubAnnotator{},
		Embedder:  emb,
		Graph:     gb,
		Collator:  blob.New(nil),
		Writer:    w,
	}
	set := Settings{Name: "demo", Inputs: []string{"a.pdb", "b.pdb"}, Concurrency: 2}
	sum, err := Run(context.Background(), comp, set, nil)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Files)
	require.Equal(t, 1, sum.Graphs)
	require.Equal(t, map[string]int{"malformed": 1}, sum.Skipped)

	ds, err := dataset.Decode(strings.NewReader(w.out["demo"+dataset.Ext]))
	require.NoError(t, err)
	require.Len(t, ds.Graphs, 1)
	require.Equal(t, "a", ds.Graphs[0].ID)
}
