package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"testing"

	"pdbgraph/pkg/contract"
	"pdbgraph/plugins/collator/blob"
	"pdbgraph/plugins/embedder/onehot"
	"pdbgraph/plugins/graph/knn"
	"pdbgraph/plugins/graph/radius"
	"pdbgraph/plugins/parser/pdb"
)

// discardWriter 丢弃所有输出，避免磁盘开销。
type discardWriter struct{}

func (discardWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// helixPDB 生成 n 个残基的理想 α 螺旋（每圈 3.6 残基，螺距 1.5Å）。
func helixPDB(n int) string {
	res := []string{"ALA", "GLY", "LEU", "SER", "VAL", "LYS"}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		a := float64(i) * 2 * math.Pi / 3.6
		sb.WriteString(caLine(i+1, res[i%len(res)], "A", i+1, 2.3*math.Cos(a), 2.3*math.Sin(a), 1.5*float64(i)))
		sb.WriteByte('\n')
	}
	sb.WriteString("END\n")
	return sb.String()
}

// BenchmarkPipeline 测试完整流水线的性能。
func BenchmarkPipeline(b *testing.B) {
	files := memReader{}
	var inputs []string
	for i := 0; i < 32; i++ {
		id := fmt.Sprintf("bench/%04d.pdb", i)
		files[id] = helixPDB(300)
		inputs = append(inputs, id)
	}
	parser, _ := pdb.New(&pdb.Options{})
	emb, _ := onehot.New(&onehot.Options{})
	rb, _ := radius.New(&radius.Options{})
	kb, _ := knn.New(&knn.Options{})
	builders := map[string]contract.GraphBuilder{"radius": rb, "knn": kb}
	for _, name := range []string{"radius", "knn"} {
		for _, c := range []int{1, runtime.NumCPU()} {
			b.Run(fmt.Sprintf("%s/C=%d", name, c), func(b *testing.B) {
				comp := Components{
					Reader: files, Parser: parser, Annotator: stubAnnotator{}, Embedder: emb,
					Graph: builders[name], Collator: blob.New(nil), Writer: discardWriter{},
				}
				set := Settings{Name: "bench", Inputs: inputs, Concurrency: c}
				ctx := context.Background()
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := Run(ctx, comp, set, nil); err != nil {
						b.Fatalf("运行失败: %v", err)
					}
				}
			})
		}
	}
}
