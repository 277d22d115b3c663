// Package knn 以 k 近邻构造残基邻近图。
package knn

import (
	"context"
	"fmt"
	"sort"

	"pdbgraph/internal/spatial"
	"pdbgraph/pkg/contract"
)

// DefaultK: 默认近邻数。
const DefaultK = 5

// Options 为 kNN 图的可选配置。
type Options struct {
	// K: 每个节点的出边数，默认 5；残基不足时截断为 n-1。
	K int `json:"k"`
	// Weighted: true 时边权为距离，否则为 1。
	Weighted bool `json:"weighted"`
}

// Builder 实现 contract.GraphBuilder。
type Builder struct {
	k        int
	weighted bool
}

// New 创建 Builder。
func New(opts *Options) (*Builder, error) {
	b := &Builder{k: DefaultK}
	if opts != nil {
		if opts.K < 0 {
			return nil, fmt.Errorf("%w: k must be >= 0", contract.ErrInvalidInput)
		}
		if opts.K > 0 {
			b.k = opts.K
		}
		b.weighted = opts.Weighted
	}
	return b, nil
}

// Build 为每个残基生成指向其 min(k, n-1) 个最近邻的出边；同距取较小下标。
func (b *Builder) Build(ctx context.Context, coords []contract.Coord) ([]contract.Edge, error) {
	var edges []contract.Edge
	for i := range coords {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		nbs := spatial.Nearest(coords, i, b.k)
		sort.Slice(nbs, func(a, c int) bool { return nbs[a].Index < nbs[c].Index })
		for _, nb := range nbs {
			w := float32(1)
			if b.weighted {
				w = float32(nb.Dist)
			}
			edges = append(edges, contract.Edge{Src: i, Dst: nb.Index, Weight: w})
		}
	}
	return edges, nil
}
