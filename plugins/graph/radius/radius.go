// Package radius 以距离阈值构造残基邻近图（eps 图）。
package radius

import (
	"context"
	"fmt"
	"math"

	"pdbgraph/internal/spatial"
	"pdbgraph/pkg/contract"
)

// DefaultEps: 默认半径（Å）。
const DefaultEps = 8.0

// Options 为半径图的可选配置。
type Options struct {
	// Eps: 距离阈值（含边界），默认 8。
	Eps float64 `json:"eps"`
	// Weighted: true 时边权为距离，否则为 1。
	Weighted bool `json:"weighted"`
}

// Builder 实现 contract.GraphBuilder。
type Builder struct {
	eps      float64
	weighted bool
}

// New 创建 Builder。
func New(opts *Options) (*Builder, error) {
	b := &Builder{eps: DefaultEps}
	if opts != nil {
		if opts.Eps < 0 || math.IsNaN(opts.Eps) || math.IsInf(opts.Eps, 0) {
			return nil, fmt.Errorf("%w: eps must be a finite non-negative number", contract.ErrInvalidInput)
		}
		if opts.Eps > 0 {
			b.eps = opts.Eps
		}
		b.weighted = opts.Weighted
	}
	return b, nil
}

// Build 为每对距离不超过 eps 的残基生成双向边，按 (Src, Dst) 排序。
func (b *Builder) Build(ctx context.Context, coords []contract.Coord) ([]contract.Edge, error) {
	g := spatial.NewGrid(coords, b.eps)
	var edges []contract.Edge
	for i := range coords {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, nb := range g.Within(i, b.eps) {
			w := float32(1)
			if b.weighted {
				w = float32(nb.Dist)
			}
			edges = append(edges, contract.Edge{Src: i, Dst: nb.Index, Weight: w})
		}
	}
	return edges, nil
}
