package contract

import (
	"context"
	"fmt"
)

// Edge: 有向边（Src→Dst）及标量权重。
type Edge struct {
	Src    int     `json:"src"`
	Dst    int     `json:"dst"`
	Weight float32 `json:"w"`
}

// GraphBuilder: 由残基坐标构造空间邻近图。
// 约束：边端点均落在 [0, len(coords))；按 (Src, Dst) 升序输出；纯计算。
type GraphBuilder interface {
	Build(ctx context.Context, coords []Coord) ([]Edge, error)
}

// Graph: 单个蛋白的图记录，携带来源蛋白的全部元数据。
type Graph struct {
	ID           string               `json:"id"`
	FileID       FileID               `json:"file_id"`
	Sequence     string               `json:"seq"`
	ResidueIndex []int                `json:"residue_index"`
	ChainID      []string             `json:"chain_id"`
	Coords       []Coord              `json:"coords"`
	X            [][]float32          `json:"x"`
	Edges        []Edge               `json:"edges"`
	Attrs        map[string][]float64 `json:"attrs,omitempty"`
}

// NumNodes 返回节点数。
func (g *Graph) NumNodes() int { return len(g.X) }

// NewGraph 组合蛋白、节点特征与边，并校验不变量：
// 节点数等于残基数；特征行宽一致；边端点在 [0, n)。
func NewGraph(p *Protein, x [][]float32, edges []Edge) (Graph, error) {
	if err := p.Validate(); err != nil {
		return Graph{}, err
	}
	n := p.Len()
	if len(x) != n {
		return Graph{}, fmt.Errorf("%w: %s: %d feature rows for %d residues", ErrInvariantViolation, p.ID, len(x), n)
	}
	for i := 1; i < n; i++ {
		if len(x[i]) != len(x[0]) {
			return Graph{}, fmt.Errorf("%w: %s: ragged feature row %d", ErrInvariantViolation, p.ID, i)
		}
	}
	for _, e := range edges {
		if e.Src < 0 || e.Src >= n || e.Dst < 0 || e.Dst >= n {
			return Graph{}, fmt.Errorf("%w: %s: edge %d->%d outside [0,%d)", ErrInvariantViolation, p.ID, e.Src, e.Dst, n)
		}
	}
	return Graph{
		ID:           p.ID,
		FileID:       p.FileID,
		Sequence:     p.Sequence,
		ResidueIndex: p.ResidueIndex,
		ChainID:      p.ChainID,
		Coords:       p.Coords,
		X:            x,
		Edges:        edges,
		Attrs:        p.Attrs,
	}, nil
}

// Validate 复核反序列化后的图记录。
func (g *Graph) Validate() error {
	p := Protein{ID: g.ID, Sequence: g.Sequence, ResidueIndex: g.ResidueIndex, ChainID: g.ChainID, Coords: g.Coords, Attrs: g.Attrs}
	_, err := NewGraph(&p, g.X, g.Edges)
	return err
}
