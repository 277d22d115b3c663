// Package spatial 提供残基坐标上的邻近查询：半径查询使用均匀网格分桶，
// kNN 使用有界最大堆扫描。所有结果确定性排序。
package spatial

import (
	"container/heap"
	"math"
	"sort"

	"pdbgraph/pkg/contract"
)

// Neighbor: 邻居下标与欧氏距离。
type Neighbor struct {
	Index int
	Dist  float64
}

// Dist 返回两点欧氏距离。
func Dist(a, b contract.Coord) float64 {
	return math.Sqrt(dist2(a, b))
}

func dist2(a, b contract.Coord) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

type cellKey [3]int64

// Grid: 以 cell 为边长的均匀网格；半径不超过 cell 的查询只需扫描 27 个相邻格。
type Grid struct {
	cell   float64
	points []contract.Coord
	cells  map[cellKey][]int
}

// NewGrid 构建网格。cell<=0 时退化为单格（全扫描）。
func NewGrid(points []contract.Coord, cell float64) *Grid {
	g := &Grid{cell: cell, points: points, cells: make(map[cellKey][]int, len(points))}
	for i, p := range points {
		k := g.key(p)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *Grid) key(p contract.Coord) cellKey {
	if g.cell <= 0 {
		return cellKey{}
	}
	return cellKey{
		int64(math.Floor(p[0] / g.cell)),
		int64(math.Floor(p[1] / g.cell)),
		int64(math.Floor(p[2] / g.cell)),
	}
}

// Within 返回与点 i 距离 ≤ r 的全部 j≠i，按下标升序。
func (g *Grid) Within(i int, r float64) []Neighbor {
	if r < 0 || math.IsNaN(r) {
		return nil
	}
	p := g.points[i]
	r2 := r * r
	var out []Neighbor
	visit := func(idx []int) {
		for _, j := range idx {
			if j == i {
				continue
			}
			if d := dist2(p, g.points[j]); d <= r2 {
				out = append(out, Neighbor{Index: j, Dist: math.Sqrt(d)})
			}
		}
	}
	if g.cell <= 0 || r > g.cell {
		for _, idx := range g.cells {
			visit(idx)
		}
	} else {
		c := g.key(p)
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					visit(g.cells[cellKey{c[0] + dx, c[1] + dy, c[2] + dz}])
				}
			}
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}

// maxHeap: 堆顶为当前候选中“最差”的邻居（距离大者；同距时下标大者）。
type maxHeap []Neighbor

func worse(a, b Neighbor) bool {
	if a.Dist != b.Dist {
		return a.Dist > b.Dist
	}
	return a.Index > b.Index
}

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Nearest 返回点 i 的 k 个最近邻（j≠i），同距按较小下标优先；
// k 超过 n-1 时截断。结果按 (Dist, Index) 升序。
func Nearest(points []contract.Coord, i, k int) []Neighbor {
	if k > len(points)-1 {
		k = len(points) - 1
	}
	if k <= 0 {
		return nil
	}
	h := make(maxHeap, 0, k+1)
	for j, q := range points {
		if j == i {
			continue
		}
		cand := Neighbor{Index: j, Dist: Dist(points[i], q)}
		if h.Len() < k {
			heap.Push(&h, cand)
			continue
		}
		if worse(h[0], cand) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}
	out := []Neighbor(h)
	sort.Slice(out, func(a, b int) bool { return worse(out[b], out[a]) })
	return out
}
