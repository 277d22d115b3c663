package contract

import "fmt"

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Meta: 可选的轻量元信息；核心流程不读取其键值。
type Meta map[string]string

// Coord: 三维坐标（单位 Å），依次为 X/Y/Z。
type Coord [3]float64

// Protein: 单个结构文件归约后的残基级记录（每个残基一个 CA 原子）。
// 约束：
//   - Sequence/ResidueIndex/ChainID/Coords 等长；
//   - Attrs 中每个向量与残基数等长；
//   - 残基顺序即图节点顺序。
type Protein struct {
	ID           string
	FileID       FileID
	Sequence     string
	ResidueIndex []int
	ChainID      []string
	Coords       []Coord
	// InsertionCode: 逐残基插入码（PDB iCode，空格记为 ""）；nil 表示来源不提供。
	InsertionCode []string
	// Attrs: 附加的逐残基属性（如 binding_site），可为 nil。
	Attrs map[string][]float64
}

// Len 返回残基数。
func (p *Protein) Len() int { return len(p.Sequence) }

// Validate 校验长度不变量。
func (p *Protein) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil protein", ErrInvalidInput)
	}
	n := len(p.Sequence)
	if len(p.ResidueIndex) != n || len(p.ChainID) != n || len(p.Coords) != n {
		return fmt.Errorf("%w: %s: sequence=%d residue_index=%d chain_id=%d coords=%d",
			ErrInvariantViolation, p.ID, n, len(p.ResidueIndex), len(p.ChainID), len(p.Coords))
	}
	if p.InsertionCode != nil && len(p.InsertionCode) != n {
		return fmt.Errorf("%w: %s: insertion_code=%d, want %d", ErrInvariantViolation, p.ID, len(p.InsertionCode), n)
	}
	for k, v := range p.Attrs {
		if len(v) != n {
			return fmt.Errorf("%w: %s: attr %q has %d values, want %d", ErrInvariantViolation, p.ID, k, len(v), n)
		}
	}
	return nil
}

// Chains 返回按首次出现排序的链标识（去重）。
func (p *Protein) Chains() []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	for _, c := range p.ChainID {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SetAttr 写入逐残基属性（覆盖同名）。
func (p *Protein) SetAttr(name string, v []float64) {
	if p.Attrs == nil {
		p.Attrs = make(map[string][]float64, 1)
	}
	p.Attrs[name] = v
}
