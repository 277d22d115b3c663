package pipeline

import (
	"fmt"

	"pdbgraph/pkg/contract"
)

// Validate 按运行设置过滤蛋白；不通过时返回 ErrRejected（跳过，不致命）。
//   - OnlySingleChain: 残基只能来自一条链；
//   - CheckSequence: 残基编号必须恰为 1..n 且有序。
func Validate(p *contract.Protein, set Settings) error {
	if set.OnlySingleChain {
		if chains := p.Chains(); len(chains) > 1 {
			return fmt.Errorf("%w: %s spans %d chains", contract.ErrRejected, p.ID, len(chains))
		}
	}
	if set.CheckSequence {
		for i, idx := range p.ResidueIndex {
			if idx != i+1 {
				return fmt.Errorf("%w: %s residue %d numbered %d", contract.ErrRejected, p.ID, i, idx)
			}
		}
	}
	return nil
}
