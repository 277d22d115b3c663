// Package blob 将有序图集合整体序列化为单个数据集工件（见 pkg/dataset）。
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"pdbgraph/pkg/contract"
	"pdbgraph/pkg/dataset"
)

// Options 为 blob Collator 的可选配置。
type Options struct {
	// UniqueIDs: 为 true 时拒绝重复的蛋白 ID。
	UniqueIDs bool `json:"unique_ids"`
}

type collator struct {
	unique bool
}

// New 创建 Collator；opts 可为 nil。
func New(opts *Options) contract.Collator {
	c := &collator{}
	if opts != nil {
		c.unique = opts.UniqueIDs
	}
	return c
}

// Ext 返回工件扩展名。
func (c *collator) Ext() string { return dataset.Ext }

// Collate 按输入顺序编码全部图；空集合返回 ErrInvalidInput。
func (c *collator) Collate(ctx context.Context, name string, graphs []contract.Graph) (io.Reader, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(graphs) == 0 {
		return nil, fmt.Errorf("%w: dataset %q has no graphs", contract.ErrInvalidInput, name)
	}
	if c.unique {
		seen := make(map[string]int, len(graphs))
		for i, g := range graphs {
			if j, dup := seen[g.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate id %q (records %d and %d)", contract.ErrInvariantViolation, g.ID, j, i)
			}
			seen[g.ID] = i
		}
	}
	var buf bytes.Buffer
	if err := dataset.Encode(&buf, graphs); err != nil {
		return nil, err
	}
	return &buf, nil
}

var _ contract.Collator = (*collator)(nil)
