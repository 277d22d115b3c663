// Package none 提供不附加任何属性的 Annotator。
package none

import (
	"context"

	"pdbgraph/pkg/contract"
)

// Annotator 为空实现。
type Annotator struct{}

// New 创建 Annotator。
func New() *Annotator { return &Annotator{} }

// Annotate 仅检查取消。
func (Annotator) Annotate(ctx context.Context, _ *contract.Protein) error { return ctx.Err() }
