package contract

import "context"

// Annotator: 为 Protein 附加逐残基属性（例如结合位点标签）。
// 约束：仅写入 Protein.Attrs；所需伴随文件缺失时返回 ErrMissingInput。
type Annotator interface {
	Annotate(ctx context.Context, p *Protein) error
}
