package contract

import "context"

// Embedder: 由残基序列生成节点特征矩阵（每个残基一行，列数为 Dim）。
// 纯计算，不做 I/O。
type Embedder interface {
	Embed(ctx context.Context, sequence string) ([][]float32, error)
	Dim() int
}
