package contract

import (
	"context"
	"io"
)

// Collator: 将有序 Graph 集合整体序列化为单个数据集工件。
// 约束：
//  1. 保持输入顺序；
//  2. 不做增量更新，每次产出完整工件；
//  3. 空集合返回 ErrInvalidInput。
type Collator interface {
	Collate(ctx context.Context, name string, graphs []Graph) (io.Reader, error)
	// Ext: 工件扩展名（含点），用于派生 ArtifactID。
	Ext() string
}
