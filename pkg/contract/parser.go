package contract

import (
	"context"
	"io"
)

// Parser: 将单个结构文件字节流解析为残基级 Protein。
// 约束：
// 1) 不跨文件合并；
// 2) 返回 (nil, nil) 表示“非本解析器负责的文件”，编排层静默忽略；
// 3) 格式问题以 ErrMalformed 包装返回，由编排层跳过；
// 4) 无内部并发、幂等。
type Parser interface {
	Parse(ctx context.Context, fileID FileID, r io.Reader) (*Protein, error)
}
