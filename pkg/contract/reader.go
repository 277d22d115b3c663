package contract

import (
	"context"
	"io"
)

// Reader: 结构文件来源（文件/目录/STDIN）。
// 逐文件回调原始字节流，目录按字典序稳定遍历；不解压、不解析，内部不起并发。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, rc io.ReadCloser) error) error
}
