package contract

import (
	"context"
	"io"
)

// ArtifactID: 持久化工件标识（与 FileID 同一表示）。
type ArtifactID = FileID

// Writer: 将数据集工件以流式方式持久化到目标介质（文件系统/对象存储等）。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 按字节透传，不读取/修改业务内容；
//  3. ctx 取消/超时需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// Stater: 可选扩展。实现方可报告工件是否已存在，编排层据此跳过重建。
type Stater interface {
	Exists(ctx context.Context, id ArtifactID) (bool, error)
}
