package contract

import (
	"context"
	"io"
)

// ArtifactID: 输出工件标识（与 FileID 同一表示，例如 "report.json"）。
type ArtifactID = FileID

// Writer: 将报告等工件以流式方式持久化到目标介质。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 流式写入，按字节透传，不读取/修改内容；
//  3. ctx 取消/超时需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// Store: 结构化持久化（例如 SQLite）。与 Writer 互补：Writer 写字节流，Store 写记录。
type Store interface {
	Save(ctx context.Context, rep Report) error
}
