package diag

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"time"

	"pdbgraph/pkg/contract"
)

// Code 是最小错误分类代码，用于日志与指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeMalformed Code = "malformed"
	CodeRejected  Code = "rejected"
	CodeMissing   Code = "missing"
	CodeInvariant Code = "invariant"
	CodeFormat    Code = "format"
	CodeIO        Code = "io"
	CodeNetwork   Code = "network"
	CodeCancel    Code = "cancel"
)

// Classify 将错误归为最小分类；仅依赖哨兵与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrMalformed):
		return CodeMalformed
	case errors.Is(err, contract.ErrRejected):
		return CodeRejected
	case errors.Is(err, contract.ErrMissingInput):
		return CodeMissing
	case errors.Is(err, contract.ErrFormat):
		return CodeFormat
	case errors.Is(err, contract.ErrInvariantViolation),
		errors.Is(err, contract.ErrInvalidInput),
		errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
