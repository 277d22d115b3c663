package contract

import "errors"

// 最小错误分类（用于上层策略判定：跳过 / 中止）。
var (
	// ErrMalformed: 输入结构文件格式不合法；编排层跳过该文件并计数。
	ErrMalformed = errors.New("malformed input")
	// ErrRejected: 输入合法但未通过过滤条件（单链/序号连续性）；跳过。
	ErrRejected = errors.New("rejected by filter")
	// ErrMissingInput: 必需的伴随文件缺失（如 pocket 文件）；中止整个运行。
	ErrMissingInput = errors.New("missing required input")
	// ErrInvalidInput: 参数或输入集合非法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrFormat: 数据集工件损坏（魔数/版本/摘要/条数不符）。
	ErrFormat = errors.New("dataset format error")
)
