package contract

import "errors"

// 最小错误分类（用于编排层分类与退出码判定）。
var (
	// ErrInvalidInput: 参数/配置/选项不合法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedType: 没有可处理该 MIME 的提取器。
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrExtractFailed: 提取器识别了格式但解析失败（损坏/加密/解码失败）。
	ErrExtractFailed = errors.New("extract failed")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrTooLarge: 输入或解压结果超过配置上限。
	ErrTooLarge = errors.New("too large")
	// ErrStoreFailed: 报告持久化失败。
	ErrStoreFailed = errors.New("store failed")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
