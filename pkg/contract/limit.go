package contract

import (
	"fmt"
	"io"
)

// ReadLimited 读取 r 的全部字节；超过 max（>0 时生效）返回包装 ErrTooLarge 的错误。
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("exceeds %d bytes: %w", max, ErrTooLarge)
	}
	return b, nil
}
