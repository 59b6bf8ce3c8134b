package engine

import "fmt"

// ErrEmptySeries：输入序列为空，直接中止，不产出部分结果。
var ErrEmptySeries = fmt.Errorf("bar 序列为空")

// MissingFieldError 表示某根 K 线缺少必需字段（或取值非法）。
type MissingFieldError struct {
	Field string
	Index int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("第 %d 根 bar 缺少有效的 %s 字段", e.Index, e.Field)
}
