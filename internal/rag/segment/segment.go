// Package segment 将有序的文本元素切分为有界大小的文本块。
package segment

import (
	"errors"
	"strings"
)

// Separator 是块内元素之间的分隔符。
const Separator = "\n"

// ErrInvalidChunkSize 表示 chunkSize 不是正数。
var ErrInvalidChunkSize = errors.New("segment: chunk size must be positive")

// Split 按累加策略切分元素。
//
// 元素先去除首尾空白，空元素跳过。当累加器非空且再追加当前元素
// （含分隔符）会超过 chunkSize 时，先输出累加器。chunkSize 是软上限：
// 超长元素不会被拆分，而是单独成为一个块。长度按字节计算。
// 输入为空时返回空切片，由调用方决定是否视为错误。
func Split(elements []string, chunkSize int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	var (
		chunks []string
		acc    strings.Builder
	)

	flush := func() {
		if text := strings.TrimSpace(acc.String()); text != "" {
			chunks = append(chunks, text)
		}
		acc.Reset()
	}

	for _, el := range elements {
		el = strings.TrimSpace(el)
		if el == "" {
			continue
		}
		if acc.Len() > 0 && acc.Len()+len(el)+len(Separator) > chunkSize {
			flush()
		}
		acc.WriteString(el)
		acc.WriteString(Separator)
	}
	flush()

	return chunks, nil
}
