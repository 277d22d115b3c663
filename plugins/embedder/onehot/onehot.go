// Package onehot 将残基序列编码为 one-hot 节点特征。
package onehot

import (
	"context"
	"fmt"
	"strings"

	"pdbgraph/pkg/contract"
)

// DefaultAlphabet: 20 种标准氨基酸，按字母序。
const DefaultAlphabet = "ACDEFGHIKLMNPQRSTVWY"

// Options 为 one-hot Embedder 的可选配置。
type Options struct {
	// Alphabet: 编码字母表（大小写不敏感，不可重复），默认 DefaultAlphabet。
	Alphabet string `json:"alphabet"`
	// Unknown: zero（全零行，默认）| extra（追加一列标记未知）。
	Unknown string `json:"unknown"`
}

// Embedder 实现 contract.Embedder。
type Embedder struct {
	index map[byte]int
	width int
	extra bool
}

// New 创建 Embedder。
func New(opts *Options) (*Embedder, error) {
	alpha := DefaultAlphabet
	unknown := "zero"
	if opts != nil {
		if opts.Alphabet != "" {
			alpha = strings.ToUpper(opts.Alphabet)
		}
		if opts.Unknown != "" {
			unknown = opts.Unknown
		}
	}
	e := &Embedder{index: make(map[byte]int, len(alpha)), width: len(alpha)}
	for i := 0; i < len(alpha); i++ {
		if _, dup := e.index[alpha[i]]; dup {
			return nil, fmt.Errorf("%w: duplicate letter %q in alphabet", contract.ErrInvalidInput, alpha[i])
		}
		e.index[alpha[i]] = i
	}
	switch unknown {
	case "zero":
	case "extra":
		e.extra = true
		e.width++
	default:
		return nil, fmt.Errorf("%w: unknown %q (want zero|extra)", contract.ErrInvalidInput, unknown)
	}
	return e, nil
}

// Dim 返回特征列数。
func (e *Embedder) Dim() int { return e.width }

// Embed 逐残基生成 one-hot 行。
func (e *Embedder) Embed(ctx context.Context, sequence string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 单块分配，按行切片
	flat := make([]float32, len(sequence)*e.width)
	rows := make([][]float32, len(sequence))
	for i := 0; i < len(sequence); i++ {
		row := flat[i*e.width : (i+1)*e.width : (i+1)*e.width]
		c := sequence[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		if j, ok := e.index[c]; ok {
			row[j] = 1
		} else if e.extra {
			row[e.width-1] = 1
		}
		rows[i] = row
	}
	return rows, nil
}
