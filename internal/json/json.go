//go:build (amd64 || arm64) && !nosonic

// Package json 为仓库内统一的 JSON 引擎入口。
//
// amd64/arm64 下使用 bytedance/sonic；其余平台或指定 nosonic 构建标签时退回 json-iterator。
// 两种实现的配置保持一致：map 键排序输出、数字以 json.Number 解码、不转义 HTML。
package json

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.Config{
	EscapeHTML:       false,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

// Engine 返回当前使用的实现名称，主要用于日志。
func Engine() string { return "sonic" }

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

func Valid(data []byte) bool {
	return api.Valid(data)
}

// NewDecoder 基于 r 创建流式解码器。
func NewDecoder(r io.Reader) Decoder {
	return api.NewDecoder(r)
}

// Decoder 为两种实现共同满足的最小解码器接口。
type Decoder interface {
	Decode(v any) error
}
