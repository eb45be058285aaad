package rest

import (
	"bytes"
	"io"

	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
)

// TakeStream 接管响应体流，之后由调用方负责关闭。响应已缓冲时以 Body 代替。
func TakeStream(resp *wire.Response) io.ReadCloser {
	stream := resp.Stream
	resp.Stream = nil
	if stream == nil {
		stream = io.NopCloser(bytes.NewReader(resp.Body))
	}
	return stream
}

// RequestStream 将字节流请求体包装为 io.ReadCloser，调用方传入的 Closer 会被保留。
func RequestStream(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}
