package wire

import (
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Response 为抽象线上响应。
type Response struct {
	StatusCode int
	Headers    Headers

	// Body 为完整缓冲的响应体；流式响应时 Stream 不为 nil，由 unmarshaller 接管并负责关闭。
	Body   []byte
	Stream io.ReadCloser

	ctx context.Context
}

// Context 返回发起该响应的调用上下文，未设置时为 context.Background()。
// 流式响应的读取端以它携带日志字段并响应取消。
func (r *Response) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext 返回 ctx 替换后的浅拷贝，ctx 不能为 nil。
func (r *Response) WithContext(ctx context.Context) *Response {
	if ctx == nil {
		panic("nil context")
	}
	r2 := new(Response)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

// IsSuccess 判断状态码是否为 2xx。
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Close 释放未被接管的响应流。
func (r *Response) Close() error {
	if r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}

// Buffer 将 Stream 读入 Body，用于错误响应等需要完整响应体的场景。
func (r *Response) Buffer() error {
	if r.Stream == nil {
		return nil
	}
	defer func() {
		r.Stream.Close()
		r.Stream = nil
	}()
	data, err := io.ReadAll(r.Stream)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	r.Body = data
	return nil
}

// ResponseFrom 由 net/http 响应构造 Response。streaming 为 true 时保留响应体为流，
// 否则读入内存并关闭。
func ResponseFrom(resp *http.Response, streaming bool) (*Response, error) {
	out := &Response{
		StatusCode: resp.StatusCode,
		Headers:    HeadersFrom(resp.Header),
	}
	if resp.Body == nil {
		return out, nil
	}
	out.Stream = resp.Body
	if streaming && out.IsSuccess() {
		return out, nil
	}
	if err := out.Buffer(); err != nil {
		return nil, err
	}
	return out, nil
}
