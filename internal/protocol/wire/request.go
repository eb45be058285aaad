// Package wire 为与传输层无关的请求/响应表示。
//
// Request 由 marshaller 每次调用新建，交给签名与传输前归调用方独占。
package wire

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/aws/smithy-go/encoding/httpbinding"
	"github.com/cockroachdb/errors"
)

// QueryParam 为一个查询参数，NoValue 为 true 时只输出键（"?uploads"）。
type QueryParam struct {
	Key     string
	Value   string
	NoValue bool
}

// Request 为抽象线上请求。
type Request struct {
	Method string
	// Path 为已替换占位符并完成百分号编码的路径。
	Path    string
	Query   []QueryParam
	Headers Headers

	// Body 为完整缓冲的请求体；Stream 不为 nil 时请求体由其按需产生，Body 被忽略。
	Body   []byte
	Stream io.ReadCloser
}

// AddQuery 追加一个查询参数，保持追加顺序。
func (r *Request) AddQuery(key, value string) {
	r.Query = append(r.Query, QueryParam{Key: key, Value: value})
}

// RawQuery 返回编码后的查询串，参数顺序与 Query 一致。
func (r *Request) RawQuery() string {
	var sb strings.Builder
	for i, p := range r.Query {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(EscapeQuery(p.Key))
		if !p.NoValue {
			sb.WriteByte('=')
			sb.WriteString(EscapeQuery(p.Value))
		}
	}
	return sb.String()
}

// URI 返回路径与查询串。
func (r *Request) URI() string {
	path := r.Path
	if path == "" {
		path = "/"
	}
	if q := r.RawQuery(); q != "" {
		return path + "?" + q
	}
	return path
}

// IsStreaming 判断请求体是否为惰性流。
func (r *Request) IsStreaming() bool {
	return r.Stream != nil
}

// Close 释放惰性请求体。
func (r *Request) Close() error {
	if r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}

// HTTPRequest 基于 endpoint（scheme://host[/base]）构造 net/http 请求。
func (r *Request) HTTPRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	var body io.Reader
	if r.Stream != nil {
		body = r.Stream
	} else if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint+r.URI(), body)
	if err != nil {
		return nil, errors.Wrap(err, "build http request")
	}
	req.Header = r.Headers.HTTPHeader()
	if r.Stream != nil {
		req.ContentLength = -1
	} else {
		req.ContentLength = int64(len(r.Body))
	}
	return req, nil
}

// EscapePathSegment 按 RFC 3986 编码单个路径段，'/' 同样被编码。
func EscapePathSegment(s string) string {
	return httpbinding.EscapePath(s, true)
}

// EscapeGreedyPath 编码贪婪占位符的值，保留 '/'。
func EscapeGreedyPath(s string) string {
	return httpbinding.EscapePath(s, false)
}

// EscapeQuery 编码查询参数的键或值，空格编码为 %20。
func EscapeQuery(s string) string {
	return httpbinding.EscapePath(s, true)
}
