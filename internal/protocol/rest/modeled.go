package rest

import (
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// ErrorShapes 为按错误码登记的建模错误类型，构造后只读共享。
type ErrorShapes map[string]*shape.Shape

// Lookup 返回错误码对应的类型，未登记时返回 nil。
func (m ErrorShapes) Lookup(code string) *shape.Shape {
	if m == nil || code == "" {
		return nil
	}
	return m[code]
}

// DecodeModeled 按登记的类型解码错误详情并写入 se.Modeled，body 负责解码响应体部分。
// 解码失败时保留未建模的服务端错误，不改变错误类别。
func (m ErrorShapes) DecodeModeled(protocol string, se *merr.ServiceError, resp *wire.Response, body func(sh *shape.Shape, v any) error) {
	sh := m.Lookup(se.Code)
	if sh == nil {
		return
	}
	modeled := sh.New()
	if err := BindResponse(protocol, sh, resp, modeled); err != nil {
		return
	}
	if body != nil {
		if err := body(sh, modeled); err != nil {
			return
		}
	}
	se.Modeled = modeled
}

// MarshalError 为 marshaller 的失败附加统一前缀，错误码与类别保持不变。
func MarshalError(encoding string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "unable to marshall request to %s", encoding)
}
