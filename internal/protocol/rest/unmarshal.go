package rest

import (
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/lk2023060901/awswire-go/internal/protocol/serializer"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// BindResponse 将头部与状态码绑定到输出值，缺失的头部保持为空。
func BindResponse(protocol string, sh *shape.Shape, resp *wire.Response, out any) error {
	if sh == nil {
		return nil
	}
	for _, f := range sh.FieldsAt(shape.LocationStatusCode) {
		f.Set(out, int64(resp.StatusCode))
	}
	for _, f := range sh.FieldsAt(shape.LocationHeader) {
		val, err := headerValue(protocol, f, &resp.Headers)
		if err != nil {
			return err
		}
		if val != nil {
			f.Set(out, val)
		}
	}
	return nil
}

func headerValue(protocol string, f *shape.Field, headers *wire.Headers) (any, error) {
	switch f.Kind() {
	case shape.KindMap:
		entries := headers.WithPrefix(f.WireName)
		if len(entries) == 0 {
			return nil, nil
		}
		out := make(map[string]any, len(entries))
		for k, v := range entries {
			out[k] = v
		}
		return out, nil
	case shape.KindList:
		raw := headers.Values(f.WireName)
		if len(raw) == 0 {
			return nil, nil
		}
		member := scalarOf(protocol, f, shape.TimestampRFC822)
		member.Kind = f.Shape.Member.Kind
		member.Format = serializer.ResolveFormat(f.TimestampFormat, f.Shape.Member.TimestampFormat, shape.TimestampRFC822)

		var (
			parts []string
			err   error
		)
		if member.Kind == shape.KindTimestamp && member.Format == shape.TimestampRFC822 {
			parts, err = smithyhttp.SplitHTTPDateTimestampHeaderListValues(raw)
		} else {
			parts, err = smithyhttp.SplitHeaderListValues(raw)
		}
		if err != nil {
			return nil, merr.WrapErrUnmarshalInvalidValue(protocol, f.DisplayName(), f.Location, err)
		}
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := member.ParseText(p)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	if !headers.Has(f.WireName) {
		return nil, nil
	}
	return scalarOf(protocol, f, shape.TimestampRFC822).ParseText(headers.Get(f.WireName))
}
