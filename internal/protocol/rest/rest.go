// Package rest 实现各协议共享的 HTTP 绑定步骤：URI 占位符、查询参数、头部与状态码，
// 以及错误响应的解析。
package rest

import (
	"strconv"
	"strings"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/serializer"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

// CheckBinding 校验操作能否以 REST 方式编码：显式负载成员构成整个请求体，
// 其余 PAYLOAD 成员无处安放。
func CheckBinding(op *binding.Operation) error {
	sh := op.Input()
	if sh == nil || !op.HasExplicitPayloadMember() {
		return nil
	}
	if members := sh.FieldsAt(shape.LocationPayload); len(members) > 0 {
		return merr.WrapErrConfigInvalidBinding(op.OperationIdentifier(),
			"payload member "+members[0].WireName+" conflicts with explicit payload "+sh.PayloadField().WireName)
	}
	return nil
}

// NewRequest 创建请求并依次完成 URI、查询参数与头部的绑定，请求体留给调用方构造。
func NewRequest(protocol string, op *binding.Operation, input any) (*wire.Request, error) {
	req := &wire.Request{Method: op.HTTPMethod()}
	sh := op.Input()
	if sh != nil && !sh.IsNil(input) && !sh.Owns(input) {
		return nil, merr.WrapErrMarshalMismatchedObject(sh.Name, input)
	}
	if sh != nil && sh.IsNil(input) {
		input = nil
	}

	path, err := resolvePath(protocol, op, input)
	if err != nil {
		return nil, err
	}
	req.Path = path

	for _, lit := range op.LiteralQuery() {
		req.Query = append(req.Query, wire.QueryParam{Key: lit.Key, Value: lit.Value, NoValue: !lit.HasValue})
	}
	if sh == nil || input == nil {
		return req, nil
	}
	if err := bindQuery(protocol, sh, input, req); err != nil {
		return nil, err
	}
	if err := bindHeaders(protocol, sh, input, req); err != nil {
		return nil, err
	}
	return req, nil
}

func resolvePath(protocol string, op *binding.Operation, input any) (string, error) {
	path := op.Path()
	for _, label := range op.Labels() {
		var (
			f   = op.Input().FieldByWire(label.Name)
			val any
		)
		if f != nil && f.Location == shape.LocationURI && input != nil {
			val = f.Get(input)
		}
		if val == nil {
			return "", merr.WrapErrMarshalUnresolvedURI(protocol, label.Name)
		}
		text, err := scalarOf(protocol, f, shape.TimestampISO8601).FormatText(val)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", merr.WrapErrMarshalUnresolvedURI(protocol, label.Name, "empty value")
		}

		placeholder := "{" + label.Name + "}"
		escaped := wire.EscapePathSegment(text)
		if label.Greedy {
			placeholder = "{" + label.Name + "+}"
			escaped = wire.EscapeGreedyPath(text)
		}
		path = strings.Replace(path, placeholder, escaped, 1)
	}
	return path, nil
}

func bindQuery(protocol string, sh *shape.Shape, input any, req *wire.Request) error {
	for _, f := range sh.FieldsAt(shape.LocationQuery) {
		val := f.Get(input)
		if val == nil {
			continue
		}
		switch f.Kind() {
		case shape.KindList:
			texts, err := listTexts(protocol, f, val, shape.TimestampISO8601)
			if err != nil {
				return err
			}
			for _, t := range texts {
				req.AddQuery(f.WireName, t)
			}
		case shape.KindMap:
			entries, ok := val.(map[string]any)
			if !ok {
				return merr.WrapErrMarshalUnsupportedType(protocol, f.DisplayName(), val)
			}
			for _, k := range typeutil.SortedKeys(entries) {
				switch v := entries[k].(type) {
				case string:
					req.AddQuery(k, v)
				case []any:
					for _, item := range v {
						if s, ok := item.(string); ok {
							req.AddQuery(k, s)
						}
					}
				case []string:
					for _, s := range v {
						req.AddQuery(k, s)
					}
				}
			}
		default:
			text, err := scalarOf(protocol, f, shape.TimestampISO8601).FormatText(val)
			if err != nil {
				return err
			}
			req.AddQuery(f.WireName, text)
		}
	}
	return nil
}

func bindHeaders(protocol string, sh *shape.Shape, input any, req *wire.Request) error {
	for _, f := range sh.FieldsAt(shape.LocationHeader) {
		val := f.Get(input)
		if val == nil {
			continue
		}
		switch f.Kind() {
		case shape.KindMap:
			entries, ok := val.(map[string]any)
			if !ok {
				return merr.WrapErrMarshalUnsupportedType(protocol, f.DisplayName(), val)
			}
			for _, k := range typeutil.SortedKeys(entries) {
				if s, ok := entries[k].(string); ok {
					req.Headers.Set(f.WireName+k, s)
				}
			}
		case shape.KindList:
			texts, err := listTexts(protocol, f, val, shape.TimestampRFC822)
			if err != nil {
				return err
			}
			if len(texts) == 0 {
				continue
			}
			quoted := f.Shape.Member.Kind == shape.KindString
			for i, t := range texts {
				if quoted && strings.ContainsAny(t, `,"`) {
					texts[i] = strconv.Quote(t)
				}
			}
			req.Headers.Set(f.WireName, strings.Join(texts, ","))
		default:
			text, err := scalarOf(protocol, f, shape.TimestampRFC822).FormatText(val)
			if err != nil {
				return err
			}
			req.Headers.Set(f.WireName, text)
		}
	}
	return nil
}

func listTexts(protocol string, f *shape.Field, val any, def shape.TimestampFormat) ([]string, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, merr.WrapErrMarshalUnsupportedType(protocol, f.DisplayName(), val)
	}
	member := serializer.Scalar{
		Protocol: protocol,
		Name:     f.DisplayName(),
		Location: f.Location,
		Kind:     f.Shape.Member.Kind,
		Format:   serializer.ResolveFormat(f.TimestampFormat, f.Shape.Member.TimestampFormat, def),
	}
	texts := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		t, err := member.FormatText(item)
		if err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, nil
}

func scalarOf(protocol string, f *shape.Field, def shape.TimestampFormat) serializer.Scalar {
	return serializer.Scalar{
		Protocol: protocol,
		Name:     f.DisplayName(),
		Location: f.Location,
		Kind:     f.Kind(),
		Format:   serializer.ResolveFormat(f.TimestampFormat, f.Shape.TimestampFormat, def),
	}
}
