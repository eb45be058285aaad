package serializer

import (
	"encoding/base64"
	stdjson "encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"

	smithytime "github.com/aws/smithy-go/time"

	"github.com/lk2023060901/awswire-go/internal/json"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// JSONSerializer 使用 internal/json 编解码 JSON 文档，对象键按字典序输出。
//
// blob 编码为 base64 字符串，时间戳默认编码为 epoch 秒。
type JSONSerializer struct {
	protocol    string
	contentType string
}

var _ Serializer = (*JSONSerializer)(nil)

func NewJSON(protocol, contentType string) *JSONSerializer {
	return &JSONSerializer{protocol: protocol, contentType: contentType}
}

func (s *JSONSerializer) ContentType() string {
	return s.contentType
}

func (s *JSONSerializer) Marshal(sh *shape.Shape, v any) ([]byte, error) {
	doc, err := s.Document(sh, v)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, merr.WrapErrMarshalInvalidValue(s.protocol, sh.Name, shape.LocationPayload, err)
	}
	return out, nil
}

// Document 将结构体值转换为可直接交给 JSON 引擎的树。
func (s *JSONSerializer) Document(sh *shape.Shape, v any) (map[string]any, error) {
	doc := make(map[string]any)
	if sh.IsNil(v) {
		return doc, nil
	}
	if !sh.Owns(v) {
		return nil, merr.WrapErrMarshalMismatchedObject(sh.Name, v)
	}
	for _, f := range sh.FieldsAt(shape.LocationPayload) {
		val := f.Get(v)
		if val == nil {
			continue
		}
		enc, err := s.encode(f.DisplayName(), f.Shape, f.TimestampFormat, val)
		if err != nil {
			return nil, err
		}
		doc[f.WireName] = enc
	}
	return doc, nil
}

func (s *JSONSerializer) encode(name string, sh *shape.Shape, format shape.TimestampFormat, v any) (any, error) {
	switch sh.Kind {
	case shape.KindStructure:
		return s.Document(sh, v)
	case shape.KindList:
		items, ok := v.([]any)
		if !ok {
			return nil, merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			if item == nil || (sh.Member.Kind == shape.KindStructure && sh.Member.IsNil(item)) {
				continue
			}
			enc, err := s.encode(name, sh.Member, sh.Member.TimestampFormat, item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case shape.KindMap:
		entries, ok := v.(map[string]any)
		if !ok {
			return nil, merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
		}
		out := make(map[string]any, len(entries))
		for k, item := range entries {
			if item == nil {
				out[k] = nil
				continue
			}
			enc, err := s.encode(name, sh.Value, sh.Value.TimestampFormat, item)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case shape.KindDouble:
		f, ok := v.(float64)
		if !ok {
			return nil, merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return FormatFloat(f), nil
		}
		return f, nil
	case shape.KindBlob:
		b, ok := v.([]byte)
		if !ok {
			return nil, merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case shape.KindTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
		}
		switch ResolveFormat(format, sh.TimestampFormat, shape.TimestampEpochSeconds) {
		case shape.TimestampEpochSeconds:
			if t.Nanosecond() == 0 {
				return t.Unix(), nil
			}
			return smithytime.FormatEpochSeconds(t), nil
		case shape.TimestampRFC822:
			return smithytime.FormatHTTPDate(t), nil
		default:
			return smithytime.FormatDateTime(t), nil
		}
	case shape.KindString, shape.KindInteger, shape.KindBoolean:
		if _, err := (Scalar{Protocol: s.protocol, Name: name, Kind: sh.Kind}).FormatText(v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
}

func (s *JSONSerializer) Unmarshal(sh *shape.Shape, data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return merr.WrapErrUnmarshalMalformedBody(s.protocol, err)
	}
	return s.Decode(sh, doc, v)
}

// Decode 将已解析的 JSON 对象写入结构体值，未知键被忽略。
func (s *JSONSerializer) Decode(sh *shape.Shape, doc map[string]any, v any) error {
	for _, f := range sh.FieldsAt(shape.LocationPayload) {
		raw, ok := doc[f.WireName]
		if !ok || raw == nil {
			continue
		}
		val, err := s.decode(f.DisplayName(), f.Shape, f.TimestampFormat, raw)
		if err != nil {
			return err
		}
		f.Set(v, val)
	}
	return nil
}

func (s *JSONSerializer) decode(name string, sh *shape.Shape, format shape.TimestampFormat, raw any) (any, error) {
	invalid := func(cause error) error {
		return merr.WrapErrUnmarshalInvalidValue(s.protocol, name, shape.LocationPayload, cause)
	}
	mismatch := func() error {
		return invalid(errors.Newf("expected %s, got %T", sh.Kind, raw))
	}

	switch sh.Kind {
	case shape.KindStructure:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch()
		}
		out := sh.New()
		if err := s.Decode(sh, obj, out); err != nil {
			return nil, err
		}
		return out, nil
	case shape.KindList:
		items, ok := raw.([]any)
		if !ok {
			return nil, mismatch()
		}
		out := make([]any, len(items))
		for i, item := range items {
			if item == nil {
				continue
			}
			val, err := s.decode(name, sh.Member, sh.Member.TimestampFormat, item)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case shape.KindMap:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch()
		}
		out := make(map[string]any, len(obj))
		for k, item := range obj {
			if item == nil {
				continue
			}
			val, err := s.decode(name, sh.Value, sh.Value.TimestampFormat, item)
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	case shape.KindString:
		str, ok := raw.(string)
		if !ok {
			return nil, mismatch()
		}
		return str, nil
	case shape.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch()
		}
		return b, nil
	case shape.KindInteger:
		n, ok := raw.(stdjson.Number)
		if !ok {
			return nil, mismatch()
		}
		i, err := n.Int64()
		if err != nil {
			return nil, invalid(err)
		}
		return i, nil
	case shape.KindDouble:
		switch x := raw.(type) {
		case stdjson.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, invalid(err)
			}
			return f, nil
		case string:
			f, err := ParseFloat(x)
			if err != nil {
				return nil, invalid(err)
			}
			return f, nil
		}
		return nil, mismatch()
	case shape.KindBlob:
		str, ok := raw.(string)
		if !ok {
			return nil, mismatch()
		}
		b, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			return nil, invalid(err)
		}
		return b, nil
	case shape.KindTimestamp:
		switch x := raw.(type) {
		case stdjson.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, invalid(err)
			}
			return canonicalTime(smithytime.ParseEpochSeconds(f)), nil
		case string:
			resolved := ResolveFormat(format, sh.TimestampFormat, shape.TimestampISO8601)
			if resolved == shape.TimestampEpochSeconds {
				resolved = shape.TimestampISO8601
			}
			t, err := ParseTimestamp(x, resolved)
			if err != nil {
				return nil, invalid(err)
			}
			return t, nil
		}
		return nil, mismatch()
	}
	return nil, mismatch()
}
