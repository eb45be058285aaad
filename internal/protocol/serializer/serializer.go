// Package serializer 提供由字段描述符驱动的文档编解码器（JSON、XML 与表单）。
//
// 编解码器只处理 PAYLOAD 位置的成员；URI、查询参数与头部由 rest 包处理。
package serializer

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	smithytime "github.com/aws/smithy-go/time"

	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// Serializer 将结构体值编码为文档，或将文档解码回结构体值。
type Serializer interface {
	ContentType() string
	Marshal(sh *shape.Shape, v any) ([]byte, error)
	Unmarshal(sh *shape.Shape, data []byte, v any) error
}

// ResolveFormat 在 format 为默认值时依次使用 fallback 与 def。
func ResolveFormat(format, fallback, def shape.TimestampFormat) shape.TimestampFormat {
	if format != shape.TimestampDefault {
		return format
	}
	if fallback != shape.TimestampDefault {
		return fallback
	}
	return def
}

// FormatTimestamp 按格式输出时间戳文本。
func FormatTimestamp(t time.Time, format shape.TimestampFormat) string {
	switch format {
	case shape.TimestampRFC822:
		return smithytime.FormatHTTPDate(t)
	case shape.TimestampEpochSeconds:
		return formatEpoch(t)
	default:
		return smithytime.FormatDateTime(t)
	}
}

// ParseTimestamp 按格式解析时间戳文本，结果统一为 UTC。
func ParseTimestamp(s string, format shape.TimestampFormat) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	switch format {
	case shape.TimestampRFC822:
		t, err = smithytime.ParseHTTPDate(s)
	case shape.TimestampEpochSeconds:
		var f float64
		f, err = strconv.ParseFloat(s, 64)
		if err == nil {
			t = smithytime.ParseEpochSeconds(f)
		}
	default:
		t, err = smithytime.ParseDateTime(s)
	}
	if err != nil {
		return time.Time{}, err
	}
	return canonicalTime(t), nil
}

func formatEpoch(t time.Time) string {
	if t.Nanosecond() == 0 {
		return strconv.FormatInt(t.Unix(), 10)
	}
	return strconv.FormatFloat(smithytime.FormatEpochSeconds(t), 'f', -1, 64)
}

func canonicalTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond())).UTC()
}

// FormatFloat 输出浮点数文本，NaN 与正负无穷使用约定的字符串。
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// ParseFloat 为 FormatFloat 的逆操作。
func ParseFloat(s string) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Scalar 描述一个待编码的标量成员，用于错误信息与格式选择。
type Scalar struct {
	Protocol string
	Name     string
	Location shape.Location
	Kind     shape.Kind
	// Format 为已解析的时间戳格式。
	Format shape.TimestampFormat
}

// FormatText 将标量值编码为文本，值类型与 Kind 不符时返回编组错误。
func (s Scalar) FormatText(v any) (string, error) {
	switch s.Kind {
	case shape.KindString:
		if str, ok := v.(string); ok {
			return str, nil
		}
	case shape.KindInteger:
		if n, ok := v.(int64); ok {
			return strconv.FormatInt(n, 10), nil
		}
	case shape.KindDouble:
		if f, ok := v.(float64); ok {
			return FormatFloat(f), nil
		}
	case shape.KindBoolean:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case shape.KindBlob:
		if b, ok := v.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b), nil
		}
	case shape.KindTimestamp:
		if t, ok := v.(time.Time); ok {
			return FormatTimestamp(t, s.Format), nil
		}
	}
	return "", merr.WrapErrMarshalUnsupportedType(s.Protocol, s.Name, v)
}

// ParseText 为 FormatText 的逆操作，解析失败时返回解组错误。
func (s Scalar) ParseText(text string) (any, error) {
	var (
		out any
		err error
	)
	switch s.Kind {
	case shape.KindString:
		return text, nil
	case shape.KindInteger:
		out, err = strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	case shape.KindDouble:
		out, err = ParseFloat(strings.TrimSpace(text))
	case shape.KindBoolean:
		out, err = strconv.ParseBool(strings.TrimSpace(text))
	case shape.KindBlob:
		out, err = base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	case shape.KindTimestamp:
		out, err = ParseTimestamp(strings.TrimSpace(text), s.Format)
	default:
		err = errors.Newf("%s is not a scalar", s.Kind)
	}
	if err != nil {
		return nil, merr.WrapErrUnmarshalInvalidValue(s.Protocol, s.Name, s.Location, err)
	}
	return out, nil
}
