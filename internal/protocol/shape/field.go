package shape

import (
	"io"
	"time"
)

// Field 为结构体中的一个字段描述符。
type Field struct {
	// Name 为 Go 侧成员名，仅用于诊断信息。
	Name string
	// WireName 为线上名称：JSON 键、XML 元素、请求头名、查询键、URI 占位符或事件类型。
	// 映射类型的请求头字段中 WireName 为头部前缀。
	WireName string
	Location Location
	Shape    *Shape

	TimestampFormat TimestampFormat
	// Flattened 表示 XML/Query 列表与映射不带外层包装元素。
	Flattened bool
	// QueryName 为 EC2 协议使用的键名，为空时使用首字母大写的 WireName。
	QueryName string
	// Exception 标记事件流中的建模异常变体。
	Exception bool

	get     func(owner any) any
	set     func(owner any, v any)
	accepts func(owner any) bool
}

// FieldOption 用于在构造时设置 Field 的可选属性。
type FieldOption func(*Field)

func WithName(name string) FieldOption {
	return func(f *Field) { f.Name = name }
}

func WithTimestampFormat(format TimestampFormat) FieldOption {
	return func(f *Field) { f.TimestampFormat = format }
}

func Flattened() FieldOption {
	return func(f *Field) { f.Flattened = true }
}

func WithQueryName(name string) FieldOption {
	return func(f *Field) { f.QueryName = name }
}

// Kind 返回字段值类型。
func (f *Field) Kind() Kind {
	return f.Shape.Kind
}

// Get 读取 owner 中的字段值，未设置时返回 nil。
func (f *Field) Get(owner any) any {
	if f.get == nil || owner == nil {
		return nil
	}
	return f.get(owner)
}

// Set 将 v 写入 owner，v 必须符合值约定。
func (f *Field) Set(owner any, v any) {
	if f.set == nil || owner == nil || v == nil {
		return
	}
	f.set(owner, v)
}

// Accepts 判断 owner 是否为该字段的宿主类型。
func (f *Field) Accepts(owner any) bool {
	return f.accepts != nil && f.accepts(owner)
}

// DisplayName 返回诊断用名称。
func (f *Field) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.WireName
}

func newField[T any](wire string, loc Location, sh *Shape, get func(*T) any, set func(*T, any), opts []FieldOption) *Field {
	f := &Field{
		Name:     wire,
		WireName: wire,
		Location: loc,
		Shape:    sh,
		get: func(owner any) any {
			t, ok := owner.(*T)
			if !ok || t == nil {
				return nil
			}
			return get(t)
		},
		set: func(owner any, v any) {
			if t, ok := owner.(*T); ok && t != nil {
				set(t, v)
			}
		},
		accepts: func(owner any) bool {
			_, ok := owner.(*T)
			return ok
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func scalar[T any, V any](wire string, loc Location, sh *Shape, get func(*T) *V, set func(*T, *V), opts []FieldOption) *Field {
	return newField[T](wire, loc, sh,
		func(t *T) any {
			if get == nil {
				return nil
			}
			if p := get(t); p != nil {
				return *p
			}
			return nil
		},
		func(t *T, v any) {
			if val, ok := v.(V); ok && set != nil {
				set(t, &val)
			}
		}, opts)
}

func String[T any](wire string, loc Location, get func(*T) *string, set func(*T, *string), opts ...FieldOption) *Field {
	return scalar(wire, loc, StringShape, get, set, opts)
}

func Integer[T any](wire string, loc Location, get func(*T) *int64, set func(*T, *int64), opts ...FieldOption) *Field {
	return scalar(wire, loc, IntegerShape, get, set, opts)
}

func Double[T any](wire string, loc Location, get func(*T) *float64, set func(*T, *float64), opts ...FieldOption) *Field {
	return scalar(wire, loc, DoubleShape, get, set, opts)
}

func Boolean[T any](wire string, loc Location, get func(*T) *bool, set func(*T, *bool), opts ...FieldOption) *Field {
	return scalar(wire, loc, BooleanShape, get, set, opts)
}

func Timestamp[T any](wire string, loc Location, get func(*T) *time.Time, set func(*T, *time.Time), opts ...FieldOption) *Field {
	return scalar(wire, loc, TimestampShape, get, set, opts)
}

func Blob[T any](wire string, loc Location, get func(*T) []byte, set func(*T, []byte), opts ...FieldOption) *Field {
	return newField[T](wire, loc, BlobShape,
		func(t *T) any {
			if get == nil {
				return nil
			}
			if b := get(t); b != nil {
				return b
			}
			return nil
		},
		func(t *T, v any) {
			if b, ok := v.([]byte); ok && set != nil {
				set(t, b)
			}
		}, opts)
}

// Stream 构造 STREAMING_PAYLOAD 字段：请求方向读取 io.Reader，响应方向写入 io.ReadCloser。
func Stream[T any](wire string, get func(*T) io.Reader, set func(*T, io.ReadCloser), opts ...FieldOption) *Field {
	return newField[T](wire, LocationStreamingPayload, BlobShape,
		func(t *T) any {
			if get == nil {
				return nil
			}
			if r := get(t); r != nil {
				return r
			}
			return nil
		},
		func(t *T, v any) {
			if rc, ok := v.(io.ReadCloser); ok && set != nil {
				set(t, rc)
			}
		}, opts)
}

// Struct 构造嵌套结构体字段，sh 必须是由 Structure[S] 构造的类型。
func Struct[T any, S any](wire string, loc Location, sh *Shape, get func(*T) *S, set func(*T, *S), opts ...FieldOption) *Field {
	return newField[T](wire, loc, sh,
		func(t *T) any {
			if get == nil {
				return nil
			}
			if p := get(t); p != nil {
				return p
			}
			return nil
		},
		func(t *T, v any) {
			if p, ok := v.(*S); ok && set != nil {
				set(t, p)
			}
		}, opts)
}

// List 构造列表字段，元素类型 E 需与 member 的值约定一致（结构体元素为 *S）。
func List[T any, E any](wire string, loc Location, member *Shape, get func(*T) []E, set func(*T, []E), opts ...FieldOption) *Field {
	return ListShaped(wire, loc, ListOf(member), get, set, opts...)
}

// ListShaped 与 List 相同，但使用调用方提供的列表类型（自定义成员名等）。
func ListShaped[T any, E any](wire string, loc Location, list *Shape, get func(*T) []E, set func(*T, []E), opts ...FieldOption) *Field {
	return newField[T](wire, loc, list,
		func(t *T) any {
			if get == nil {
				return nil
			}
			items := get(t)
			if items == nil {
				return nil
			}
			out := make([]any, len(items))
			for i := range items {
				out[i] = items[i]
			}
			return out
		},
		func(t *T, v any) {
			items, ok := v.([]any)
			if !ok || set == nil {
				return
			}
			out := make([]E, 0, len(items))
			for _, item := range items {
				e, _ := item.(E)
				out = append(out, e)
			}
			set(t, out)
		}, opts)
}

// Map 构造字符串键映射字段。
func Map[T any, V any](wire string, loc Location, value *Shape, get func(*T) map[string]V, set func(*T, map[string]V), opts ...FieldOption) *Field {
	return MapShaped(wire, loc, MapOf(value), get, set, opts...)
}

// MapShaped 与 Map 相同，但使用调用方提供的映射类型。
func MapShaped[T any, V any](wire string, loc Location, m *Shape, get func(*T) map[string]V, set func(*T, map[string]V), opts ...FieldOption) *Field {
	return newField[T](wire, loc, m,
		func(t *T) any {
			if get == nil {
				return nil
			}
			entries := get(t)
			if entries == nil {
				return nil
			}
			out := make(map[string]any, len(entries))
			for k, v := range entries {
				out[k] = v
			}
			return out
		},
		func(t *T, v any) {
			entries, ok := v.(map[string]any)
			if !ok || set == nil {
				return
			}
			out := make(map[string]V, len(entries))
			for k, item := range entries {
				e, _ := item.(V)
				out[k] = e
			}
			set(t, out)
		}, opts)
}

// Events 构造事件流字段，sh 必须由 EventStreamOf 构造。
func Events[T any](wire string, loc Location, sh *Shape, get func(*T) EventStream, set func(*T, EventStream), opts ...FieldOption) *Field {
	return newField[T](wire, loc, sh,
		func(t *T) any {
			if get == nil {
				return nil
			}
			if s := get(t); s != nil {
				return s
			}
			return nil
		},
		func(t *T, v any) {
			if s, ok := v.(EventStream); ok && set != nil {
				set(t, s)
			}
		}, opts)
}

// Event 构造事件流中的一个事件变体，eventType 对应 :event-type 或 :exception-type 头部。
func Event(eventType string, sh *Shape, opts ...FieldOption) *Field {
	f := &Field{
		Name:     eventType,
		WireName: eventType,
		Location: LocationPayload,
		Shape:    sh,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AsException 将事件变体标记为建模异常。
func AsException() FieldOption {
	return func(f *Field) { f.Exception = true }
}
