// Package shape 描述请求/响应类型的字段元数据。
//
// 元数据由代码生成器一次性构造，之后只读共享。引擎通过 Field 上的访问器读写
// 类型化对象，不对对象本身做反射，所有协议决策都来自这里的静态描述。
//
// 访问器使用的值约定：
//
//	string    -> string
//	integer   -> int64
//	double    -> float64
//	boolean   -> bool
//	blob      -> []byte（STREAMING_PAYLOAD 位置为 io.Reader / io.ReadCloser）
//	timestamp -> time.Time
//	list      -> []any
//	map       -> map[string]any
//	structure -> 指向具体结构体的指针
//	event     -> EventStream
//
// nil 表示字段未设置。
package shape

import (
	"io"
)

// Shape 描述一个结构、列表、映射或标量类型。
type Shape struct {
	Name string
	Kind Kind

	// Fields 为结构体字段（按声明顺序），事件流时为各事件变体。
	Fields []*Field

	// Member 为列表元素类型；Value 为映射值类型，映射键固定为字符串。
	Member *Shape
	Value  *Shape

	// MemberName 为 XML/Query 列表元素名，默认 "member"。
	MemberName string
	// KeyName/ValueName 为 XML/Query 映射条目中键与值的元素名。
	KeyName   string
	ValueName string

	// XMLName 覆盖作为 XML 根元素时的名称，XMLNamespace 为根元素的 xmlns。
	XMLName      string
	XMLNamespace string

	// TimestampFormat 作用于列表/映射中的时间戳元素。
	TimestampFormat TimestampFormat

	newFn  func() any
	ownsFn func(any) bool
	nilFn  func(any) bool

	byWire map[string]*Field
}

// 标量类型，只读共享。
var (
	StringShape    = &Shape{Name: "String", Kind: KindString}
	IntegerShape   = &Shape{Name: "Long", Kind: KindInteger}
	DoubleShape    = &Shape{Name: "Double", Kind: KindDouble}
	BooleanShape   = &Shape{Name: "Boolean", Kind: KindBoolean}
	BlobShape      = &Shape{Name: "Blob", Kind: KindBlob}
	TimestampShape = &Shape{Name: "Timestamp", Kind: KindTimestamp}
)

// TimestampShapeOf 返回带固定格式的时间戳类型，用于列表/映射元素。
func TimestampShapeOf(format TimestampFormat) *Shape {
	return &Shape{Name: "Timestamp", Kind: KindTimestamp, TimestampFormat: format}
}

// ShapeOption 用于在构造时设置 Shape 的可选属性。
type ShapeOption func(*Shape)

func WithMemberName(name string) ShapeOption {
	return func(s *Shape) { s.MemberName = name }
}

func WithEntryNames(key, value string) ShapeOption {
	return func(s *Shape) {
		s.KeyName = key
		s.ValueName = value
	}
}

func WithXMLName(name string) ShapeOption {
	return func(s *Shape) { s.XMLName = name }
}

func WithXMLNamespace(ns string) ShapeOption {
	return func(s *Shape) { s.XMLNamespace = ns }
}

// ListOf 构造列表类型。
func ListOf(member *Shape, opts ...ShapeOption) *Shape {
	s := &Shape{Name: "List", Kind: KindList, Member: member, MemberName: "member"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MapOf 构造字符串键映射类型。
func MapOf(value *Shape, opts ...ShapeOption) *Shape {
	s := &Shape{Name: "Map", Kind: KindMap, Value: value, KeyName: "key", ValueName: "value"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Structure 构造对应 Go 结构体 S 的结构类型，字段访问器的宿主类型必须为 *S。
func Structure[S any](name string, fields []*Field, opts ...ShapeOption) *Shape {
	s := &Shape{
		Name:   name,
		Kind:   KindStructure,
		Fields: fields,
		newFn:  func() any { return new(S) },
		ownsFn: func(v any) bool {
			_, ok := v.(*S)
			return ok
		},
		nilFn: func(v any) bool {
			p, ok := v.(*S)
			return ok && p == nil
		},
	}
	s.index()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EventStreamOf 构造事件流联合类型，每个变体由 Event 构造。
func EventStreamOf(name string, variants ...*Field) *Shape {
	s := &Shape{Name: name, Kind: KindEventStream, Fields: variants}
	s.index()
	return s
}

func (s *Shape) index() {
	s.byWire = make(map[string]*Field, len(s.Fields))
	for _, f := range s.Fields {
		if _, exists := s.byWire[f.WireName]; !exists {
			s.byWire[f.WireName] = f
		}
	}
}

// New 分配一个新的结构体实例，仅对结构类型有效。
func (s *Shape) New() any {
	if s.newFn == nil {
		return nil
	}
	return s.newFn()
}

// Owns 判断 v 是否为该结构类型对应的 Go 类型。
func (s *Shape) Owns(v any) bool {
	return s.ownsFn != nil && s.ownsFn(v)
}

// IsNil 判断 v 是否为 nil 或该结构类型的空指针。
func (s *Shape) IsNil(v any) bool {
	if v == nil {
		return true
	}
	if s.nilFn == nil {
		return false
	}
	return s.nilFn(v)
}

// FieldByWire 按线上名称查找字段（事件流时按事件类型查找变体）。
func (s *Shape) FieldByWire(name string) *Field {
	return s.byWire[name]
}

// RootName 返回作为 XML 根元素时使用的名称。
func (s *Shape) RootName() string {
	if s.XMLName != "" {
		return s.XMLName
	}
	return s.Name
}

// FieldsAt 返回处于给定位置的字段，保持声明顺序。
func (s *Shape) FieldsAt(locs ...Location) []*Field {
	var out []*Field
	for _, f := range s.Fields {
		for _, loc := range locs {
			if f.Location == loc {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// PayloadField 返回 EXPLICIT_PAYLOAD 或 STREAMING_PAYLOAD 字段，没有时返回 nil。
func (s *Shape) PayloadField() *Field {
	for _, f := range s.Fields {
		if f.Location == LocationExplicitPayload || f.Location == LocationStreamingPayload {
			return f
		}
	}
	return nil
}

// EventStream 为事件流字段的值：输入方向由调用方逐个产出事件，输出方向由引擎逐个解码。
//
// Recv 在流正常结束时返回 io.EOF；Close 释放底层资源，可重复调用。
type EventStream interface {
	Recv() (any, error)
	Close() error
}

// SliceEvents 将固定的一组事件包装为 EventStream。
func SliceEvents(events ...any) EventStream {
	return &sliceEvents{events: events}
}

type sliceEvents struct {
	events []any
	next   int
	closed bool
}

func (s *sliceEvents) Recv() (any, error) {
	if s.closed || s.next >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}

func (s *sliceEvents) Close() error {
	s.closed = true
	return nil
}
