package serializer

import (
	"bytes"
	"encoding/xml"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

// XMLSerializer 编解码 XML 文档，时间戳默认使用 ISO-8601。
//
// 列表默认包装为 <Name><member>..</member></Name>，Flattened 时重复 <Name>；
// 映射默认为 <Name><entry><key/><value/></entry></Name>，条目按键排序输出。
type XMLSerializer struct {
	protocol string
}

var _ Serializer = (*XMLSerializer)(nil)

func NewXML(protocol string) *XMLSerializer {
	return &XMLSerializer{protocol: protocol}
}

func (s *XMLSerializer) ContentType() string {
	return "application/xml"
}

// Marshal 以 sh.RootName() 为根元素编码。
func (s *XMLSerializer) Marshal(sh *shape.Shape, v any) ([]byte, error) {
	return s.MarshalElement(sh.RootName(), sh, v)
}

// MarshalElement 以 name 为根元素编码结构体值。
func (s *XMLSerializer) MarshalElement(name string, sh *shape.Shape, v any) ([]byte, error) {
	if !sh.IsNil(v) && !sh.Owns(v) {
		return nil, merr.WrapErrMarshalMismatchedObject(sh.Name, v)
	}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if sh.XMLNamespace != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: sh.XMLNamespace})
	}
	if err := enc.EncodeToken(start); err != nil {
		return nil, s.encodeErr(name, err)
	}
	if !sh.IsNil(v) {
		if err := s.encodeFields(enc, sh, v); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return nil, s.encodeErr(name, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, s.encodeErr(name, err)
	}
	return buf.Bytes(), nil
}

func (s *XMLSerializer) encodeErr(name string, err error) error {
	return merr.WrapErrMarshalInvalidValue(s.protocol, name, shape.LocationPayload, err)
}

func (s *XMLSerializer) encodeFields(enc *xml.Encoder, sh *shape.Shape, v any) error {
	for _, f := range sh.FieldsAt(shape.LocationPayload) {
		val := f.Get(v)
		if val == nil {
			continue
		}
		if err := s.encodeMember(enc, f.DisplayName(), f.WireName, f.Shape, f.TimestampFormat, f.Flattened, val); err != nil {
			return err
		}
	}
	return nil
}

func (s *XMLSerializer) encodeMember(enc *xml.Encoder, name, element string, sh *shape.Shape, format shape.TimestampFormat, flattened bool, v any) error {
	switch sh.Kind {
	case shape.KindList:
		items, ok := v.([]any)
		if !ok {
			return merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
		}
		if flattened {
			for _, item := range items {
				if err := s.encodeValue(enc, name, element, sh.Member, sh.Member.TimestampFormat, item); err != nil {
					return err
				}
			}
			return nil
		}
		return s.wrap(enc, name, element, func() error {
			for _, item := range items {
				if err := s.encodeValue(enc, name, sh.MemberName, sh.Member, sh.Member.TimestampFormat, item); err != nil {
					return err
				}
			}
			return nil
		})
	case shape.KindMap:
		entries, ok := v.(map[string]any)
		if !ok {
			return merr.WrapErrMarshalUnsupportedType(s.protocol, name, v)
		}
		writeEntries := func(entryElement string) error {
			for _, k := range typeutil.SortedKeys(entries) {
				err := s.wrap(enc, name, entryElement, func() error {
					if err := s.encodeValue(enc, name, sh.KeyName, shape.StringShape, shape.TimestampDefault, k); err != nil {
						return err
					}
					return s.encodeValue(enc, name, sh.ValueName, sh.Value, sh.Value.TimestampFormat, entries[k])
				})
				if err != nil {
					return err
				}
			}
			return nil
		}
		if flattened {
			return writeEntries(element)
		}
		return s.wrap(enc, name, element, func() error { return writeEntries("entry") })
	}
	return s.encodeValue(enc, name, element, sh, format, v)
}

func (s *XMLSerializer) encodeValue(enc *xml.Encoder, name, element string, sh *shape.Shape, format shape.TimestampFormat, v any) error {
	if v == nil {
		return nil
	}
	switch sh.Kind {
	case shape.KindStructure:
		if sh.IsNil(v) {
			return nil
		}
		return s.wrap(enc, name, element, func() error { return s.encodeFields(enc, sh, v) })
	case shape.KindList, shape.KindMap:
		return s.encodeMember(enc, name, element, sh, format, false, v)
	}
	text, err := Scalar{
		Protocol: s.protocol,
		Name:     name,
		Kind:     sh.Kind,
		Format:   ResolveFormat(format, sh.TimestampFormat, shape.TimestampISO8601),
	}.FormatText(v)
	if err != nil {
		return err
	}
	if i := invalidXMLChar(text); i >= 0 {
		return merr.WrapErrMarshalInvalidValue(s.protocol, name, shape.LocationPayload,
			errors.Newf("character %U at offset %d is not allowed in XML", []rune(text[i:])[0], i))
	}
	return s.wrap(enc, name, element, func() error {
		return enc.EncodeToken(xml.CharData(text))
	})
}

// invalidXMLChar 返回 text 中第一个不属于 XML 1.0 Char 产生式的字符的字节偏移，全部合法时返回 -1。
// 非法 UTF-8 同样视为非法字符。
func invalidXMLChar(text string) int {
	for i, r := range text {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(text[i:]); size == 1 {
				return i
			}
		}
		if !isXMLChar(r) {
			return i
		}
	}
	return -1
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

func (s *XMLSerializer) wrap(enc *xml.Encoder, name, element string, body func() error) error {
	start := xml.StartElement{Name: xml.Name{Local: element}}
	if err := enc.EncodeToken(start); err != nil {
		return s.encodeErr(name, err)
	}
	if err := body(); err != nil {
		return err
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return s.encodeErr(name, err)
	}
	return nil
}

// Unmarshal 解码以任意名称为根元素的文档。
func (s *XMLSerializer) Unmarshal(sh *shape.Shape, data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	root, err := ParseXML(data)
	if err != nil {
		return merr.WrapErrUnmarshalMalformedBody(s.protocol, err)
	}
	return s.Decode(sh, root, v)
}

// Decode 将元素 n 的子元素写入结构体值，未知元素被忽略。
func (s *XMLSerializer) Decode(sh *shape.Shape, n *Node, v any) error {
	for _, f := range sh.FieldsAt(shape.LocationPayload) {
		val, err := s.decodeMember(n, f.DisplayName(), f.WireName, f.Shape, f.TimestampFormat, f.Flattened)
		if err != nil {
			return err
		}
		if val != nil {
			f.Set(v, val)
		}
	}
	return nil
}

func (s *XMLSerializer) decodeMember(parent *Node, name, element string, sh *shape.Shape, format shape.TimestampFormat, flattened bool) (any, error) {
	switch sh.Kind {
	case shape.KindList:
		var nodes []*Node
		if flattened {
			nodes = parent.ChildrenNamed(element)
		} else {
			wrapper := parent.Child(element)
			if wrapper == nil {
				return nil, nil
			}
			nodes = wrapper.ChildrenNamed(sh.MemberName)
		}
		if nodes == nil && flattened {
			return nil, nil
		}
		out := make([]any, 0, len(nodes))
		for _, n := range nodes {
			val, err := s.decodeValue(n, name, sh.Member, sh.Member.TimestampFormat)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case shape.KindMap:
		var entries []*Node
		if flattened {
			entries = parent.ChildrenNamed(element)
			if entries == nil {
				return nil, nil
			}
		} else {
			wrapper := parent.Child(element)
			if wrapper == nil {
				return nil, nil
			}
			entries = wrapper.ChildrenNamed("entry")
		}
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			valueNode := e.Child(sh.ValueName)
			if valueNode == nil {
				continue
			}
			val, err := s.decodeValue(valueNode, name, sh.Value, sh.Value.TimestampFormat)
			if err != nil {
				return nil, err
			}
			out[e.ChildText(sh.KeyName)] = val
		}
		return out, nil
	}
	n := parent.Child(element)
	if n == nil {
		return nil, nil
	}
	return s.decodeValue(n, name, sh, format)
}

func (s *XMLSerializer) decodeValue(n *Node, name string, sh *shape.Shape, format shape.TimestampFormat) (any, error) {
	switch sh.Kind {
	case shape.KindStructure:
		out := sh.New()
		if err := s.Decode(sh, n, out); err != nil {
			return nil, err
		}
		return out, nil
	case shape.KindList:
		out := make([]any, 0, len(n.Children))
		for _, c := range n.ChildrenNamed(sh.MemberName) {
			val, err := s.decodeValue(c, name, sh.Member, sh.Member.TimestampFormat)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case shape.KindMap:
		out := make(map[string]any)
		for _, e := range n.ChildrenNamed("entry") {
			valueNode := e.Child(sh.ValueName)
			if valueNode == nil {
				continue
			}
			val, err := s.decodeValue(valueNode, name, sh.Value, sh.Value.TimestampFormat)
			if err != nil {
				return nil, err
			}
			out[e.ChildText(sh.KeyName)] = val
		}
		return out, nil
	}
	return Scalar{
		Protocol: s.protocol,
		Name:     name,
		Location: shape.LocationPayload,
		Kind:     sh.Kind,
		Format:   ResolveFormat(format, sh.TimestampFormat, shape.TimestampISO8601),
	}.ParseText(n.Text)
}
