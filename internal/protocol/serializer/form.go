package serializer

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

// Pair 为一个表单键值对。
type Pair struct {
	Key   string
	Value string
}

// Form 为保持顺序的表单，url.Values 会对键排序，这里不能使用。
type Form []Pair

func (f *Form) Add(key, value string) {
	*f = append(*f, Pair{Key: key, Value: value})
}

// Encode 输出 application/x-www-form-urlencoded 文本，顺序与添加顺序一致。
func (f Form) Encode() string {
	var sb strings.Builder
	for i, p := range f {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// FormEncoder 将结构体值按声明顺序展开为表单。
//
// Query 风格：列表为 Name.member.N（Flattened 时为 Name.N），映射为 Name.entry.N.key，
// 空列表输出 "Name="。EC2 风格：键名为 QueryName 或首字母大写的线上名，
// 列表固定为 Name.N，空列表不输出。
type FormEncoder struct {
	protocol string
	ec2      bool
}

func NewForm(protocol string, ec2 bool) *FormEncoder {
	return &FormEncoder{protocol: protocol, ec2: ec2}
}

func (e *FormEncoder) ContentType() string {
	return "application/x-www-form-urlencoded; charset=utf-8"
}

// Encode 将 v 的 PAYLOAD 成员追加到 form。
func (e *FormEncoder) Encode(form *Form, sh *shape.Shape, v any) error {
	if sh.IsNil(v) {
		return nil
	}
	if !sh.Owns(v) {
		return merr.WrapErrMarshalMismatchedObject(sh.Name, v)
	}
	return e.encodeFields(form, "", sh, v)
}

func (e *FormEncoder) keyOf(f *shape.Field) string {
	if !e.ec2 {
		return f.WireName
	}
	if f.QueryName != "" {
		return f.QueryName
	}
	r, size := utf8.DecodeRuneInString(f.WireName)
	return string(unicode.ToUpper(r)) + f.WireName[size:]
}

func (e *FormEncoder) encodeFields(form *Form, prefix string, sh *shape.Shape, v any) error {
	for _, f := range sh.FieldsAt(shape.LocationPayload) {
		val := f.Get(v)
		if val == nil {
			continue
		}
		if err := e.encodeMember(form, join(prefix, e.keyOf(f)), f.DisplayName(), f.Shape, f.TimestampFormat, f.Flattened, val); err != nil {
			return err
		}
	}
	return nil
}

func (e *FormEncoder) encodeMember(form *Form, key, name string, sh *shape.Shape, format shape.TimestampFormat, flattened bool, v any) error {
	switch sh.Kind {
	case shape.KindStructure:
		if sh.IsNil(v) {
			return nil
		}
		return e.encodeFields(form, key, sh, v)
	case shape.KindList:
		items, ok := v.([]any)
		if !ok {
			return merr.WrapErrMarshalUnsupportedType(e.protocol, name, v)
		}
		if len(items) == 0 {
			if !e.ec2 {
				form.Add(key, "")
			}
			return nil
		}
		base := key
		if !e.ec2 && !flattened {
			base = join(key, sh.MemberName)
		}
		// 序号只随实际输出的元素递增，跳过的 nil 元素不留空洞。
		n := 0
		for _, item := range items {
			if sh.Member.IsNil(item) {
				continue
			}
			n++
			if err := e.encodeMember(form, base+"."+strconv.Itoa(n), name, sh.Member, sh.Member.TimestampFormat, false, item); err != nil {
				return err
			}
		}
		return nil
	case shape.KindMap:
		entries, ok := v.(map[string]any)
		if !ok {
			return merr.WrapErrMarshalUnsupportedType(e.protocol, name, v)
		}
		base := key
		if !e.ec2 && !flattened {
			base = join(key, "entry")
		}
		n := 0
		for _, k := range typeutil.SortedKeys(entries) {
			if sh.Value.IsNil(entries[k]) {
				continue
			}
			n++
			entry := base + "." + strconv.Itoa(n)
			form.Add(join(entry, sh.KeyName), k)
			if err := e.encodeMember(form, join(entry, sh.ValueName), name, sh.Value, sh.Value.TimestampFormat, false, entries[k]); err != nil {
				return err
			}
		}
		return nil
	}
	text, err := Scalar{
		Protocol: e.protocol,
		Name:     name,
		Kind:     sh.Kind,
		Format:   ResolveFormat(format, sh.TimestampFormat, shape.TimestampISO8601),
	}.FormatText(v)
	if err != nil {
		return err
	}
	form.Add(key, text)
	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
