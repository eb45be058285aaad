// Package eventstream 在类型化事件与事件流帧之间转换。
//
// 发送方向由 Body 惰性地把事件逐个编码为整帧；接收方向由 Reader 逐帧解码，
// 每个事件只交付一次，流结束或关闭时释放底层响应体。
package eventstream

import (
	"bytes"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/awswire-go/internal/protocol/framer"
	"github.com/lk2023060901/awswire-go/internal/protocol/serializer"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// 帧头部名称。
const (
	HeaderMessageType   = ":message-type"
	HeaderEventType     = ":event-type"
	HeaderContentType   = ":content-type"
	HeaderErrorCode     = ":error-code"
	HeaderErrorMessage  = ":error-message"
	HeaderExceptionType = ":exception-type"
)

// :message-type 的取值。
const (
	MessageTypeEvent     = "event"
	MessageTypeError     = "error"
	MessageTypeException = "exception"
)

const (
	contentTypeBlob   = "application/octet-stream"
	contentTypeString = "text/plain"
)

// UnknownEvent 为未在事件流类型中声明的事件，接收方默认跳过。
type UnknownEvent struct {
	Type    string
	Message framer.Message
}

// Codec 按事件流类型的描述编解码事件。结构体负载使用 payload 序列化器。
type Codec struct {
	protocol string
	shape    *shape.Shape
	payload  serializer.Serializer
}

func NewCodec(protocol string, sh *shape.Shape, payload serializer.Serializer) *Codec {
	return &Codec{protocol: protocol, shape: sh, payload: payload}
}

// Shape 返回事件流联合类型。
func (c *Codec) Shape() *shape.Shape {
	return c.shape
}

func (c *Codec) variantOf(ev any) *shape.Field {
	for _, variant := range c.shape.Fields {
		if variant.Shape.Owns(ev) {
			return variant
		}
	}
	return nil
}

// Encode 将一个事件编码为帧消息。
func (c *Codec) Encode(ev any) (framer.Message, error) {
	variant := c.variantOf(ev)
	if variant == nil {
		return framer.Message{}, merr.WrapErrMarshalMismatchedObject(c.shape.Name, ev)
	}
	if variant.Shape.IsNil(ev) {
		return framer.Message{}, merr.WrapErrMarshalInvalidValue(c.protocol, variant.WireName, shape.LocationEventPayload, errors.New("nil event"))
	}

	msg := framer.Message{}
	msg.Headers.Set(HeaderMessageType, eventstream.StringValue(MessageTypeEvent))
	msg.Headers.Set(HeaderEventType, eventstream.StringValue(variant.WireName))

	var extra framer.Headers
	for _, f := range variant.Shape.FieldsAt(shape.LocationEventHeader) {
		val := f.Get(ev)
		if val == nil {
			continue
		}
		hv, err := c.headerValue(f, val)
		if err != nil {
			return framer.Message{}, err
		}
		extra.Set(f.WireName, hv)
	}

	contentType, payload, err := c.encodePayload(variant, ev)
	if err != nil {
		return framer.Message{}, err
	}
	if contentType != "" {
		msg.Headers.Set(HeaderContentType, eventstream.StringValue(contentType))
	}
	msg.Headers = append(msg.Headers, extra...)
	msg.Payload = payload
	return msg, nil
}

// EncodeInitial 将非事件流成员编码为 initial-request 一类的首帧。
func (c *Codec) EncodeInitial(eventType string, sh *shape.Shape, v any) (framer.Message, error) {
	payload, err := c.payload.Marshal(sh, v)
	if err != nil {
		return framer.Message{}, err
	}
	msg := framer.Message{Payload: payload}
	msg.Headers.Set(HeaderMessageType, eventstream.StringValue(MessageTypeEvent))
	msg.Headers.Set(HeaderEventType, eventstream.StringValue(eventType))
	msg.Headers.Set(HeaderContentType, eventstream.StringValue(c.payload.ContentType()))
	return msg, nil
}

func (c *Codec) encodePayload(variant *shape.Field, ev any) (string, []byte, error) {
	fields := variant.Shape.FieldsAt(shape.LocationEventPayload)
	if len(fields) == 0 {
		if len(variant.Shape.FieldsAt(shape.LocationPayload)) == 0 {
			return "", nil, nil
		}
		payload, err := c.payload.Marshal(variant.Shape, ev)
		if err != nil {
			return "", nil, err
		}
		return c.payload.ContentType(), payload, nil
	}

	f := fields[0]
	val := f.Get(ev)
	switch f.Kind() {
	case shape.KindBlob:
		b, _ := val.([]byte)
		return contentTypeBlob, b, nil
	case shape.KindString:
		s, _ := val.(string)
		return contentTypeString, []byte(s), nil
	case shape.KindStructure:
		if val == nil {
			return c.payload.ContentType(), nil, nil
		}
		payload, err := c.payload.Marshal(f.Shape, val)
		if err != nil {
			return "", nil, err
		}
		return c.payload.ContentType(), payload, nil
	}
	return "", nil, merr.WrapErrMarshalUnsupportedType(c.protocol, f.DisplayName(), val)
}

func (c *Codec) headerValue(f *shape.Field, val any) (eventstream.Value, error) {
	switch v := val.(type) {
	case string:
		return eventstream.StringValue(v), nil
	case int64:
		return eventstream.Int64Value(v), nil
	case bool:
		return eventstream.BoolValue(v), nil
	case []byte:
		return eventstream.BytesValue(v), nil
	case time.Time:
		return eventstream.TimestampValue(v), nil
	case float64:
		return eventstream.StringValue(serializer.FormatFloat(v)), nil
	}
	return nil, merr.WrapErrMarshalUnsupportedType(c.protocol, f.DisplayName(), val)
}

// Decode 将帧消息解码为事件。
//
// 未声明的事件类型返回 *UnknownEvent；error 与 exception 帧返回 *merr.ServiceError 作为错误。
func (c *Codec) Decode(msg framer.Message) (any, error) {
	switch headerString(msg.Headers, HeaderMessageType) {
	case MessageTypeEvent:
		eventType := headerString(msg.Headers, HeaderEventType)
		variant := c.shape.FieldByWire(eventType)
		if variant == nil || variant.Exception {
			return &UnknownEvent{Type: eventType, Message: msg}, nil
		}
		return c.decodeVariant(variant, msg)
	case MessageTypeError:
		return nil, &merr.ServiceError{
			Code:     headerString(msg.Headers, HeaderErrorCode),
			Message:  headerString(msg.Headers, HeaderErrorMessage),
			Protocol: c.protocol,
			RawBody:  msg.Payload,
		}
	case MessageTypeException:
		code := headerString(msg.Headers, HeaderExceptionType)
		se := &merr.ServiceError{Code: code, Protocol: c.protocol, RawBody: msg.Payload}
		if variant := c.shape.FieldByWire(code); variant != nil {
			modeled, err := c.decodeVariant(variant, msg)
			if err != nil {
				return nil, err
			}
			se.Modeled = modeled
			se.Message = messageOf(variant.Shape, modeled)
		}
		return nil, se
	case "":
		return nil, merr.WrapErrStreamMalformed("missing " + HeaderMessageType)
	default:
		return nil, merr.WrapErrStreamMalformed("unknown message type " + headerString(msg.Headers, HeaderMessageType))
	}
}

// DecodeInitial 将 initial-response 一类首帧的负载写入 v。
func (c *Codec) DecodeInitial(msg framer.Message, sh *shape.Shape, v any) error {
	return c.payload.Unmarshal(sh, msg.Payload, v)
}

func (c *Codec) decodeVariant(variant *shape.Field, msg framer.Message) (any, error) {
	ev := variant.Shape.New()
	for _, f := range variant.Shape.FieldsAt(shape.LocationEventHeader) {
		hv := msg.Headers.Get(f.WireName)
		if hv == nil {
			continue
		}
		val, err := c.fromHeader(f, hv)
		if err != nil {
			return nil, err
		}
		f.Set(ev, val)
	}

	fields := variant.Shape.FieldsAt(shape.LocationEventPayload)
	if len(fields) == 0 {
		if err := c.payload.Unmarshal(variant.Shape, msg.Payload, ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
	f := fields[0]
	switch f.Kind() {
	case shape.KindBlob:
		f.Set(ev, bytes.Clone(msg.Payload))
	case shape.KindString:
		f.Set(ev, string(msg.Payload))
	case shape.KindStructure:
		val := f.Shape.New()
		if err := c.payload.Unmarshal(f.Shape, msg.Payload, val); err != nil {
			return nil, err
		}
		f.Set(ev, val)
	}
	return ev, nil
}

func (c *Codec) fromHeader(f *shape.Field, hv eventstream.Value) (any, error) {
	invalid := func() error {
		return merr.WrapErrUnmarshalInvalidValue(c.protocol, f.DisplayName(), f.Location,
			errors.Newf("unexpected header value %T", hv))
	}
	raw := hv.Get()
	switch f.Kind() {
	case shape.KindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case shape.KindInteger:
		switch n := raw.(type) {
		case int8:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case shape.KindDouble:
		switch x := raw.(type) {
		case string:
			v, err := serializer.ParseFloat(x)
			if err != nil {
				return nil, invalid()
			}
			return v, nil
		case int64:
			return float64(x), nil
		}
	case shape.KindBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case shape.KindBlob:
		if b, ok := raw.([]byte); ok {
			return bytes.Clone(b), nil
		}
	case shape.KindTimestamp:
		if t, ok := raw.(time.Time); ok {
			return t.UTC(), nil
		}
	}
	return nil, invalid()
}

func headerString(headers framer.Headers, name string) string {
	v := headers.Get(name)
	if v == nil {
		return ""
	}
	if s, ok := v.Get().(string); ok {
		return s
	}
	return v.String()
}

func messageOf(sh *shape.Shape, v any) string {
	for _, name := range []string{"message", "Message", "errorMessage"} {
		if f := sh.FieldByWire(name); f != nil {
			if s, ok := f.Get(v).(string); ok {
				return s
			}
		}
	}
	return ""
}
