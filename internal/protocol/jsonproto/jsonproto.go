// Package jsonproto 实现 RPC 风格 JSON 与 REST 绑定 JSON 两种协议的编解码。
//
// RPC 风格：操作由 X-Amz-Target 头分发，请求体始终为一个 JSON 对象，
// 2xx 响应中出现 __type 同样视为错误。REST 风格：字段按位置绑定到 URI、查询参数与头部，
// 其余 PAYLOAD 成员组成 JSON 请求体。
package jsonproto

import (
	"bytes"
	"io"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/eventstream"
	"github.com/lk2023060901/awswire-go/internal/protocol/framer"
	"github.com/lk2023060901/awswire-go/internal/protocol/rest"
	"github.com/lk2023060901/awswire-go/internal/protocol/serializer"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

const (
	headerContentType = "Content-Type"
	headerTarget      = "X-Amz-Target"

	contentTypeJSON        = "application/json"
	contentTypeBinary      = "application/octet-stream"
	contentTypeText        = "text/plain"
	contentTypeEventStream = "application/vnd.amazon.eventstream"

	// 事件流中承载非事件流成员的首帧事件类型。
	eventInitialRequest  = "initial-request"
	eventInitialResponse = "initial-response"

	encoding = "JSON"
)

// Config 为 JSON 协议的构造参数。
type Config struct {
	// Protocol 为诊断信息中的协议名。
	Protocol string
	// RPC 为 true 时使用 X-Amz-Target 分发。
	RPC bool
	// JSONVersion 为 RPC 风格的 "1.0" 或 "1.1"。
	JSONVersion string
	// TargetPrefix 为 X-Amz-Target 中操作名之前的部分，例如 "DynamoDB_20120810"。
	TargetPrefix string

	ErrorShapes  rest.ErrorShapes
	MaxFrameSize uint32
}

// Protocol 为绑定到单个操作的 JSON 编解码器，不持有每次调用的状态，可并发使用。
type Protocol struct {
	cfg Config
	op  *binding.Operation

	contentType string
	target      string

	body   *serializer.JSONSerializer
	framer *framer.CRCFramer
	// input/output 为请求与响应方向的事件流编解码器，操作没有事件流时为 nil。
	input  *eventstream.Codec
	output *eventstream.Codec
}

// New 创建绑定到 op 的 JSON 协议。REST 风格下显式负载不能与其他 PAYLOAD 成员并存，
// RPC 风格的事件流操作则以这些成员组成 initial-request。
func New(op *binding.Operation, cfg Config) (*Protocol, error) {
	if !cfg.RPC {
		if err := rest.CheckBinding(op); err != nil {
			return nil, err
		}
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "rest-json"
		if cfg.RPC {
			cfg.Protocol = "json"
		}
	}
	if cfg.JSONVersion == "" {
		cfg.JSONVersion = "1.1"
	}
	p := &Protocol{
		cfg:    cfg,
		op:     op,
		body:   serializer.NewJSON(cfg.Protocol, contentTypeJSON),
		framer: framer.NewCRCFramer(cfg.MaxFrameSize),
	}
	if cfg.RPC {
		p.contentType = "application/x-amz-json-" + cfg.JSONVersion
		p.target = op.OperationIdentifier()
		if cfg.TargetPrefix != "" {
			p.target = cfg.TargetPrefix + "." + p.target
		}
	}
	events := serializer.NewJSON(cfg.Protocol, contentTypeJSON)
	if f := payloadOf(op.Input()); f != nil && f.Kind() == shape.KindEventStream {
		p.input = eventstream.NewCodec(cfg.Protocol, f.Shape, events)
	}
	if f := payloadOf(op.Output()); f != nil && f.Kind() == shape.KindEventStream {
		p.output = eventstream.NewCodec(cfg.Protocol, f.Shape, events)
	}
	return p, nil
}

func payloadOf(sh *shape.Shape) *shape.Field {
	if sh == nil {
		return nil
	}
	return sh.PayloadField()
}

// Operation 返回绑定的操作。
func (p *Protocol) Operation() *binding.Operation {
	return p.op
}

// Marshal 将类型化请求编码为线上请求，失败时不产生任何 I/O。
func (p *Protocol) Marshal(input any) (*wire.Request, error) {
	req, err := rest.NewRequest(p.cfg.Protocol, p.op, input)
	if err != nil {
		return nil, rest.MarshalError(encoding, err)
	}
	if p.cfg.RPC {
		req.Headers.Set(headerTarget, p.target)
	}
	if err := p.marshalBody(req, input); err != nil {
		req.Close()
		return nil, rest.MarshalError(encoding, err)
	}
	return req, nil
}

func (p *Protocol) marshalBody(req *wire.Request, input any) error {
	sh := p.op.Input()
	if sh != nil && sh.IsNil(input) {
		input = nil
	}

	if p.op.HasExplicitPayloadMember() {
		return p.marshalExplicit(req, sh.PayloadField(), input)
	}
	if !p.cfg.RPC && !p.op.HasPayloadMembers() {
		return nil
	}

	// RPC 风格即使没有成员也发送 "{}"。
	var body []byte
	if sh == nil || input == nil {
		body = []byte("{}")
	} else {
		var err error
		body, err = p.body.Marshal(sh, input)
		if err != nil {
			return err
		}
	}
	req.Body = body
	p.setContentType(req, contentTypeJSON)
	return nil
}

func (p *Protocol) marshalExplicit(req *wire.Request, f *shape.Field, input any) error {
	val := f.Get(input)

	switch {
	case f.Kind() == shape.KindEventStream:
		stream, _ := val.(shape.EventStream)
		if stream == nil {
			stream = shape.SliceEvents()
		}
		var opts []eventstream.BodyOption
		if p.cfg.RPC && p.hasMembersSet(input) {
			initial, err := p.input.EncodeInitial(eventInitialRequest, p.op.Input(), input)
			if err != nil {
				return err
			}
			opts = append(opts, eventstream.WithInitialMessage(initial))
		}
		req.Stream = eventstream.NewBody(p.input, p.framer, stream, opts...)
		req.Headers.Set(headerContentType, contentTypeEventStream)
		return nil
	case f.Location == shape.LocationStreamingPayload:
		if r, ok := val.(io.Reader); ok {
			req.Stream = rest.RequestStream(r)
		}
		p.setContentType(req, contentTypeBinary)
		return nil
	}

	// 显式负载为空时请求体为空，不输出 "{}"。
	if val == nil {
		return nil
	}
	switch f.Kind() {
	case shape.KindBlob:
		req.Body = bytes.Clone(val.([]byte))
		p.setContentType(req, contentTypeBinary)
	case shape.KindString:
		req.Body = []byte(val.(string))
		p.setContentType(req, contentTypeText)
	case shape.KindStructure:
		body, err := p.body.Marshal(f.Shape, val)
		if err != nil {
			return err
		}
		req.Body = body
		p.setContentType(req, contentTypeJSON)
	default:
		return merr.WrapErrMarshalUnsupportedType(p.cfg.Protocol, f.DisplayName(), val)
	}
	return nil
}

// hasMembersSet 判断请求中是否设置了事件流以外的 PAYLOAD 成员。
func (p *Protocol) hasMembersSet(input any) bool {
	if input == nil {
		return false
	}
	for _, f := range p.op.Input().FieldsAt(shape.LocationPayload) {
		if f.Get(input) != nil {
			return true
		}
	}
	return false
}

// setContentType 设置请求体类型：RPC 风格固定为 amz-json，已由头部成员设置时不覆盖。
func (p *Protocol) setContentType(req *wire.Request, contentType string) {
	if req.Headers.Has(headerContentType) {
		return
	}
	if p.cfg.RPC {
		contentType = p.contentType
	}
	req.Headers.Set(headerContentType, contentType)
}

// Unmarshal 将线上响应解码为类型化响应，服务端错误以 *merr.ServiceError 返回。
//
// 事件流与字节流响应会接管 resp.Stream，由调用方通过输出值中的字段读取并关闭。
func (p *Protocol) Unmarshal(resp *wire.Response) (any, error) {
	streaming := p.op.HasStreamingOutput() && resp.IsSuccess()
	if !streaming {
		if err := resp.Buffer(); err != nil {
			return nil, merr.WrapTransportErr(err)
		}
	}
	if !resp.IsSuccess() || (p.cfg.RPC && rest.HasJSONErrorType(resp.Body)) {
		return nil, p.serviceError(resp)
	}

	sh := p.op.Output()
	if sh == nil {
		resp.Close()
		return nil, nil
	}
	out := sh.New()
	if err := rest.BindResponse(p.cfg.Protocol, sh, resp, out); err != nil {
		resp.Close()
		return nil, err
	}

	f := sh.PayloadField()
	if f == nil {
		if err := p.body.Unmarshal(sh, resp.Body, out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := p.unmarshalExplicit(sh, f, resp, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Protocol) unmarshalExplicit(sh *shape.Shape, f *shape.Field, resp *wire.Response, out any) error {
	switch {
	case f.Kind() == shape.KindEventStream:
		reader := eventstream.NewReader(resp.Context(), p.output, p.framer, rest.TakeStream(resp))
		if p.cfg.RPC {
			if _, err := reader.ReadInitial(eventInitialResponse, sh, out); err != nil {
				reader.Close()
				return err
			}
		}
		f.Set(out, reader)
		return nil
	case f.Location == shape.LocationStreamingPayload:
		f.Set(out, rest.TakeStream(resp))
		return nil
	}

	if len(resp.Body) == 0 {
		return nil
	}
	switch f.Kind() {
	case shape.KindBlob:
		f.Set(out, bytes.Clone(resp.Body))
	case shape.KindString:
		f.Set(out, string(resp.Body))
	case shape.KindStructure:
		val := f.Shape.New()
		if err := p.body.Unmarshal(f.Shape, resp.Body, val); err != nil {
			return err
		}
		f.Set(out, val)
	}
	return nil
}

func (p *Protocol) serviceError(resp *wire.Response) error {
	se, doc := rest.ParseJSONError(p.cfg.Protocol, resp)
	p.cfg.ErrorShapes.DecodeModeled(p.cfg.Protocol, se, resp, func(sh *shape.Shape, v any) error {
		if doc == nil {
			return nil
		}
		return p.body.Decode(sh, doc, v)
	})
	return se
}
