// Package xmlproto 实现 REST 绑定 XML 协议的编解码。
package xmlproto

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

	contentTypeXML         = "application/xml"
	contentTypeBinary      = "application/octet-stream"
	contentTypeText        = "text/plain"
	contentTypeEventStream = "application/vnd.amazon.eventstream"

	encoding = "XML"

	// 2xx 响应中以该元素为根时视为错误。
	errorRoot = "Error"
)

// Config 为 REST-XML 协议的构造参数。
type Config struct {
	Protocol     string
	ErrorShapes  rest.ErrorShapes
	MaxFrameSize uint32
}

// Protocol 为绑定到单个操作的 REST-XML 编解码器，可并发使用。
type Protocol struct {
	cfg Config
	op  *binding.Operation

	body   *serializer.XMLSerializer
	framer *framer.CRCFramer
	input  *eventstream.Codec
	output *eventstream.Codec
}

func New(op *binding.Operation, cfg Config) (*Protocol, error) {
	if err := rest.CheckBinding(op); err != nil {
		return nil, err
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "rest-xml"
	}
	p := &Protocol{
		cfg:    cfg,
		op:     op,
		body:   serializer.NewXML(cfg.Protocol),
		framer: framer.NewCRCFramer(cfg.MaxFrameSize),
	}
	if sh := op.Input(); sh != nil {
		if f := sh.PayloadField(); f != nil && f.Kind() == shape.KindEventStream {
			p.input = eventstream.NewCodec(cfg.Protocol, f.Shape, p.body)
		}
	}
	if sh := op.Output(); sh != nil {
		if f := sh.PayloadField(); f != nil && f.Kind() == shape.KindEventStream {
			p.output = eventstream.NewCodec(cfg.Protocol, f.Shape, p.body)
		}
	}
	return p, nil
}

func (p *Protocol) Operation() *binding.Operation {
	return p.op
}

// Marshal 将类型化请求编码为线上请求。请求体为以输入类型根元素名包装的 XML 文档，
// 显式负载时为该字段本身。
func (p *Protocol) Marshal(input any) (*wire.Request, error) {
	req, err := rest.NewRequest(p.cfg.Protocol, p.op, input)
	if err != nil {
		return nil, rest.MarshalError(encoding, err)
	}
	sh := p.op.Input()
	if sh != nil && sh.IsNil(input) {
		input = nil
	}

	switch {
	case p.op.HasExplicitPayloadMember():
		err = p.marshalExplicit(req, sh.PayloadField(), input)
	case p.op.HasPayloadMembers():
		req.Body, err = p.body.Marshal(sh, input)
		if err == nil {
			setContentType(req, contentTypeXML)
		}
	}
	if err != nil {
		req.Close()
		return nil, rest.MarshalError(encoding, err)
	}
	return req, nil
}

func (p *Protocol) marshalExplicit(req *wire.Request, f *shape.Field, input any) error {
	val := f.Get(input)
	switch {
	case f.Kind() == shape.KindEventStream:
		stream, _ := val.(shape.EventStream)
		if stream == nil {
			stream = shape.SliceEvents()
		}
		req.Stream = eventstream.NewBody(p.input, p.framer, stream)
		req.Headers.Set(headerContentType, contentTypeEventStream)
		return nil
	case f.Location == shape.LocationStreamingPayload:
		if r, ok := val.(io.Reader); ok {
			req.Stream = rest.RequestStream(r)
		}
		setContentType(req, contentTypeBinary)
		return nil
	}

	// 显式负载为空时请求体为空，不输出空的根元素。
	if val == nil {
		return nil
	}
	switch f.Kind() {
	case shape.KindBlob:
		req.Body = bytes.Clone(val.([]byte))
		setContentType(req, contentTypeBinary)
	case shape.KindString:
		req.Body = []byte(val.(string))
		setContentType(req, contentTypeText)
	case shape.KindStructure:
		body, err := p.body.MarshalElement(payloadRoot(f), f.Shape, val)
		if err != nil {
			return err
		}
		req.Body = body
		setContentType(req, contentTypeXML)
	default:
		return merr.WrapErrMarshalUnsupportedType(p.cfg.Protocol, f.DisplayName(), val)
	}
	return nil
}

// payloadRoot 返回显式负载结构体的根元素名：类型声明的 XML 名优先，其次为字段线上名。
func payloadRoot(f *shape.Field) string {
	if f.Shape.XMLName != "" {
		return f.Shape.XMLName
	}
	return f.WireName
}

func setContentType(req *wire.Request, contentType string) {
	if !req.Headers.Has(headerContentType) {
		req.Headers.Set(headerContentType, contentType)
	}
}

// Unmarshal 将线上响应解码为类型化响应，服务端错误以 *merr.ServiceError 返回。
func (p *Protocol) Unmarshal(resp *wire.Response) (any, error) {
	streaming := p.op.HasStreamingOutput() && resp.IsSuccess()
	if !streaming {
		if err := resp.Buffer(); err != nil {
			return nil, merr.WrapTransportErr(err)
		}
	}
	if !resp.IsSuccess() {
		return nil, p.serviceError(resp)
	}

	sh := p.op.Output()
	f := payloadOf(sh)
	var root *serializer.Node
	// 显式的字节或字符串负载不按 XML 解析。
	if !streaming && len(bytes.TrimSpace(resp.Body)) > 0 && (f == nil || f.Kind() == shape.KindStructure) {
		var err error
		root, err = serializer.ParseXML(resp.Body)
		if err != nil {
			return nil, merr.WrapErrUnmarshalMalformedBody(p.cfg.Protocol, err)
		}
		if root.Name == errorRoot {
			return nil, p.serviceError(resp)
		}
	}

	if sh == nil {
		resp.Close()
		return nil, nil
	}
	out := sh.New()
	if err := rest.BindResponse(p.cfg.Protocol, sh, resp, out); err != nil {
		resp.Close()
		return nil, err
	}

	if f == nil {
		if root != nil {
			if err := p.body.Decode(sh, root, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	switch {
	case f.Kind() == shape.KindEventStream:
		f.Set(out, eventstream.NewReader(resp.Context(), p.output, p.framer, rest.TakeStream(resp)))
	case f.Location == shape.LocationStreamingPayload:
		f.Set(out, rest.TakeStream(resp))
	case len(resp.Body) == 0:
	case f.Kind() == shape.KindBlob:
		f.Set(out, bytes.Clone(resp.Body))
	case f.Kind() == shape.KindString:
		f.Set(out, string(resp.Body))
	case f.Kind() == shape.KindStructure && root != nil:
		val := f.Shape.New()
		if err := p.body.Decode(f.Shape, root, val); err != nil {
			return nil, err
		}
		f.Set(out, val)
	}
	return out, nil
}

func payloadOf(sh *shape.Shape) *shape.Field {
	if sh == nil {
		return nil
	}
	return sh.PayloadField()
}

func (p *Protocol) serviceError(resp *wire.Response) error {
	se, detail := rest.ParseXMLError(p.cfg.Protocol, resp)
	p.cfg.ErrorShapes.DecodeModeled(p.cfg.Protocol, se, resp, func(sh *shape.Shape, v any) error {
		if detail == nil {
			return nil
		}
		return p.body.Decode(sh, detail, v)
	})
	return se
}
