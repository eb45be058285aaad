// Package queryproto 实现 Query 与 EC2 两种表单协议的编解码。
//
// 请求体为 application/x-www-form-urlencoded，前两个键值对固定为 Action 与 Version，
// 之后按声明顺序展开 PAYLOAD 成员。响应为 XML：Query 从 <OpResponse><OpResult> 读取，
// EC2 直接从根元素读取。
package queryproto

import (
	"bytes"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/rest"
	"github.com/lk2023060901/awswire-go/internal/protocol/serializer"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

const (
	headerContentType = "Content-Type"

	keyAction  = "Action"
	keyVersion = "Version"

	encoding = "form"
)

// Config 为表单协议的构造参数。
type Config struct {
	Protocol string
	// EC2 为 true 时使用 EC2 的键名与列表规则，并从响应根元素读取结果。
	EC2         bool
	ErrorShapes rest.ErrorShapes
}

// Protocol 为绑定到单个操作的表单协议编解码器，可并发使用。
type Protocol struct {
	cfg Config
	op  *binding.Operation

	form *serializer.FormEncoder
	body *serializer.XMLSerializer
	// resultName 为 Query 响应中结果元素的名称。
	resultName string
}

// New 创建绑定到 op 的表单协议。表单协议不支持显式负载与流式负载，遇到时返回配置错误。
func New(op *binding.Operation, cfg Config) (*Protocol, error) {
	if cfg.Protocol == "" {
		cfg.Protocol = "query"
		if cfg.EC2 {
			cfg.Protocol = "ec2"
		}
	}
	if op.HasExplicitPayloadMember() || op.HasStreamingInput() || op.HasStreamingOutput() {
		return nil, merr.WrapErrOperationNotSupported(op.OperationIdentifier(), cfg.Protocol+" protocol has no explicit or streaming payload")
	}
	if op.APIVersion() == "" {
		return nil, merr.WrapErrConfigInvalidBinding(op.OperationIdentifier(), "api version is required by the "+cfg.Protocol+" protocol")
	}
	return &Protocol{
		cfg:        cfg,
		op:         op,
		form:       serializer.NewForm(cfg.Protocol, cfg.EC2),
		body:       serializer.NewXML(cfg.Protocol),
		resultName: op.OperationIdentifier() + "Result",
	}, nil
}

func (p *Protocol) Operation() *binding.Operation {
	return p.op
}

// Marshal 将类型化请求编码为表单请求。
func (p *Protocol) Marshal(input any) (*wire.Request, error) {
	req, err := rest.NewRequest(p.cfg.Protocol, p.op, input)
	if err != nil {
		return nil, rest.MarshalError(encoding, err)
	}

	form := serializer.Form{
		{Key: keyAction, Value: p.op.OperationIdentifier()},
		{Key: keyVersion, Value: p.op.APIVersion()},
	}
	if sh := p.op.Input(); sh != nil && !sh.IsNil(input) {
		if err := p.form.Encode(&form, sh, input); err != nil {
			return nil, rest.MarshalError(encoding, err)
		}
	}
	req.Body = []byte(form.Encode())
	req.Headers.Set(headerContentType, p.form.ContentType())
	return req, nil
}

// Unmarshal 将 XML 响应解码为类型化响应，服务端错误以 *merr.ServiceError 返回。
func (p *Protocol) Unmarshal(resp *wire.Response) (any, error) {
	if err := resp.Buffer(); err != nil {
		return nil, merr.WrapTransportErr(err)
	}
	if !resp.IsSuccess() {
		return nil, p.serviceError(resp)
	}

	sh := p.op.Output()
	if sh == nil {
		return nil, nil
	}
	out := sh.New()
	if err := rest.BindResponse(p.cfg.Protocol, sh, resp, out); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return out, nil
	}

	root, err := serializer.ParseXML(resp.Body)
	if err != nil {
		return nil, merr.WrapErrUnmarshalMalformedBody(p.cfg.Protocol, err)
	}
	node := root
	if !p.cfg.EC2 {
		if result := root.Child(p.resultName); result != nil {
			node = result
		}
	}
	if err := p.body.Decode(sh, node, out); err != nil {
		return nil, err
	}
	return out, nil
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
