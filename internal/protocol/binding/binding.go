// Package binding 为每个 API 操作的静态绑定信息。
//
// Operation 在客户端构造时创建一次，之后在全部调用间只读共享。
package binding

import (
	"net/http"
	"strings"

	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

// Config 为构造 Operation 的参数。
type Config struct {
	// RequestURI 为请求 URI 模板，例如 "/{Bucket}/{Key+}?uploads"，为空时为 "/"。
	RequestURI string
	// HTTPMethod 为空时为 POST。
	HTTPMethod string
	// OperationIdentifier 为 RPC 类协议的分发键（X-Amz-Target 或 Action）。
	OperationIdentifier string
	APIVersion          string

	HasExplicitPayloadMember bool
	HasPayloadMembers        bool
	HasStreamingInput        bool
	HasStreamingOutput       bool

	Input  *shape.Shape
	Output *shape.Shape
}

// Label 为 URI 模板中的一个占位符。
type Label struct {
	Name string
	// Greedy 对应 {Name+}，替换时保留 '/'。
	Greedy bool
}

// QueryLiteral 为 URI 模板中的固定查询参数，HasValue 为 false 时只输出键。
type QueryLiteral struct {
	Key      string
	Value    string
	HasValue bool
}

// Operation 为不可变的操作绑定信息。
type Operation struct {
	requestURI string
	method     string
	identifier string
	apiVersion string

	explicitPayload bool
	payloadMembers  bool
	streamingInput  bool
	streamingOutput bool

	input  *shape.Shape
	output *shape.Shape

	path    string
	labels  []Label
	literal []QueryLiteral
}

// New 校验配置并构造 Operation，不合法的组合返回配置错误。
func New(cfg Config) (*Operation, error) {
	if cfg.OperationIdentifier == "" {
		return nil, merr.WrapErrConfigInvalidBinding("-", "operation identifier is empty")
	}
	if cfg.RequestURI == "" {
		cfg.RequestURI = "/"
	}
	if cfg.HTTPMethod == "" {
		cfg.HTTPMethod = http.MethodPost
	}
	op := &Operation{
		requestURI:      cfg.RequestURI,
		method:          strings.ToUpper(cfg.HTTPMethod),
		identifier:      cfg.OperationIdentifier,
		apiVersion:      cfg.APIVersion,
		explicitPayload: cfg.HasExplicitPayloadMember,
		payloadMembers:  cfg.HasPayloadMembers,
		streamingInput:  cfg.HasStreamingInput,
		streamingOutput: cfg.HasStreamingOutput,
		input:           cfg.Input,
		output:          cfg.Output,
	}
	if err := op.parseTemplate(); err != nil {
		return nil, err
	}
	if err := shape.Validate(op.input); err != nil {
		return nil, merr.Combine(merr.WrapErrConfigInvalidBinding(op.identifier, "invalid input shape"), err)
	}
	if err := shape.Validate(op.output); err != nil {
		return nil, merr.Combine(merr.WrapErrConfigInvalidBinding(op.identifier, "invalid output shape"), err)
	}
	if err := op.checkInput(); err != nil {
		return nil, err
	}
	if err := op.checkOutput(); err != nil {
		return nil, err
	}
	return op, nil
}

func (op *Operation) parseTemplate() error {
	uri := op.requestURI
	if !strings.HasPrefix(uri, "/") {
		return merr.WrapErrConfigInvalidBinding(op.identifier, "request uri must start with '/'")
	}
	path, rawQuery, _ := strings.Cut(uri, "?")
	op.path = path

	names := typeutil.NewSet[string]()
	rest := path
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return merr.WrapErrConfigInvalidBinding(op.identifier, "unbalanced '}' in request uri")
			}
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return merr.WrapErrConfigInvalidBinding(op.identifier, "unterminated placeholder in request uri")
		}
		label := Label{Name: rest[start+1 : start+end]}
		if strings.HasSuffix(label.Name, "+") {
			label.Name = strings.TrimSuffix(label.Name, "+")
			label.Greedy = true
		}
		if label.Name == "" || strings.ContainsAny(label.Name, "{/") {
			return merr.WrapErrConfigInvalidBinding(op.identifier, "malformed placeholder in request uri")
		}
		if names.Contain(label.Name) {
			return merr.WrapErrConfigInvalidBinding(op.identifier, "duplicate placeholder "+label.Name)
		}
		names.Insert(label.Name)
		op.labels = append(op.labels, label)
		rest = rest[start+end+1:]
	}

	if rawQuery == "" {
		return nil
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		if strings.ContainsAny(pair, "{}") {
			return merr.WrapErrConfigInvalidBinding(op.identifier, "placeholder in literal query")
		}
		key, value, hasValue := strings.Cut(pair, "=")
		op.literal = append(op.literal, QueryLiteral{Key: key, Value: value, HasValue: hasValue})
	}
	return nil
}

func (op *Operation) checkInput() error {
	uriFields := typeutil.NewSet[string]()
	var body []*shape.Field
	if op.input != nil {
		for _, f := range op.input.FieldsAt(shape.LocationURI) {
			uriFields.Insert(f.WireName)
		}
		body = op.input.FieldsAt(shape.LocationPayload, shape.LocationExplicitPayload, shape.LocationStreamingPayload)
		if len(op.input.FieldsAt(shape.LocationStatusCode)) > 0 {
			return merr.WrapErrConfigInvalidBinding(op.identifier, "status code member in input")
		}
	}

	labels := typeutil.NewSet[string]()
	for _, l := range op.labels {
		labels.Insert(l.Name)
		if !uriFields.Contain(l.Name) {
			return merr.WrapErrConfigInvalidBinding(op.identifier, "placeholder {"+l.Name+"} has no uri member")
		}
	}
	for _, name := range typeutil.Sorted(uriFields) {
		if !labels.Contain(name) {
			return merr.WrapErrConfigInvalidBinding(op.identifier, "uri member "+name+" has no placeholder")
		}
	}

	var payload *shape.Field
	if op.input != nil {
		payload = op.input.PayloadField()
	}
	if op.explicitPayload && payload == nil {
		return merr.WrapErrConfigInvalidBinding(op.identifier, "explicit payload declared without a payload member")
	}
	if !op.explicitPayload && payload != nil {
		return merr.WrapErrConfigInvalidBinding(op.identifier, "payload member "+payload.WireName+" without explicit payload flag")
	}
	if !op.payloadMembers && len(body) > 0 {
		return merr.WrapErrConfigInvalidBinding(op.identifier, "payload members declared absent")
	}

	streaming := isStreaming(payload)
	if streaming != op.streamingInput {
		return merr.WrapErrConfigInvalidBinding(op.identifier, "streaming input flag does not match the input members")
	}
	return nil
}

func (op *Operation) checkOutput() error {
	var payload *shape.Field
	if op.output != nil {
		payload = op.output.PayloadField()
	}
	if isStreaming(payload) != op.streamingOutput {
		return merr.WrapErrConfigInvalidBinding(op.identifier, "streaming output flag does not match the output members")
	}
	return nil
}

func isStreaming(f *shape.Field) bool {
	if f == nil {
		return false
	}
	return f.Location == shape.LocationStreamingPayload || f.Kind() == shape.KindEventStream
}

func (op *Operation) RequestURI() string          { return op.requestURI }
func (op *Operation) HTTPMethod() string          { return op.method }
func (op *Operation) OperationIdentifier() string { return op.identifier }
func (op *Operation) APIVersion() string          { return op.apiVersion }

func (op *Operation) HasExplicitPayloadMember() bool { return op.explicitPayload }
func (op *Operation) HasPayloadMembers() bool        { return op.payloadMembers }
func (op *Operation) HasStreamingInput() bool        { return op.streamingInput }
func (op *Operation) HasStreamingOutput() bool       { return op.streamingOutput }

// Input 返回请求类型，无输入的操作返回 nil。
func (op *Operation) Input() *shape.Shape  { return op.input }
func (op *Operation) Output() *shape.Shape { return op.output }

// Path 返回去掉固定查询部分的路径模板。
func (op *Operation) Path() string { return op.path }

// Labels 返回路径模板中的占位符，按出现顺序。
func (op *Operation) Labels() []Label { return op.labels }

// LiteralQuery 返回模板中的固定查询参数，按出现顺序。
func (op *Operation) LiteralQuery() []QueryLiteral { return op.literal }

// String 用于日志与诊断信息。
func (op *Operation) String() string {
	return op.identifier + " " + op.method + " " + op.requestURI
}
