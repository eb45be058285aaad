package rest

import (
	"bytes"
	stdjson "encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/ec2query"
	"github.com/aws/aws-sdk-go-v2/aws/protocol/restjson"
	awsxml "github.com/aws/aws-sdk-go-v2/aws/protocol/xml"

	"github.com/lk2023060901/awswire-go/internal/json"
	"github.com/lk2023060901/awswire-go/internal/protocol/serializer"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

const (
	// UnknownErrorCode 为无法从响应中解析出错误码时使用的错误码。
	UnknownErrorCode = "UnknownError"

	headerErrorType    = "X-Amzn-ErrorType"
	headerRequestID    = "X-Amzn-RequestId"
	headerAmzRequestID = "X-Amz-Request-Id"
)

// RequestID 从响应头中读取请求 ID。
func RequestID(headers *wire.Headers) string {
	if id := headers.Get(headerRequestID); id != "" {
		return id
	}
	return headers.Get(headerAmzRequestID)
}

func newServiceError(protocol string, resp *wire.Response) *merr.ServiceError {
	return &merr.ServiceError{
		StatusCode: resp.StatusCode,
		RequestID:  RequestID(&resp.Headers),
		Protocol:   protocol,
		RawBody:    resp.Body,
	}
}

func fillUnknown(se *merr.ServiceError) *merr.ServiceError {
	if se.Code == "" {
		se.Code = UnknownErrorCode
	}
	if se.Message == "" {
		se.Message = http.StatusText(se.StatusCode)
	}
	return se
}

// JSONErrorCode 返回 JSON 错误体中的错误类型（__type 或 code），未出现时为空串。
func JSONErrorCode(doc map[string]any) string {
	for _, key := range []string{"__type", "code", "Code"} {
		if s, ok := doc[key].(string); ok && s != "" {
			return restjson.SanitizeErrorCode(s)
		}
	}
	return ""
}

// ParseJSONError 解析 JSON 协议的错误响应。
//
// 错误码优先取 X-Amzn-ErrorType 头，其次取 __type 或 code 字段；
// "aws.protocoltests#FooError:http://..." 形式的值会被规整为 "FooError"。
func ParseJSONError(protocol string, resp *wire.Response) (*merr.ServiceError, map[string]any) {
	se := newServiceError(protocol, resp)
	var doc map[string]any
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		_ = json.Unmarshal(resp.Body, &doc)
	}
	if h := resp.Headers.Get(headerErrorType); h != "" {
		se.Code = restjson.SanitizeErrorCode(h)
	} else {
		se.Code = JSONErrorCode(doc)
	}
	for _, key := range []string{"message", "Message", "errorMessage"} {
		if s, ok := doc[key].(string); ok && s != "" {
			se.Message = s
			break
		}
	}
	return fillUnknown(se), doc
}

// ParseXMLError 解析 XML 协议的错误响应，支持 <Error>、<ErrorResponse><Error> 与
// EC2 的 <Response><Errors><Error> 三种信封。
func ParseXMLError(protocol string, resp *wire.Response) (*merr.ServiceError, *serializer.Node) {
	se := newServiceError(protocol, resp)
	root, err := serializer.ParseXML(resp.Body)
	if err != nil {
		return fillUnknown(se), nil
	}

	var (
		components awsxml.ErrorComponents
		detail     *serializer.Node
	)
	switch root.Name {
	case "Response":
		ec2, perr := ec2query.GetErrorResponseComponents(bytes.NewReader(resp.Body))
		err = perr
		components = awsxml.ErrorComponents{Code: ec2.Code, Message: ec2.Message, RequestID: ec2.RequestID}
		detail = root.Find("Errors", "Error")
	case "ErrorResponse":
		components, err = awsxml.GetErrorResponseComponents(bytes.NewReader(resp.Body), false)
		detail = root.Child("Error")
	default:
		components, err = awsxml.GetErrorResponseComponents(bytes.NewReader(resp.Body), true)
		detail = root
	}
	if err == nil {
		se.Code = strings.TrimSpace(components.Code)
		se.Message = components.Message
		if components.RequestID != "" {
			se.RequestID = components.RequestID
		}
	}
	if se.RequestID == "" {
		se.RequestID = root.ChildText("RequestID")
	}
	return fillUnknown(se), detail
}

// HasJSONErrorType 判断 2xx 的 JSON 响应体是否实际携带错误类型。
func HasJSONErrorType(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 || !bytes.Contains(body, []byte(`"__type"`)) {
		return false
	}
	var probe map[string]stdjson.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	_, ok := probe["__type"]
	return ok
}
