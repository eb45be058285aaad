package merr

import (
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

// ServiceError 表示由服务端返回、格式正确但语义为失败的响应。
//
// 它与客户端本地的编解码错误严格区分：外层重试策略可以据此区分
// 限流（可重试）与参数校验（不可重试）等情况。
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	RequestID  string
	Protocol   string

	// Modeled 为按错误码注册的错误结构解码结果，未注册时为 nil。
	Modeled any

	// RawBody 保留原始响应体，便于排查。
	RawBody []byte
}

var _ smithy.APIError = (*ServiceError)(nil)

// throttlingCodes 为服务端限流类错误码，外层重试策略可以据此退避重试。
var throttlingCodes = typeutil.NewSet(
	"Throttling",
	"ThrottlingException",
	"ThrottledException",
	"RequestThrottledException",
	"TooManyRequestsException",
	"ProvisionedThroughputExceededException",
	"TransactionInProgressException",
	"RequestLimitExceeded",
	"BandwidthLimitExceeded",
	"LimitExceededException",
	"RequestThrottled",
	"SlowDown",
	"PriorRequestNotComplete",
	"EC2ThrottledException",
)

var transientCodes = typeutil.NewSet(
	"RequestTimeout",
	"RequestTimeoutException",
	"InternalError",
	"ServiceUnavailable",
)

func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("service error: code=%s status=%d", e.Code, e.StatusCode)
	if e.Message != "" {
		msg += " message=" + e.Message
	}
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	return msg
}

func (e *ServiceError) ErrorCode() string {
	return e.Code
}

func (e *ServiceError) ErrorMessage() string {
	return e.Message
}

func (e *ServiceError) ErrorFault() smithy.ErrorFault {
	switch {
	case e.StatusCode >= http.StatusInternalServerError:
		return smithy.FaultServer
	case e.StatusCode >= http.StatusBadRequest:
		return smithy.FaultClient
	default:
		return smithy.FaultUnknown
	}
}

// Retryable 判断该服务端错误是否允许重试。
func (e *ServiceError) Retryable() bool {
	if throttlingCodes.Contain(e.Code) || transientCodes.Contain(e.Code) {
		return true
	}
	switch e.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	}
	return false
}

// IsThrottling 判断错误码是否属于限流类。
func (e *ServiceError) IsThrottling() bool {
	return throttlingCodes.Contain(e.Code)
}

// AsServiceError 判断错误链中是否包含 ServiceError。
func AsServiceError(err error) (*ServiceError, bool) {
	if err == nil {
		return nil, false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
