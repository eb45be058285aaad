// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
// 服务端错误统一返回 ServiceCode，具体的服务端错误码请通过 AsServiceError 获取。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	if _, ok := AsServiceError(err); ok {
		return ServiceCode
	}
	if found, ok := findWireError(err); ok {
		return found.code()
	}
	if errors.Is(err, context.Canceled) {
		return CanceledCode
	} else if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutCode
	}
	return errUnexpected.code()
}

// IsRetryableErr 判断错误是否允许由外层重试策略重试。
// 限流类服务端错误、5xx 与传输超时可重试；配置、编解码与流完整性错误不可重试。
func IsRetryableErr(err error) bool {
	if se, ok := AsServiceError(err); ok {
		return se.Retryable()
	}
	if found, ok := findWireError(err); ok {
		return found.retriable
	}
	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// GetErrorType 返回错误所属的大类。
func GetErrorType(err error) ErrorType {
	if _, ok := AsServiceError(err); ok {
		return ServiceFailure
	}
	if found, ok := findWireError(err); ok {
		return found.errType
	}
	return SystemError
}

// IsClientError 判断错误是否为客户端本地产生（配置或编解码），而非服务端返回。
func IsClientError(err error) bool {
	switch GetErrorType(err) {
	case ConfigurationError, MarshallingError:
		return true
	default:
		return false
	}
}

// Configuration 相关错误封装。
func WrapErrConfigInvalidBinding(operation string, reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrConfigInvalidBinding, reason, value("operation", operation))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrConfigInvalidField(field string, location any, reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrConfigInvalidField, reason,
		value("field", field),
		value("location", location),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrConfigUnsupportedProtocol(family any, msg ...string) error {
	err := wrapFields(ErrConfigUnsupportedProtocol, value("protocol", family))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrConfigInvalidValue(key string, actual any, msg ...string) error {
	err := wrapFields(ErrConfigInvalidValue, value("key", key), value("value", actual))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Marshalling 相关错误封装。
func WrapErrMarshalInvalidValue(protocol, field string, location any, cause error) error {
	return withCause(wrapFieldsErr(ErrMarshalInvalidValue,
		value("protocol", protocol),
		value("field", field),
		value("location", location),
	), cause)
}

func WrapErrMarshalUnresolvedURI(protocol, placeholder string, msg ...string) error {
	err := wrapFields(ErrMarshalUnresolvedURI,
		value("protocol", protocol),
		value("placeholder", placeholder),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMarshalUnsupportedType(protocol, field string, actual any) error {
	return wrapFields(ErrMarshalUnsupportedType,
		value("protocol", protocol),
		value("field", field),
		value("type", fmt.Sprintf("%T", actual)),
	)
}

func WrapErrMarshalMismatchedObject(shape string, actual any) error {
	return wrapFields(ErrMarshalMismatchedObject,
		value("shape", shape),
		value("type", fmt.Sprintf("%T", actual)),
	)
}

func WrapErrUnmarshalMalformedBody(protocol string, cause error, msg ...string) error {
	err := withCause(wrapFieldsErr(ErrUnmarshalMalformedBody, value("protocol", protocol)), cause)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrUnmarshalInvalidValue(protocol, field string, location any, cause error) error {
	return withCause(wrapFieldsErr(ErrUnmarshalInvalidValue,
		value("protocol", protocol),
		value("field", field),
		value("location", location),
	), cause)
}

// Event stream 相关错误封装。
func WrapErrStreamChecksum(cause error) error {
	return withCause(ErrStreamChecksum, cause)
}

func WrapErrStreamTruncated(cause error) error {
	return withCause(ErrStreamTruncated, cause)
}

func WrapErrStreamMalformed(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrStreamMalformed, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrStreamClosed(msg ...string) error {
	var err error = ErrStreamClosed
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Transport 相关错误封装。
func WrapErrTransportTimeout(cause error) error {
	return withCause(ErrTransportTimeout, cause)
}

func WrapErrTransportFailed(cause error) error {
	return withCause(ErrTransportFailed, cause)
}

// WrapTransportErr 将传输层返回的错误归类：超时为可重试的 ErrTransportTimeout，其余为 ErrTransportFailed。
// 调用方主动取消时保持 context.Canceled 原样返回。
func WrapTransportErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapErrTransportTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return WrapErrTransportTimeout(err)
	}
	return WrapErrTransportFailed(err)
}

func WrapErrOperationNotSupported(operation string, msg ...string) error {
	err := wrapFields(ErrOperationNotSupported, value("operation", operation))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err wireError, fields ...errorField) error {
	return wrapFieldsErr(err, fields...)
}

func wrapFieldsErr(err wireError, fields ...errorField) wireError {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	return err
}

func wrapFieldsWithDesc(err wireError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}
