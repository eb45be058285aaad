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
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
	ServiceCode  int32 = 10002
)

// ErrorType 描述错误所属的大类，对应协议引擎的错误分层。
type ErrorType int32

const (
	SystemError        ErrorType = 0
	ConfigurationError ErrorType = 1
	MarshallingError   ErrorType = 2
	StreamError        ErrorType = 3
	TransportError     ErrorType = 4
	ServiceFailure     ErrorType = 5
)

var ErrorTypeName = map[ErrorType]string{
	SystemError:        "system_error",
	ConfigurationError: "configuration_error",
	MarshallingError:   "marshalling_error",
	StreamError:        "stream_integrity_error",
	TransportError:     "transport_error",
	ServiceFailure:     "service_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Configuration related，只会在构造 binding / marshaller 时出现，不会出现在单次调用中。
	ErrConfigInvalidBinding      = newWireError("invalid operation binding", 100, false, WithErrorType(ConfigurationError))
	ErrConfigInvalidField        = newWireError("invalid field descriptor", 101, false, WithErrorType(ConfigurationError))
	ErrConfigUnsupportedProtocol = newWireError("unsupported protocol family", 102, false, WithErrorType(ConfigurationError))
	ErrConfigInvalidValue        = newWireError("invalid configuration value", 103, false, WithErrorType(ConfigurationError))

	// Marshalling related
	ErrMarshalInvalidValue     = newWireError("invalid field value", 200, false, WithErrorType(MarshallingError))
	ErrMarshalUnresolvedURI    = newWireError("unresolved uri placeholder", 201, false, WithErrorType(MarshallingError))
	ErrMarshalUnsupportedType  = newWireError("unsupported value type", 202, false, WithErrorType(MarshallingError))
	ErrUnmarshalMalformedBody  = newWireError("malformed response body", 203, false, WithErrorType(MarshallingError))
	ErrUnmarshalInvalidValue   = newWireError("invalid response value", 204, false, WithErrorType(MarshallingError))
	ErrMarshalMismatchedObject = newWireError("object does not match shape", 205, false, WithErrorType(MarshallingError))

	// Event stream related
	ErrStreamChecksum  = newWireError("event stream checksum mismatch", 300, false, WithErrorType(StreamError))
	ErrStreamTruncated = newWireError("event stream truncated", 301, false, WithErrorType(StreamError))
	ErrStreamMalformed = newWireError("malformed event stream message", 302, false, WithErrorType(StreamError))
	ErrStreamClosed    = newWireError("event stream closed", 303, false, WithErrorType(StreamError))

	// Transport related
	ErrTransportTimeout = newWireError("transport timeout", 400, true, WithErrorType(TransportError))
	ErrTransportFailed  = newWireError("transport failed", 401, false, WithErrorType(TransportError))

	// General
	// 协议族无法承载操作的绑定形态，例如 Query 协议上的显式或流式负载。
	ErrOperationNotSupported = newWireError("unsupported operation", 3000, false, WithErrorType(ConfigurationError))

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to wireError
	errUnexpected = newWireError("unexpected error", (1<<16)-1, false)
)

type errorOption func(*wireError)

func WithErrorType(etype ErrorType) errorOption {
	return func(err *wireError) {
		err.errType = etype
	}
}

type wireError struct {
	msg       string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newWireError(msg string, code int32, retriable bool, options ...errorOption) wireError {
	err := wireError{
		msg:       msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e wireError) code() int32 {
	return e.errCode
}

func (e wireError) Error() string {
	return e.msg
}

func (e wireError) Is(err error) bool {
	if found, ok := findWireError(err); ok {
		return e.errCode == found.errCode
	}
	return false
}

// causedError 在 wireError 的基础上保留底层原因，errors.Is 对两者都成立。
type causedError struct {
	wireError
	cause error
}

func (e *causedError) Error() string {
	return e.wireError.Error() + ": " + e.cause.Error()
}

func (e *causedError) Unwrap() error {
	return e.cause
}

func (e *causedError) Is(err error) bool {
	return e.wireError.Is(err)
}

func withCause(err wireError, cause error) error {
	if cause == nil {
		return err
	}
	return &causedError{wireError: err, cause: cause}
}

// findWireError 沿错误链查找第一个 wireError。
func findWireError(err error) (wireError, bool) {
	for err != nil {
		switch e := err.(type) {
		case wireError:
			return e, true
		case *causedError:
			return e.wireError, true
		}
		err = errors.UnwrapOnce(err)
	}
	return wireError{}, false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
