package client

import (
	"context"
	"sync"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
)

// AttributeKey 为执行属性的类型化键，同名不同类型的键互不冲突。
type AttributeKey[T any] struct {
	name string
}

func NewAttributeKey[T any](name string) AttributeKey[T] {
	return AttributeKey[T]{name: name}
}

func (k AttributeKey[T]) String() string {
	return k.name
}

// ExecutionAttributes 为单次调用内各拦截器共享的属性集合。
type ExecutionAttributes struct {
	mu     sync.RWMutex
	values map[any]any
}

func newExecutionAttributes() *ExecutionAttributes {
	return &ExecutionAttributes{values: make(map[any]any)}
}

func GetAttribute[T any](attrs *ExecutionAttributes, key AttributeKey[T]) (T, bool) {
	attrs.mu.RLock()
	defer attrs.mu.RUnlock()
	v, ok := attrs.values[key]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func SetAttribute[T any](attrs *ExecutionAttributes, key AttributeKey[T], value T) {
	attrs.mu.Lock()
	defer attrs.mu.Unlock()
	attrs.values[key] = value
}

// 管线自身写入的属性。
var (
	AttrOperationName = NewAttributeKey[string]("OperationName")
	AttrServiceID     = NewAttributeKey[string]("ServiceID")
	AttrInvocationID  = NewAttributeKey[string]("InvocationID")
	AttrAttempt       = NewAttributeKey[int]("Attempt")
)

// CallContext 为拦截器可见的调用状态。
type CallContext struct {
	Operation  *binding.Operation
	Attributes *ExecutionAttributes

	// Input 在 BeforeMarshal 中可以被替换。
	Input any
	// Request 在 ModifyHTTPRequest 中有效。
	Request *wire.Request
	// Output 在 AfterUnmarshal 中有效，可以被替换。
	Output any
}

// Interceptor 为调用管线的钩子。返回错误会终止本次调用，且不会重试。
type Interceptor interface {
	// BeforeMarshal 在编码前执行一次。
	BeforeMarshal(ctx context.Context, call *CallContext) error
	// ModifyHTTPRequest 在每次尝试编码之后、签名之前执行。
	ModifyHTTPRequest(ctx context.Context, call *CallContext) error
	// AfterUnmarshal 在成功解码后执行一次。
	AfterUnmarshal(ctx context.Context, call *CallContext) error
}

// InterceptorFuncs 以函数实现 Interceptor，未设置的钩子为空操作。
type InterceptorFuncs struct {
	BeforeMarshalFunc     func(ctx context.Context, call *CallContext) error
	ModifyHTTPRequestFunc func(ctx context.Context, call *CallContext) error
	AfterUnmarshalFunc    func(ctx context.Context, call *CallContext) error
}

func (f InterceptorFuncs) BeforeMarshal(ctx context.Context, call *CallContext) error {
	if f.BeforeMarshalFunc == nil {
		return nil
	}
	return f.BeforeMarshalFunc(ctx, call)
}

func (f InterceptorFuncs) ModifyHTTPRequest(ctx context.Context, call *CallContext) error {
	if f.ModifyHTTPRequestFunc == nil {
		return nil
	}
	return f.ModifyHTTPRequestFunc(ctx, call)
}

func (f InterceptorFuncs) AfterUnmarshal(ctx context.Context, call *CallContext) error {
	if f.AfterUnmarshalFunc == nil {
		return nil
	}
	return f.AfterUnmarshalFunc(ctx, call)
}
