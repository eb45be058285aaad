package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameComponent = "component"
	FieldNameProtocol  = "protocol"
	FieldNameOperation = "operation"
)

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldProtocol 返回一个包含协议族名称的 zap 字段。
func FieldProtocol(protocol string) zap.Field {
	return zap.String(FieldNameProtocol, protocol)
}

// FieldOperation 返回一个包含操作标识的 zap 字段。
func FieldOperation(operation string) zap.Field {
	return zap.String(FieldNameOperation, operation)
}
