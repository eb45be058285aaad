// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxLogKeyType struct{}

// CtxLogKey 为 context 中保存 *MLogger 的键。
var CtxLogKey = ctxLogKeyType{}

// Debug 使用全局 Logger 输出 Debug 日志。调用链上有 ctx 时优先使用 Ctx(ctx).Debug。
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// With 基于全局 Logger 创建一个携带额外字段的子 Logger。
func With(fields ...zap.Field) *MLogger {
	return &MLogger{Logger: L().With(fields...)}
}

// WithLogger 在 ctx 尚未携带 Logger 时挂上 l；已有 Logger 的 ctx 原样返回。
func WithLogger(ctx context.Context, l *MLogger) context.Context {
	if l == nil {
		return ctx
	}
	if _, ok := ctx.Value(CtxLogKey).(*MLogger); ok {
		return ctx
	}
	return context.WithValue(ctx, CtxLogKey, l)
}

// WithFields 返回一个附加了指定字段的上下文。
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, CtxLogKey, Ctx(ctx).With(fields...))
}

// WithSpan 为 ctx 中的 Logger 添加 span 的 traceID，span 未采样或无效时不添加。
func WithSpan(ctx context.Context, span trace.Span) context.Context {
	sc := span.SpanContext()
	if !sc.HasTraceID() {
		return ctx
	}
	return WithFields(ctx, zap.String("traceID", sc.TraceID().String()))
}

// Ctx 返回 ctx 上携带的 Logger，没有时返回全局 Logger。
func Ctx(ctx context.Context) *MLogger {
	if ctx != nil {
		if l, ok := ctx.Value(CtxLogKey).(*MLogger); ok {
			return l
		}
	}
	return &MLogger{Logger: L()}
}
