// Package client 为协议编解码器之上的调用管线：拦截器、签名、传输与重试。
package client

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/lk2023060901/awswire-go/internal/protocol"
	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	zlog "github.com/lk2023060901/awswire-go/pkg/log"
	"github.com/lk2023060901/awswire-go/pkg/metrics"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	"github.com/lk2023060901/awswire-go/pkg/util/retry"
)

const (
	headerUserAgent    = "User-Agent"
	headerInvocationID = "Amz-Sdk-Invocation-Id"
	headerSDKRequest   = "Amz-Sdk-Request"

	tracerName = "awswire"
)

// Client 持有协议工厂与调用管线，可并发使用。
type Client struct {
	cfg     Config
	logger  *zlog.MLogger
	factory *protocol.Factory
	agent   string
}

// New 创建客户端。协议族与端点在构造后不可更改。
func New(cfg Config, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	factory, err := protocol.NewFactory(protocol.FactoryConfig{
		Family:       cfg.Family,
		JSONVersion:  cfg.JSONVersion,
		TargetPrefix: cfg.TargetPrefix,
		ErrorShapes:  cfg.ErrorShapes,
		MaxFrameSize: cfg.MaxFrameSize,
	})
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zlog.With(zlog.FieldComponent("client"))
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		factory: factory,
		agent:   cfg.userAgent(),
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Invoke 执行一次操作调用。
//
// 服务端错误与传输错误以 *smithy.OperationError 包装返回，可用 merr.AsServiceError 取出 *merr.ServiceError。
// 请求体为流的调用不做重试。
func (c *Client) Invoke(ctx context.Context, op *binding.Operation, input any) (any, error) {
	p, err := c.factory.Protocol(op)
	if err != nil {
		return nil, err
	}

	name := op.OperationIdentifier()
	ctx, span := otel.Tracer(tracerName).Start(ctx, c.cfg.ServiceID+"."+name)
	defer span.End()
	span.SetAttributes(
		attribute.String("rpc.system", "aws-api"),
		attribute.String("rpc.service", c.cfg.ServiceID),
		attribute.String("rpc.method", name),
		attribute.String("awswire.protocol", p.Family().String()),
	)

	invocationID := uuid.NewString()
	ctx = zlog.WithSpan(zlog.WithLogger(ctx, c.logger), span)
	ctx = zlog.WithFields(ctx,
		zlog.FieldProtocol(p.Family().String()),
		zlog.FieldOperation(name),
		zap.String("invocationID", invocationID))

	call := &CallContext{
		Operation:  op,
		Attributes: newExecutionAttributes(),
		Input:      input,
	}
	SetAttribute(call.Attributes, AttrOperationName, name)
	SetAttribute(call.Attributes, AttrServiceID, c.cfg.ServiceID)
	SetAttribute(call.Attributes, AttrInvocationID, invocationID)

	start := time.Now()
	out, err := c.invoke(ctx, p, call, invocationID)
	elapsed := time.Since(start)
	metrics.CallLatency.WithLabelValues(p.Family().String(), name).Observe(float64(elapsed.Milliseconds()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zlog.Ctx(ctx).Warn("call failed",
			zap.Duration("elapsed", elapsed),
			zap.String("errorType", merr.GetErrorType(err).String()),
			zap.Error(err))
		return nil, &smithy.OperationError{ServiceID: c.cfg.ServiceID, OperationName: name, Err: err}
	}
	zlog.Ctx(ctx).Debug("call succeeded", zap.Duration("elapsed", elapsed))
	return out, nil
}

func (c *Client) invoke(ctx context.Context, p protocol.Protocol, call *CallContext, invocationID string) (any, error) {
	for _, i := range c.cfg.Interceptors {
		if err := i.BeforeMarshal(ctx, call); err != nil {
			return nil, err
		}
	}

	var out any
	err := retry.Do(ctx, func(attempt uint) error {
		SetAttribute(call.Attributes, AttrAttempt, int(attempt)+1)
		if attempt > 0 {
			zlog.Ctx(ctx).RatedInfo(1, "retry call", zap.Uint("attempt", attempt+1))
		}
		var err error
		out, err = c.attempt(ctx, p, call, invocationID, int(attempt)+1)
		return err
	}, retry.Attempts(uint(c.cfg.MaxAttempts)))
	if err != nil {
		return nil, err
	}

	call.Output = out
	for _, i := range c.cfg.Interceptors {
		if err := i.AfterUnmarshal(ctx, call); err != nil {
			return nil, err
		}
	}
	return call.Output, nil
}

// attempt 执行一次尝试：编码、拦截、签名、发送与解码。
func (c *Client) attempt(ctx context.Context, p protocol.Protocol, call *CallContext, invocationID string, attempt int) (any, error) {
	req, err := p.Marshal(call.Input)
	if err != nil {
		return nil, err
	}
	// 流式请求体只能发送一次，失败后不再重试。
	final := func(err error) error {
		if req.IsStreaming() {
			return retry.Unrecoverable(err)
		}
		return err
	}

	req.Headers.Set(headerUserAgent, c.agent)
	req.Headers.Set(headerInvocationID, invocationID)
	req.Headers.Set(headerSDKRequest, "attempt="+strconv.Itoa(attempt)+"; max="+strconv.Itoa(c.cfg.MaxAttempts))
	call.Request = req
	for _, i := range c.cfg.Interceptors {
		if err := i.ModifyHTTPRequest(ctx, call); err != nil {
			req.Close()
			return nil, retry.Unrecoverable(err)
		}
	}

	op := p.Operation()
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if !op.HasStreamingOutput() {
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
	}
	defer cancel()

	httpReq, err := req.HTTPRequest(attemptCtx, c.cfg.Endpoint)
	if err != nil {
		req.Close()
		return nil, retry.Unrecoverable(merr.WrapErrTransportFailed(err))
	}
	if err := c.cfg.Signer.Sign(attemptCtx, httpReq, req.Body, req.IsStreaming()); err != nil {
		req.Close()
		return nil, retry.Unrecoverable(err)
	}

	httpResp, err := c.cfg.Transport.Do(httpReq)
	if err != nil {
		req.Close()
		return nil, final(merr.WrapTransportErr(err))
	}
	resp, err := wire.ResponseFrom(httpResp, op.HasStreamingOutput())
	if err != nil {
		return nil, final(merr.WrapTransportErr(err))
	}
	resp = resp.WithContext(attemptCtx)

	out, err := p.Unmarshal(resp)
	if err != nil {
		if merr.IsClientError(err) {
			return nil, retry.Unrecoverable(err)
		}
		return nil, final(err)
	}
	return out, nil
}
