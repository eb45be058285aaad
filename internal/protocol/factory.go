package protocol

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/jsonproto"
	"github.com/lk2023060901/awswire-go/internal/protocol/queryproto"
	"github.com/lk2023060901/awswire-go/internal/protocol/rest"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/internal/protocol/xmlproto"
	"github.com/lk2023060901/awswire-go/pkg/log"
	"github.com/lk2023060901/awswire-go/pkg/metrics"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

// FactoryConfig 为工厂的构造参数，构造后不可修改。
type FactoryConfig struct {
	Family Family
	// JSONVersion 与 TargetPrefix 仅用于 json 协议族。
	JSONVersion  string
	TargetPrefix string
	// ErrorShapes 按错误码登记的建模错误类型。
	ErrorShapes rest.ErrorShapes
	// MaxFrameSize 为事件流单帧上限，0 表示使用默认值。
	MaxFrameSize uint32
}

// Factory 按固定协议族为操作构造编解码器。同一操作只构造一次，结果缓存于工厂内。
// 工厂由客户端显式持有，不存在进程级单例。
type Factory struct {
	cfg FactoryConfig

	bound typeutil.ConcurrentMap[*binding.Operation, Protocol]
	group singleflight.Group
}

func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if !cfg.Family.Valid() {
		return nil, merr.WrapErrConfigUnsupportedProtocol(cfg.Family)
	}
	switch cfg.JSONVersion {
	case "", "1.0", "1.1":
	default:
		return nil, merr.WrapErrConfigInvalidValue("jsonVersion", cfg.JSONVersion, "expect 1.0 or 1.1")
	}
	return &Factory{cfg: cfg}, nil
}

func (f *Factory) Family() Family {
	return f.cfg.Family
}

// Protocol 返回绑定到 op 的编解码器。并发调用同一操作时只构造一次。
func (f *Factory) Protocol(op *binding.Operation) (Protocol, error) {
	if op == nil {
		return nil, merr.WrapErrConfigInvalidBinding("-", "operation binding is nil")
	}
	if p, ok := f.bound.Get(op); ok {
		return p, nil
	}
	// 不同绑定可能同名，按绑定地址去重。
	v, err, _ := f.group.Do(fmt.Sprintf("%p", op), func() (any, error) {
		if p, ok := f.bound.Get(op); ok {
			return p, nil
		}
		p, err := f.build(op)
		if err != nil {
			return nil, err
		}
		p, _ = f.bound.GetOrInsert(op, p)
		log.Debug("protocol bound",
			log.FieldProtocol(f.cfg.Family.String()),
			log.FieldOperation(op.OperationIdentifier()))
		return p, nil
	})
	if err != nil {
		log.Warn("failed to bind protocol",
			log.FieldProtocol(f.cfg.Family.String()),
			log.FieldOperation(op.OperationIdentifier()),
			zap.Error(err))
		return nil, err
	}
	return v.(Protocol), nil
}

func (f *Factory) build(op *binding.Operation) (Protocol, error) {
	family := f.cfg.Family
	var (
		codec codecPair
		err   error
	)
	switch family {
	case FamilyJSON, FamilyRESTJSON:
		codec, err = jsonproto.New(op, jsonproto.Config{
			Protocol:     family.String(),
			RPC:          family == FamilyJSON,
			JSONVersion:  f.cfg.JSONVersion,
			TargetPrefix: f.cfg.TargetPrefix,
			ErrorShapes:  f.cfg.ErrorShapes,
			MaxFrameSize: f.cfg.MaxFrameSize,
		})
	case FamilyRESTXML:
		codec, err = xmlproto.New(op, xmlproto.Config{
			Protocol:     family.String(),
			ErrorShapes:  f.cfg.ErrorShapes,
			MaxFrameSize: f.cfg.MaxFrameSize,
		})
	case FamilyQuery, FamilyEC2:
		codec, err = queryproto.New(op, queryproto.Config{
			Protocol:    family.String(),
			EC2:         family == FamilyEC2,
			ErrorShapes: f.cfg.ErrorShapes,
		})
	default:
		return nil, merr.WrapErrConfigUnsupportedProtocol(family)
	}
	if err != nil {
		return nil, err
	}
	return &bound{family: family, op: op, codec: codec}, nil
}

type codecPair interface {
	Marshaller
	Unmarshaller
}

// bound 为各协议族的编解码器附加协议族信息与调用计数。
type bound struct {
	family Family
	op     *binding.Operation
	codec  codecPair
}

func (b *bound) Family() Family {
	return b.family
}

func (b *bound) Operation() *binding.Operation {
	return b.op
}

func (b *bound) Marshal(input any) (*wire.Request, error) {
	req, err := b.codec.Marshal(input)
	metrics.MarshalTotal.WithLabelValues(b.family.String(), b.op.OperationIdentifier(), outcomeOf(err)).Inc()
	return req, err
}

func (b *bound) Unmarshal(resp *wire.Response) (any, error) {
	out, err := b.codec.Unmarshal(resp)
	metrics.UnmarshalTotal.WithLabelValues(b.family.String(), b.op.OperationIdentifier(), outcomeOf(err)).Inc()
	return out, err
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if _, ok := merr.AsServiceError(err); ok {
		return metrics.OutcomeServiceError
	}
	return metrics.OutcomeClientError
}
