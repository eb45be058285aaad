// Package protocol 定义编解码器契约，并提供按协议族构造编解码器的工厂。
//
// 协议族在工厂构造时确定，之后每个操作的编解码器只构造一次并在客户端生命周期内复用。
package protocol

import (
	"strings"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// Marshaller 将类型化请求编码为线上请求。
type Marshaller interface {
	Marshal(input any) (*wire.Request, error)
}

// Unmarshaller 将线上响应解码为类型化响应，服务端错误以 *merr.ServiceError 返回。
type Unmarshaller interface {
	Unmarshal(resp *wire.Response) (any, error)
}

// Protocol 为绑定到单个操作的编解码器对，可并发使用。
type Protocol interface {
	Marshaller
	Unmarshaller
	Family() Family
	Operation() *binding.Operation
}

// Family 为协议族，取值为封闭集合。
type Family string

const (
	FamilyJSON     Family = "json"
	FamilyRESTJSON Family = "rest-json"
	FamilyRESTXML  Family = "rest-xml"
	FamilyQuery    Family = "query"
	FamilyEC2      Family = "ec2"
)

var families = []Family{FamilyJSON, FamilyRESTJSON, FamilyRESTXML, FamilyQuery, FamilyEC2}

// ParseFamily 解析协议族名称，大小写不敏感。
func ParseFamily(name string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(name)))
	if !f.Valid() {
		return "", merr.WrapErrConfigUnsupportedProtocol(name)
	}
	return f, nil
}

func (f Family) Valid() bool {
	for _, known := range families {
		if f == known {
			return true
		}
	}
	return false
}

func (f Family) String() string {
	return string(f)
}
