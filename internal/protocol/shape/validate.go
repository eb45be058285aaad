package shape

import (
	"fmt"
	"strings"

	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

type scope uint8

const (
	scopeTop scope = iota
	scopeNested
	scopeEvent
)

// Validate 校验顶层结构类型及其全部嵌套类型的字段位置组合。
//
// 不合法的组合在构造期以配置错误返回，调用期不再重复检查。
func Validate(s *Shape) error {
	if s == nil {
		return nil
	}
	if s.Kind != KindStructure {
		return merr.WrapErrConfigInvalidField(s.Name, "-", "top level shape must be a structure")
	}
	return (&validator{visited: typeutil.NewSet[*Shape]()}).structure(s, scopeTop)
}

type validator struct {
	visited typeutil.Set[*Shape]
}

func (v *validator) structure(s *Shape, sc scope) error {
	if v.visited.Contain(s) && sc == scopeNested {
		return nil
	}
	v.visited.Insert(s)

	var (
		seen          = typeutil.NewSet[string]()
		payloads      int
		eventPayloads int
		probe         = s.New()
	)
	for _, f := range s.Fields {
		if f == nil || f.Shape == nil {
			return merr.WrapErrConfigInvalidField(s.Name, "-", "field without shape")
		}
		name := s.Name + "." + f.DisplayName()
		if probe != nil && f.get != nil && !f.Accepts(probe) {
			return merr.WrapErrConfigInvalidField(name, f.Location, "accessor does not belong to "+s.Name)
		}

		key := fmt.Sprintf("%d/%s", f.Location, strings.ToLower(f.WireName))
		if seen.Contain(key) {
			return merr.WrapErrConfigInvalidField(name, f.Location, "duplicate wire name "+f.WireName)
		}
		seen.Insert(key)

		if sc == scopeNested && f.Location != LocationPayload {
			return merr.WrapErrConfigInvalidField(name, f.Location, "nested members can only be bound to the payload")
		}

		switch f.Location {
		case LocationEventHeader:
			if sc != scopeEvent {
				return merr.WrapErrConfigInvalidField(name, f.Location, "event header outside an event")
			}
			if !f.Kind().IsScalar() {
				return merr.WrapErrConfigInvalidField(name, f.Location, "event header must be scalar")
			}
		case LocationEventPayload:
			if sc != scopeEvent {
				return merr.WrapErrConfigInvalidField(name, f.Location, "event payload outside an event")
			}
			eventPayloads++
			if eventPayloads > 1 {
				return merr.WrapErrConfigInvalidField(name, f.Location, "more than one event payload")
			}
			if f.Kind() == KindEventStream {
				return merr.WrapErrConfigInvalidField(name, f.Location, "event stream nested in an event")
			}
		case LocationStreamingPayload:
			if sc != scopeTop {
				return merr.WrapErrConfigInvalidField(name, f.Location, "streaming payload must be a top level member")
			}
			if f.Kind() != KindBlob && f.Kind() != KindEventStream {
				return merr.WrapErrConfigInvalidField(name, f.Location, "streaming payload must be a blob or an event stream")
			}
			payloads++
		case LocationExplicitPayload:
			if sc != scopeTop {
				return merr.WrapErrConfigInvalidField(name, f.Location, "explicit payload must be a top level member")
			}
			payloads++
		case LocationHeader:
			if sc != scopeTop {
				return merr.WrapErrConfigInvalidField(name, f.Location, "header must be a top level member")
			}
			if !isHeaderShape(f.Shape) {
				return merr.WrapErrConfigInvalidField(name, f.Location, f.Kind().String()+" cannot be bound to a header")
			}
		case LocationURI:
			if sc != scopeTop || !f.Kind().IsScalar() {
				return merr.WrapErrConfigInvalidField(name, f.Location, "uri label must be a top level scalar")
			}
		case LocationQuery:
			if sc != scopeTop || !isQueryShape(f.Shape) {
				return merr.WrapErrConfigInvalidField(name, f.Location, f.Kind().String()+" cannot be bound to the query string")
			}
		case LocationStatusCode:
			if sc != scopeTop || f.Kind() != KindInteger {
				return merr.WrapErrConfigInvalidField(name, f.Location, "status code must be a top level integer")
			}
		case LocationPayload:
			if f.Kind() == KindEventStream {
				return merr.WrapErrConfigInvalidField(name, f.Location, "event stream must be the explicit or streaming payload")
			}
		}
		if payloads > 1 {
			return merr.WrapErrConfigInvalidField(name, f.Location, "more than one explicit payload member")
		}

		if err := v.nested(name, f); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) nested(name string, f *Field) error {
	switch f.Kind() {
	case KindStructure:
		return v.structure(f.Shape, scopeNested)
	case KindList, KindMap:
		return v.container(name, f.Shape)
	case KindEventStream:
		return v.events(name, f.Shape)
	}
	return nil
}

func (v *validator) container(name string, s *Shape) error {
	elem := s.Member
	if s.Kind == KindMap {
		elem = s.Value
	}
	if elem == nil {
		return merr.WrapErrConfigInvalidField(name, "-", s.Kind.String()+" without element shape")
	}
	switch elem.Kind {
	case KindEventStream:
		return merr.WrapErrConfigInvalidField(name, "-", "event stream inside a "+s.Kind.String())
	case KindStructure:
		return v.structure(elem, scopeNested)
	case KindList, KindMap:
		return v.container(name, elem)
	}
	return nil
}

func (v *validator) events(name string, s *Shape) error {
	if len(s.Fields) == 0 {
		return merr.WrapErrConfigInvalidField(name, "-", "event stream without variants")
	}
	types := typeutil.NewSet[string]()
	for _, variant := range s.Fields {
		if variant == nil || variant.Shape == nil || variant.Shape.Kind != KindStructure {
			return merr.WrapErrConfigInvalidField(name, "-", "event variant must be a structure")
		}
		if types.Contain(variant.WireName) {
			return merr.WrapErrConfigInvalidField(name, "-", "duplicate event type "+variant.WireName)
		}
		types.Insert(variant.WireName)
		if err := v.structure(variant.Shape, scopeEvent); err != nil {
			return err
		}
	}
	return nil
}

func isHeaderShape(s *Shape) bool {
	switch s.Kind {
	case KindList:
		return s.Member != nil && s.Member.Kind.IsScalar()
	case KindMap:
		return s.Value != nil && s.Value.Kind == KindString
	default:
		return s.Kind.IsScalar()
	}
}

func isQueryShape(s *Shape) bool {
	switch s.Kind {
	case KindList:
		return s.Member != nil && s.Member.Kind.IsScalar()
	case KindMap:
		if s.Value == nil {
			return false
		}
		return s.Value.Kind == KindString || (s.Value.Kind == KindList && s.Value.Member != nil && s.Value.Member.Kind == KindString)
	default:
		return s.Kind.IsScalar()
	}
}
