package shape

import "fmt"

// Kind 为字段值的类型。
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInteger
	KindDouble
	KindBoolean
	KindBlob
	KindTimestamp
	KindList
	KindMap
	KindStructure
	// KindEventStream 为事件流联合类型，Fields 中每个字段对应一种事件。
	KindEventStream
)

var kindNames = map[Kind]string{
	KindString:      "string",
	KindInteger:     "integer",
	KindDouble:      "double",
	KindBoolean:     "boolean",
	KindBlob:        "blob",
	KindTimestamp:   "timestamp",
	KindList:        "list",
	KindMap:         "map",
	KindStructure:   "structure",
	KindEventStream: "event-stream",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsScalar 判断是否为标量类型（可以放入 URI、查询参数或请求头）。
func (k Kind) IsScalar() bool {
	switch k {
	case KindString, KindInteger, KindDouble, KindBoolean, KindBlob, KindTimestamp:
		return true
	default:
		return false
	}
}

// Location 为字段在线上请求/响应中的绑定位置。
type Location uint8

const (
	LocationPayload Location = iota
	LocationURI
	LocationQuery
	LocationHeader
	LocationStatusCode
	LocationExplicitPayload
	LocationStreamingPayload
	LocationEventPayload
	LocationEventHeader
)

var locationNames = map[Location]string{
	LocationPayload:          "PAYLOAD",
	LocationURI:              "URI",
	LocationQuery:            "QUERY_PARAM",
	LocationHeader:           "HEADER",
	LocationStatusCode:       "STATUS_CODE",
	LocationExplicitPayload:  "EXPLICIT_PAYLOAD",
	LocationStreamingPayload: "STREAMING_PAYLOAD",
	LocationEventPayload:     "EVENT_PAYLOAD",
	LocationEventHeader:      "EVENT_HEADER",
}

func (l Location) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("location(%d)", uint8(l))
}

// IsBody 判断该位置的字段是否参与请求体构造。
func (l Location) IsBody() bool {
	return l == LocationPayload || l == LocationExplicitPayload || l == LocationStreamingPayload
}

// TimestampFormat 为时间戳的线上格式。
type TimestampFormat uint8

const (
	// TimestampDefault 表示由所在位置与协议决定格式。
	TimestampDefault TimestampFormat = iota
	TimestampISO8601
	TimestampRFC822
	TimestampEpochSeconds
)

func (f TimestampFormat) String() string {
	switch f {
	case TimestampISO8601:
		return "iso8601"
	case TimestampRFC822:
		return "rfc822"
	case TimestampEpochSeconds:
		return "epoch-seconds"
	default:
		return "default"
	}
}
