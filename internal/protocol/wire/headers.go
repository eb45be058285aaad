package wire

import (
	"net/http"
	"strings"

	"github.com/lk2023060901/awswire-go/pkg/util/typeutil"
)

// Headers 为大小写不敏感、保持插入顺序的头部多值映射。零值可直接使用。
type Headers struct {
	entries []headerEntry
}

type headerEntry struct {
	name   string
	values []string
}

func (h *Headers) find(name string) int {
	for i := range h.entries {
		if strings.EqualFold(h.entries[i].name, name) {
			return i
		}
	}
	return -1
}

// Add 追加一个值，名称首次出现时按首次写入的大小写记录。
func (h *Headers) Add(name, value string) {
	if i := h.find(name); i >= 0 {
		h.entries[i].values = append(h.entries[i].values, value)
		return
	}
	h.entries = append(h.entries, headerEntry{name: name, values: []string{value}})
}

// Set 替换全部值，保留该名称原有的位置。
func (h *Headers) Set(name, value string) {
	if i := h.find(name); i >= 0 {
		h.entries[i].values = []string{value}
		return
	}
	h.entries = append(h.entries, headerEntry{name: name, values: []string{value}})
}

// Get 返回第一个值，不存在时返回空串。
func (h *Headers) Get(name string) string {
	if i := h.find(name); i >= 0 && len(h.entries[i].values) > 0 {
		return h.entries[i].values[0]
	}
	return ""
}

func (h *Headers) Has(name string) bool {
	return h.find(name) >= 0
}

// Values 返回该名称的全部值。
func (h *Headers) Values(name string) []string {
	if i := h.find(name); i >= 0 {
		return h.entries[i].values
	}
	return nil
}

func (h *Headers) Del(name string) {
	if i := h.find(name); i >= 0 {
		h.entries = append(h.entries[:i], h.entries[i+1:]...)
	}
}

// Names 按插入顺序返回全部名称。
func (h *Headers) Names() []string {
	names := make([]string, len(h.entries))
	for i := range h.entries {
		names[i] = h.entries[i].name
	}
	return names
}

func (h *Headers) Len() int {
	return len(h.entries)
}

// WithPrefix 返回以 prefix 开头（大小写不敏感）的头部，键为去掉前缀后的部分。
func (h *Headers) WithPrefix(prefix string) map[string]string {
	var out map[string]string
	for _, e := range h.entries {
		if len(e.name) < len(prefix) || !strings.EqualFold(e.name[:len(prefix)], prefix) || len(e.values) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[e.name[len(prefix):]] = strings.Join(e.values, ",")
	}
	return out
}

func (h *Headers) Clone() Headers {
	out := Headers{entries: make([]headerEntry, len(h.entries))}
	for i, e := range h.entries {
		out.entries[i] = headerEntry{name: e.name, values: append([]string(nil), e.values...)}
	}
	return out
}

// HTTPHeader 转换为 net/http 的头部。
func (h *Headers) HTTPHeader() http.Header {
	out := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		for _, v := range e.values {
			out.Add(e.name, v)
		}
	}
	return out
}

// HeadersFrom 由 net/http 头部构造 Headers，名称按字典序插入以保证结果稳定。
func HeadersFrom(header http.Header) Headers {
	var out Headers
	for _, name := range typeutil.SortedKeys(header) {
		for _, v := range header[name] {
			out.Add(name, v)
		}
	}
	return out
}
