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

package typeutil

import "sync"

// ConcurrentMap is a typed wrapper of sync.Map.
type ConcurrentMap[K comparable, V any] struct {
	inner sync.Map
}

func (m *ConcurrentMap[K, V]) Get(key K) (V, bool) {
	var zero V
	value, ok := m.inner.Load(key)
	if !ok {
		return zero, false
	}
	return value.(V), true
}

// GetOrInsert returns the existing value for the key if present,
// otherwise it stores and returns the given value. loaded is true if the value was loaded.
func (m *ConcurrentMap[K, V]) GetOrInsert(key K, value V) (actual V, loaded bool) {
	v, loaded := m.inner.LoadOrStore(key, value)
	return v.(V), loaded
}

func (m *ConcurrentMap[K, V]) Len() int {
	n := 0
	m.inner.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
