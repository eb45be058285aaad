package typeutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet("b", "a")
	s.Insert("c", "a")
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contain("a", "c"))
	assert.False(t, s.Contain("a", "z"))
	assert.Equal(t, []string{"a", "b", "c"}, Sorted(s))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []int{1, 2, 10}, SortedKeys(map[int]string{10: "x", 1: "y", 2: "z"}))
	assert.Empty(t, SortedKeys(map[string]int{}))
}

func TestConcurrentMap(t *testing.T) {
	var m ConcurrentMap[string, *int]
	_, ok := m.Get("k")
	assert.False(t, ok)

	var wg sync.WaitGroup
	winners := make(chan *int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := i
			actual, _ := m.GetOrInsert("k", &v)
			winners <- actual
		}(i)
	}
	wg.Wait()
	close(winners)

	first, ok := m.Get("k")
	assert.True(t, ok)
	for w := range winners {
		assert.Same(t, first, w)
	}
	assert.Equal(t, 1, m.Len())
}
