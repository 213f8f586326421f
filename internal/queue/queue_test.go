package queue

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityQueue(t *testing.T) {
	t.Run("Min", func(t *testing.T) {
		pq := NewMin(4)
		pq.PushItem(PriorityQueueItem{Index: 0, Distance: 3})
		pq.PushItem(PriorityQueueItem{Index: 1, Distance: 1})
		pq.PushItem(PriorityQueueItem{Index: 2, Distance: 2})

		top, ok := pq.TopItem()
		assert.True(t, ok)
		assert.Equal(t, 1, top.Index)

		assert.Equal(t, []int{1, 2, 0}, pq.Drain())
		assert.Equal(t, 0, pq.Len())
	})

	t.Run("Max", func(t *testing.T) {
		pq := NewMax(4)
		pq.PushItem(PriorityQueueItem{Index: 0, Distance: 3})
		pq.PushItem(PriorityQueueItem{Index: 1, Distance: 1})
		pq.PushItem(PriorityQueueItem{Index: 2, Distance: 2})

		assert.Equal(t, []int{0, 2, 1}, pq.Drain())
	})

	t.Run("TiesBySlot", func(t *testing.T) {
		pq := NewMin(4)
		pq.PushItem(PriorityQueueItem{Index: 5, Distance: 1})
		pq.PushItem(PriorityQueueItem{Index: 2, Distance: 1})
		pq.PushItem(PriorityQueueItem{Index: 9, Distance: 1})

		assert.Equal(t, []int{2, 5, 9}, pq.Drain())
	})

	t.Run("HeapInterface", func(t *testing.T) {
		pq := NewMin(4)
		heap.Push(pq, PriorityQueueItem{Index: 0, Distance: 2})
		heap.Push(pq, PriorityQueueItem{Index: 1, Distance: 0.5})

		item := heap.Pop(pq).(PriorityQueueItem)
		assert.Equal(t, 1, item.Index)

		pq.Reset()
		_, ok := pq.PopItem()
		assert.False(t, ok)
	})
}
