package telemetry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string) *Record {
	return &Record{RequestID: id}
}

func TestQueue_PushPop(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	q.Push(rec("a"))
	q.Push(rec("b"))
	q.Push(rec("c"))

	assert.Equal(t, 3, q.Len())

	batch := q.PopBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, "a", batch[0].RequestID)
	assert.Equal(t, "b", batch[1].RequestID)
	assert.Equal(t, "c", batch[2].RequestID)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopBatch_Empty(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	assert.Nil(t, q.PopBatch(10))
}

func TestQueue_PopBatch_RespectsMax(t *testing.T) {
	t.Parallel()

	q := NewQueue(8)
	for i := 0; i < 5; i++ {
		q.Push(rec(fmt.Sprintf("r%d", i)))
	}

	batch := q.PopBatch(2)
	require.Len(t, batch, 2)
	assert.Equal(t, "r0", batch[0].RequestID)
	assert.Equal(t, "r1", batch[1].RequestID)
	assert.Equal(t, 3, q.Len())

	batch = q.PopBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, "r2", batch[0].RequestID)
}

func TestQueue_DropOldest(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Push(rec(fmt.Sprintf("r%d", i)))
	}

	// r0 and r1 were evicted; the three newest remain, in order.
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, 3, q.Len())

	batch := q.PopBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, "r2", batch[0].RequestID)
	assert.Equal(t, "r3", batch[1].RequestID)
	assert.Equal(t, "r4", batch[2].RequestID)
}

func TestQueue_WrapAround(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	q.Push(rec("a"))
	q.Push(rec("b"))
	_ = q.PopBatch(2)

	q.Push(rec("c"))
	q.Push(rec("d"))
	q.Push(rec("e"))

	batch := q.PopBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, "c", batch[0].RequestID)
	assert.Equal(t, "e", batch[2].RequestID)
	assert.Equal(t, uint64(0), q.Dropped())
}

func TestQueue_MinimumCapacity(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	assert.Equal(t, 1, q.Capacity())

	q.Push(rec("a"))
	q.Push(rec("b"))
	assert.Equal(t, uint64(1), q.Dropped())

	batch := q.PopBatch(10)
	require.Len(t, batch, 1)
	assert.Equal(t, "b", batch[0].RequestID)
}

func TestQueue_CountDropped(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	q.CountDropped(7)
	assert.Equal(t, uint64(7), q.Dropped())
}

func TestQueue_NotifyCoalesces(t *testing.T) {
	t.Parallel()

	q := NewQueue(8)
	for i := 0; i < 5; i++ {
		q.Push(rec("r"))
	}

	// Multiple pushes coalesce into a single pending signal.
	select {
	case <-q.Notify():
	default:
		t.Fatal("expected a pending notification")
	}

	select {
	case <-q.Notify():
		t.Fatal("expected signals to coalesce")
	default:
	}
}

func TestQueue_ConcurrentPushPop(t *testing.T) {
	t.Parallel()

	const (
		producers   = 4
		perProducer = 500
	)
	q := NewQueue(64)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(rec(fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var popped uint64
	for {
		batch := q.PopBatch(16)
		for _, r := range batch {
			require.NotNil(t, r)
			popped++
		}
		if batch == nil {
			select {
			case <-done:
				// Producers finished; one final drain settles the count.
				for batch := q.PopBatch(16); batch != nil; batch = q.PopBatch(16) {
					popped += uint64(len(batch))
				}
				total := uint64(producers * perProducer)
				assert.Equal(t, total, popped+q.Dropped())
				assert.Equal(t, 0, q.Len())
				return
			case <-q.Notify():
			}
		}
	}
}
