package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q := NewFIFO[int]()

	_, ok := q.Pop()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())

	// the queue keeps working once drained
	q.Push(42)

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestFIFOConcurrentProducers(t *testing.T) {
	q := NewFIFO[int]()

	const producers, perProducer = 8, 500

	var wg sync.WaitGroup

	for p := 0; p < producers; p++ {
		wg.Add(1)

		go func(p int) {
			defer wg.Done()

			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}(p)
	}

	seen := make(map[int]struct{}, producers*perProducer)
	last := make(map[int]int, producers)
	deadline := time.After(5 * time.Second)

	for len(seen) < producers*perProducer {
		v, ok := q.Pop()
		if !ok {
			select {
			case <-q.Ready():
			case <-deadline:
				t.Fatalf("received %d of %d values", len(seen), producers*perProducer)
			}

			continue
		}

		producer := v / perProducer
		if prev, ok := last[producer]; ok {
			require.Greater(t, v, prev, "values of one producer arrive in order")
		}

		last[producer] = v
		seen[v] = struct{}{}
	}

	wg.Wait()
	assert.Equal(t, 0, q.Len())
}
