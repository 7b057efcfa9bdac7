package mailbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTake_Empty(t *testing.T) {
	m := New[int]()
	_, ok := m.Take()
	assert.False(t, ok)
}

func TestTake_ClearsSlot(t *testing.T) {
	m := New[string]()
	m.Put("a")

	v, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = m.Take()
	assert.False(t, ok, "the same item must not be returned twice")
}

func TestPut_LatestWins(t *testing.T) {
	m := New[int]()
	const n = 50
	for i := 1; i <= n; i++ {
		m.Put(i)
	}

	v, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, n, v)

	st := m.Stats()
	assert.Equal(t, uint64(n), st.Published)
	assert.Equal(t, uint64(1), st.Taken)
	assert.Equal(t, uint64(n-1), st.Dropped)
	assert.False(t, st.Pending)
}

func TestTake_ReleasesPointer(t *testing.T) {
	m := New[*[]byte]()
	buf := make([]byte, 16)
	m.Put(&buf)
	_, _ = m.Take()

	// The slot must not retain the item after it has been taken.
	assert.Nil(t, m.item)
}

func TestConcurrent_NoDuplicatesInOrder(t *testing.T) {
	m := New[uint64]()
	const total = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= total; i++ {
			m.Put(i)
		}
	}()

	var last uint64
	var seen int
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	consume := func() {
		if v, ok := m.Take(); ok {
			if v <= last {
				t.Errorf("took %d after %d: duplicate or out of order", v, last)
			}
			last = v
			seen++
		}
	}

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			consume()
		}
	}
	consume()

	assert.Equal(t, uint64(total), last, "the final item must be observed")
	st := m.Stats()
	assert.Equal(t, uint64(total), st.Published)
	assert.Equal(t, uint64(seen), st.Taken)
	assert.Equal(t, st.Published, st.Taken+st.Dropped)
}
