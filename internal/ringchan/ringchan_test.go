package ringchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendOverwritesOldest(t *testing.T) {
	rc := New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}

	assert.Equal(t, 3, rc.Len())
	assert.Equal(t, 7, <-rc.C(), "only the last 3 values MUST remain")
	assert.Equal(t, 8, <-rc.C())
	assert.Equal(t, 9, <-rc.C())

	m := rc.GetMetrics()
	assert.Equal(t, int64(10), m.Written)
	assert.Equal(t, int64(7), m.Overwritten)
}

func TestLatestValueMailbox(t *testing.T) {
	rc := New[string](1)
	assert.False(t, rc.Send("a"))
	assert.True(t, rc.Send("b"), "second send MUST report the dropped value")
	assert.Equal(t, "b", <-rc.C())
}

func TestTrySend(t *testing.T) {
	rc := New[int](1)
	assert.True(t, rc.TrySend(1))
	assert.False(t, rc.TrySend(2))
	assert.Equal(t, 1, <-rc.C())
}

func TestClose(t *testing.T) {
	rc := New[int](2)
	rc.Send(1)
	rc.Close()
	rc.Close()

	assert.False(t, rc.Send(2), "send after close MUST be dropped")
	v, ok := <-rc.C()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = <-rc.C()
	assert.False(t, ok)
}

func TestConcurrentProducersNeverBlock(t *testing.T) {
	rc := New[int](4)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				rc.Send(i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, rc.Len())
	assert.Equal(t, int64(8000), rc.GetMetrics().Written)
}

func TestInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
