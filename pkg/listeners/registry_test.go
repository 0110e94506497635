package listeners

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitInRegistrationOrder(t *testing.T) {
	r := New[string]()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		r.Register(func(string) { got = append(got, i) })
	}

	errs := r.Emit("hello")
	assert.Empty(t, errs)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestUnsubscribeTwice(t *testing.T) {
	r := New[string]()
	calls := 0
	unsubscribe := r.Register(func(string) { calls++ })
	r.Register(func(string) {})

	assert.True(t, unsubscribe())
	assert.Equal(t, 1, r.Len())
	assert.False(t, unsubscribe())
	assert.Equal(t, 1, r.Len())

	r.Emit("x")
	assert.Equal(t, 0, calls)
}

func TestSameListenerTwice(t *testing.T) {
	r := New[string]()
	calls := 0
	fn := func(string) { calls++ }
	first := r.Register(fn)
	r.Register(fn)

	r.Emit("x")
	assert.Equal(t, 2, calls)

	assert.True(t, first())
	r.Emit("y")
	assert.Equal(t, 3, calls)
}

func TestUnsubscribeRemovesOnlyItsRegistration(t *testing.T) {
	r := New[string]()
	var order []string
	r.Register(func(string) { order = append(order, "a") })
	unB := r.Register(func(string) { order = append(order, "b") })
	r.Register(func(string) { order = append(order, "c") })

	require.True(t, unB())
	r.Emit("x")
	assert.Equal(t, []string{"a", "c"}, order)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	r := New[int]()
	var got []int
	r.Register(func(v int) { got = append(got, v) })
	r.Register(func(int) { panic("boom") })
	r.Register(func(v int) { got = append(got, v*10) })

	errs := r.Emit(3)
	require.Len(t, errs, 1)
	var pe *PanicError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, 1, pe.Index)
	assert.Equal(t, "boom", pe.Value)
	assert.Equal(t, []int{3, 30}, got)
}

func TestUnsubscribeDuringEmit(t *testing.T) {
	r := New[string]()
	var unsubscribe Unsubscribe
	calls := 0
	unsubscribe = r.Register(func(string) {
		calls++
		unsubscribe()
	})

	r.Emit("first")
	r.Emit("second")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.Len())
}

func TestConcurrentRegister(t *testing.T) {
	r := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			un := r.Register(func(int) {})
			r.Emit(1)
			un()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
