package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitRunsInOrder(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		b.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v, "tasks ran out of submission order")
	}
}

func TestReentrantSubmitRunsImmediately(t *testing.T) {
	b := New()
	defer b.Close()

	var order []string
	done := make(chan struct{})
	b.Submit(func() {
		order = append(order, "outer-before")
		b.Submit(func() {
			order = append(order, "inner")
		})
		order = append(order, "outer-after")
		close(done)
	})
	<-done

	// a submit from inside the bus runs inline, not queued behind the
	// submitting task
	require.Equal(t, []string{"outer-before", "inner", "outer-after"}, order)
}

func TestInvokeWaits(t *testing.T) {
	b := New()
	defer b.Close()

	var ran bool
	b.Invoke(func() {
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	require.True(t, ran)
}

func TestInvokeFromInsideDoesNotDeadlock(t *testing.T) {
	b := New()
	defer b.Close()

	finished := make(chan struct{})
	go func() {
		b.Invoke(func() {
			b.Invoke(func() {})
		})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("self-invoke deadlocked")
	}
}

type pingEvent struct{ N int }

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(6)
	Subscribe(b, func(ev pingEvent) {
		mu.Lock()
		got = append(got, ev.N)
		mu.Unlock()
		wg.Done()
	})
	Subscribe(b, func(ev pingEvent) {
		mu.Lock()
		got = append(got, ev.N*10)
		mu.Unlock()
		wg.Done()
	})

	for i := 1; i <= 3; i++ {
		Publish(b, pingEvent{N: i})
	}
	wg.Wait()

	// per event, subscribers fire in subscription order
	require.Equal(t, []int{1, 10, 2, 20, 3, 30}, got)
}

func TestSubmitAfterCloseDropped(t *testing.T) {
	b := New()
	b.Close()

	ran := make(chan struct{})
	b.Submit(func() { close(ran) })
	select {
	case <-ran:
		t.Fatal("task ran on closed bus")
	case <-time.After(50 * time.Millisecond):
	}
}
