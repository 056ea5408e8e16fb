package dispatch

import (
	"bytes"
	"log/slog"
	"reflect"
	"runtime"
	"strconv"
	"sync"
)

// Bus is the single logical thread that owns all session state mutation and
// listener notification. Tasks submitted from outside the bus goroutine are
// queued and run later in submission order; tasks submitted from inside a
// running task execute immediately, so handlers can publish follow-up events
// without deadlocking on their own bus.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	loopGID uint64
	started chan struct{}

	hmu      sync.RWMutex
	handlers map[reflect.Type][]func(any)
}

func New() *Bus {
	b := &Bus{
		handlers: make(map[reflect.Type][]func(any)),
		started:  make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.loop()
	<-b.started
	return b
}

func (b *Bus) loop() {
	b.loopGID = gid()
	close(b.started)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed && len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		task := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		task()
	}
}

// Submit schedules task on the bus. Never blocks. Reentrant: a submit from
// within a bus task runs the task right away.
func (b *Bus) Submit(task func()) {
	if gid() == b.loopGID {
		task()
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		slog.Warn("task submitted to closed dispatch bus, dropping")
		return
	}
	b.queue = append(b.queue, task)
	b.mu.Unlock()
	b.cond.Signal()
}

// Invoke runs task on the bus and waits for it to finish.
func (b *Bus) Invoke(task func()) {
	if gid() == b.loopGID {
		task()
		return
	}
	done := make(chan struct{})
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		slog.Warn("task invoked on closed dispatch bus, dropping")
		return
	}
	b.queue = append(b.queue, func() {
		defer close(done)
		task()
	})
	b.mu.Unlock()
	b.cond.Signal()
	<-done
}

// Close drains pending tasks and stops the loop. Tasks submitted after Close
// are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Signal()
}

// Subscribe registers fn for events of type T. Delivery happens on the bus.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.hmu.Lock()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
	b.hmu.Unlock()
}

// Publish delivers ev to every subscriber of its type, on the bus, in
// subscription order.
func Publish[T any](b *Bus, ev T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.hmu.RLock()
	subs := make([]func(any), len(b.handlers[t]))
	copy(subs, b.handlers[t])
	b.hmu.RUnlock()
	if len(subs) == 0 {
		return
	}
	b.Submit(func() {
		for _, fn := range subs {
			fn(ev)
		}
	})
}

// gid parses the current goroutine id from the stack header. Used only to
// detect reentrant submission; no scheduling decisions depend on it.
func gid() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	i := bytes.IndexByte(buf, ' ')
	if i < 0 {
		return 0
	}
	n, _ := strconv.ParseUint(string(buf[:i]), 10, 64)
	return n
}
