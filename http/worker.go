package http

import (
	"errors"
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/freekieb7/kiln/buffer"
)

// Slot is one place in the worker pool. A slot is owned by the scheduler
// while it sits in the free ring and by exactly one worker otherwise.
type Slot struct {
	ID     int
	Ctx    ConnCtx
	Buffer *buffer.Buffer

	running atomic.Bool
}

// Running reports whether a worker currently owns the slot.
func (s *Slot) Running() bool {
	return s.running.Load()
}

// WorkerPool holds the slots and the ring of free ones.
type WorkerPool struct {
	Slots []Slot
	Ready RingBuffer[*Slot]
}

func NewWorkerPool(size, bufferSize int) *WorkerPool {
	if size <= 0 {
		size = WorkerPoolSize
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	wp := &WorkerPool{
		Slots: make([]Slot, size),
		Ready: NewRingBuffer[*Slot](size),
	}
	for i := range wp.Slots {
		wp.Slots[i].ID = i
		wp.Slots[i].Buffer = buffer.New(bufferSize)
		wp.Ready.Enqueue(&wp.Slots[i])
	}
	return wp
}

// Free returns the number of idle slots.
func (wp *WorkerPool) Free() int {
	return wp.Ready.Len()
}

var (
	ErrFull  = errors.New("ring buffer is full")
	ErrEmpty = errors.New("ring buffer is empty")
)

type RingBuffer[T any] struct {
	buffer []slot[T]
	mask   uint64
	enqPos uint64
	deqPos uint64
}

type slot[T any] struct {
	sequence uint64
	value    T
}

// NewRingBuffer creates a ring holding at least size items. The capacity is
// rounded up to a power of two.
func NewRingBuffer[T any](size int) RingBuffer[T] {
	capacity := 1
	if size > 1 {
		capacity = 1 << bits.Len(uint(size-1))
	}

	buf := make([]slot[T], capacity)
	for i := range buf {
		buf[i].sequence = uint64(i)
	}
	return RingBuffer[T]{
		buffer: buf,
		mask:   uint64(capacity - 1),
	}
}

// Enqueue adds an item to the ring buffer
func (q *RingBuffer[T]) Enqueue(val T) error {
	for {
		pos := atomic.LoadUint64(&q.enqPos)
		slot := &q.buffer[pos&q.mask]

		seq := atomic.LoadUint64(&slot.sequence)
		delta := int64(seq) - int64(pos)

		if delta == 0 {
			if atomic.CompareAndSwapUint64(&q.enqPos, pos, pos+1) {
				slot.value = val
				atomic.StoreUint64(&slot.sequence, pos+1)
				return nil
			}
		} else if delta < 0 {
			return ErrFull
		} else {
			runtime.Gosched()
		}
	}
}

// Dequeue removes and returns the oldest item
func (q *RingBuffer[T]) Dequeue() (T, error) {
	var zero T
	for {
		pos := atomic.LoadUint64(&q.deqPos)
		slot := &q.buffer[pos&q.mask]

		seq := atomic.LoadUint64(&slot.sequence)
		delta := int64(seq) - int64(pos+1)

		if delta == 0 {
			if atomic.CompareAndSwapUint64(&q.deqPos, pos, pos+1) {
				val := slot.value
				slot.value = zero
				atomic.StoreUint64(&slot.sequence, pos+q.mask+1)
				return val, nil
			}
		} else if delta < 0 {
			return zero, ErrEmpty
		} else {
			runtime.Gosched()
		}
	}
}

// Len is a snapshot; it may be stale by the time it is used.
func (q *RingBuffer[T]) Len() int {
	enq := atomic.LoadUint64(&q.enqPos)
	deq := atomic.LoadUint64(&q.deqPos)
	if enq < deq {
		return 0
	}
	return int(enq - deq)
}
