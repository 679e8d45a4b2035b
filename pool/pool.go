/*
 * MIT License
 *
 * Copyright (c) 2025 quicdatapath contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package pool implements the fixed-size free lists backing receive
// blocks, send buffers and send contexts (spec §4.1). Each Pool is
// pinned to one worker for allocation but accepts frees from any
// goroutine, matching the "multi-producer free, single-consumer alloc"
// contract of spec §5.
package pool

import "sync/atomic"

// Pool is a capacity-bounded free list of *T. Alloc never blocks: it
// returns a cached element, lazily constructs a new one while under
// capacity, or returns nil once both are exhausted. Free never blocks
// either; an over-full pool (more frees than were ever allocated, which
// should not happen under the ownership invariant in spec §3) silently
// drops the surplus rather than panicking.
type Pool[T any] struct {
	free      chan *T
	newFn     func() *T
	resetFn   func(*T)
	capacity  int64
	allocated int64 // atomic
}

// New creates a Pool bounded at capacity elements, using newFn to
// construct fresh elements and resetFn (optional) to clear a reused
// element before handing it back out.
func New[T any](capacity int, newFn func() *T, resetFn func(*T)) *Pool[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool[T]{
		free:     make(chan *T, capacity),
		newFn:    newFn,
		resetFn:  resetFn,
		capacity: int64(capacity),
	}
}

// Alloc returns a zeroed/reset element, or nil on exhaustion (spec §4.1).
func (p *Pool[T]) Alloc() *T {
	select {
	case v := <-p.free:
		if p.resetFn != nil {
			p.resetFn(v)
		}
		return v
	default:
	}

	if atomic.AddInt64(&p.allocated, 1) > p.capacity {
		atomic.AddInt64(&p.allocated, -1)
		return nil
	}
	return p.newFn()
}

// Free returns an element to the pool. Safe to call from any goroutine,
// including one that does not own this pool's worker (spec §5).
func (p *Pool[T]) Free(v *T) {
	select {
	case p.free <- v:
	default:
		// Pool is over-full: the ownership invariant in spec §3 says
		// this cannot happen in correct use. Drop rather than leak the
		// goroutine on a full, unbuffered send.
		atomic.AddInt64(&p.allocated, -1)
	}
}

// Outstanding reports how many elements are currently allocated out of
// (or constructed by) the pool and not yet freed back to it.
func (p *Pool[T]) Outstanding() int64 {
	return atomic.LoadInt64(&p.allocated) - int64(len(p.free))
}

// Capacity returns the pool's fixed element capacity.
func (p *Pool[T]) Capacity() int {
	return int(p.capacity)
}
