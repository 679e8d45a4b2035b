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

package datapath

import (
	"sync"

	"github.com/sabouaram/quicdatapath/addr"
)

// SocketContext is one UDP socket belonging to a Binding, pinned to
// exactly one Worker (spec §3). It owns the in-flight receive block and
// the FIFO of send contexts deferred by EWOULDBLOCK.
type SocketContext struct {
	binding *Binding
	worker  *Worker
	index   int // position in binding.sockets, equal to worker index

	fd int

	// inFlight is the receive block currently wired into the kernel for
	// the next recvmsg on this socket; nil only during construction and
	// teardown.
	inFlight *ReceiveBlock

	mu particleMu

	// pendingHead/pendingTail form the intrusive FIFO from spec §4.3,
	// "partial-batch resumption" — resumed in submission order even
	// across EWOULDBLOCK.
	pendingHead *SendContext
	pendingTail *SendContext

	// sendWaiting mirrors the source's SendWaiting flag (spec §9 open
	// question, resolved in SPEC_FULL.md): true while writable-interest
	// is armed on the readiness queue because at least one send is
	// pending.
	sendWaiting bool

	closed bool
}

// particleMu is a thin alias so the zero value of SocketContext is ready
// to use without an explicit constructor call for the mutex.
type particleMu = sync.Mutex

func (s *SocketContext) enqueuePending(c *SendContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Pending = true
	c.next = nil
	if s.pendingTail == nil {
		s.pendingHead = c
		s.pendingTail = c
	} else {
		s.pendingTail.next = c
		s.pendingTail = c
	}
}

// drainPending resumes each pending send context at its CurrentIndex in
// FIFO order, stopping and re-arming writable interest the moment one
// re-blocks (spec §4.3). Called from the owning worker only.
func (s *SocketContext) drainPending() {
	s.mu.Lock()
	head := s.pendingHead
	s.pendingHead, s.pendingTail = nil, nil
	s.mu.Unlock()

	for c := head; c != nil; {
		next := c.next
		c.next = nil
		c.Pending = false

		blocked, err := s.resumeSend(c)
		if err != nil {
			c.free()
		} else if blocked {
			// c re-blocked with next still holding the rest of this
			// drain's snapshot. Splice c->...->next onto the front of
			// whatever enqueuePending appended since the snapshot was
			// taken, all under one lock acquisition, so there is no
			// window in which a concurrent enqueuePending can observe a
			// stale pendingTail and silently drop the remainder.
			c.Pending = true
			c.next = next

			s.mu.Lock()
			tail := c
			for tail.next != nil {
				tail = tail.next
			}
			tail.next = s.pendingHead
			if s.pendingTail == nil {
				s.pendingTail = tail
			}
			s.pendingHead = c
			s.mu.Unlock()

			s.armWritable()
			return
		} else {
			s.binding.datapath.metrics.DatagramsSent.Add(float64(c.BufferCount))
			c.free()
		}
		c = next
	}
}

