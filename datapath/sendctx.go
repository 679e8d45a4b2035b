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
	"github.com/sabouaram/quicdatapath/addr"
	"github.com/sabouaram/quicdatapath/pool"
)

// SendBuffer is one outbound datagram's raw bytes, lent from a worker's
// send-buffer pool for the lifetime of its enclosing SendContext (spec
// §3).
type SendBuffer struct {
	owner *pool.Pool[SendBuffer]
	Data  []byte
	Len   int
}

func newSendBuffer() *SendBuffer {
	return &SendBuffer{Data: make([]byte, MaxUDPReceivePayload())}
}

func resetSendBuffer(b *SendBuffer) {
	b.Len = 0
}

// SendContext batches 1..=MaxSendBatchSize buffers for one send operation
// (spec §3/§4.3). CurrentIndex tracks partial-batch progress so a send
// blocked by EWOULDBLOCK resumes exactly where it left off.
type SendContext struct {
	owningCtxPool *pool.Pool[SendContext]
	bufPool       *pool.Pool[SendBuffer]

	// Worker is the index of the worker whose pools this context was
	// allocated from, and whose pending list it links into if deferred.
	Worker int

	LocalAddr  *addr.Addr
	RemoteAddr addr.Addr

	Buffers      [MaxSendBatchSize]*SendBuffer
	BufferCount  int
	CurrentIndex int

	// Pending is true while this context sits on a socket context's
	// pending-send FIFO awaiting a writable event (spec §4.3, "partial-
	// batch resumption").
	Pending bool

	// next links this context into its socket context's pending list.
	// A plain intrusive singly linked list, per spec §9's recommendation.
	next *SendContext
}

func newSendContext() *SendContext {
	return &SendContext{}
}

func resetSendContext(c *SendContext) {
	*c = SendContext{}
}

// IsFull reports whether the batch has reached MaxSendBatchSize. It does
// not look at the send-buffer pool: pool exhaustion shows up only as
// AllocDatagram returning nil.
func (c *SendContext) IsFull() bool {
	return c.BufferCount == MaxSendBatchSize
}

// AllocDatagram pulls one buffer from the worker's send-buffer pool and
// appends it to the batch, returning nil when the batch is already full
// or the pool itself is exhausted (spec §4.3, §8 invariant 3).
func (c *SendContext) AllocDatagram(length int) *SendBuffer {
	if c.IsFull() {
		return nil
	}
	if length <= 0 || length > MaxUDPReceivePayload() {
		return nil
	}

	b := c.bufPool.Alloc()
	if b == nil {
		return nil
	}
	b.owner = c.bufPool
	b.Len = length

	c.Buffers[c.BufferCount] = b
	c.BufferCount++
	return b
}

// free returns every attached buffer to the send-buffer pool, then this
// context to the send-context pool (spec §4.3, "freeing").
func (c *SendContext) free() {
	for i := 0; i < c.BufferCount; i++ {
		if b := c.Buffers[i]; b != nil && b.owner != nil {
			b.owner.Free(b)
		}
		c.Buffers[i] = nil
	}
	if c.owningCtxPool != nil {
		c.owningCtxPool.Free(c)
	}
}
