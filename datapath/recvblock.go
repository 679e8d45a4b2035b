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

// Tuple is the local/remote address pair carried inline in a ReceiveBlock
// (spec §3, "Tuple"). It is mutated only while the owning block is armed
// for receive; once handed to the user it is read-only until returned.
type Tuple struct {
	Local  addr.Addr
	Remote addr.Addr
}

// ReceiveBlock is a pre-allocated container for one inbound datagram: the
// kernel-filled payload, its 4-tuple, and a back-pointer to the pool it
// must be returned to. Spec §3's ownership invariant: a block belongs to
// exactly one of {its pool, its socket context armed for receive, the
// user between callback and return} at any instant.
type ReceiveBlock struct {
	// OwningPool is set once at allocation and never mutated afterward
	// (spec §9, "ownership back-pointer"). Users return blocks on
	// arbitrary goroutines; this is how the block finds its way home.
	OwningPool *pool.Pool[ReceiveBlock]

	// PartitionIndex is the worker index stamped on the block so the
	// upper layer may route follow-up work to the same core.
	PartitionIndex int

	Tuple Tuple

	// Buffer is the inline payload storage; Length is the byte count
	// actually filled by the kernel on the most recent recvmsg.
	Buffer []byte
	Length int

	// Next chains multiple datagrams delivered in one callback. The
	// receive path in this implementation always delivers single-
	// element chains (spec §4.2), but return_recv_datagrams walks the
	// full chain regardless.
	Next *ReceiveBlock
}

func newReceiveBlock() *ReceiveBlock {
	return &ReceiveBlock{Buffer: make([]byte, MaxUDPReceivePayload())}
}

func resetReceiveBlock(b *ReceiveBlock) {
	b.Tuple = Tuple{}
	b.Length = 0
	b.Next = nil
	b.PartitionIndex = 0
}

// free returns the block to its owning pool. Safe to call from any
// goroutine, including after the block's originating worker has exited
// (spec §5, "pools must support post-mortem frees").
func (b *ReceiveBlock) free() {
	if b == nil || b.OwningPool == nil {
		return
	}
	b.OwningPool.Free(b)
}

// returnRecvDatagrams implements the `return_recv_datagrams` upward API
// (spec §6): walks the Next chain, returning every block to its owning
// pool.
func returnRecvDatagrams(head *ReceiveBlock) {
	for b := head; b != nil; {
		n := b.Next
		b.Next = nil
		b.free()
		b = n
	}
}
