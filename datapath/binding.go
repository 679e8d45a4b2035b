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
	"sync/atomic"

	uuid "github.com/hashicorp/go-uuid"

	"github.com/sabouaram/quicdatapath/addr"
	"github.com/sabouaram/quicdatapath/rundown"
)

// Binding is a user-visible UDP endpoint: one socket context per worker,
// sharing a local address and, optionally, a connected remote address
// (spec §3, §4.4).
type Binding struct {
	datapath *Datapath

	// ID is a process-unique identifier minted at Create, carried in
	// every log line this binding or its socket contexts emit so a
	// multi-binding server's logs can be filtered per endpoint.
	ID string

	ClientCtx interface{}

	LocalAddr  addr.Addr
	RemoteAddr addr.Addr
	Connected  bool
	MTU        int

	shutdown int32 // atomic bool

	// sockets is immutable after Create: exactly one entry per worker,
	// contiguously indexed (spec §3 invariant, §9 "variable-length
	// trailing arrays").
	sockets []*SocketContext

	rundown *rundown.Rundown

	rrCounter uint32 // atomic, round-robins AllocSendContext across workers
}

func determineFamily(local, remote *addr.Addr) (family addr.Family, dualStack bool) {
	if remote != nil && !remote.IsUnspecified() {
		return remote.Family, false
	}
	if local != nil && !local.IsUnspecified() {
		return local.Family, false
	}
	return addr.V6, true
}

// CreateBinding implements binding_create (spec §4.4, §6). local and
// remote may be nil. On any per-socket failure, already-constructed
// socket contexts are torn down and the error returned; the datapath
// itself is left usable (spec §4.4, "a failure does not poison the
// datapath").
func (d *Datapath) CreateBinding(local, remote *addr.Addr, clientCtx interface{}) (*Binding, error) {
	if !d.bindingsRundown.Acquire() {
		return nil, CodeInternalError.Errorf("datapath is shutting down")
	}

	family, dualStack := determineFamily(local, remote)

	id, err := uuid.GenerateUUID()
	if err != nil {
		d.bindingsRundown.Release()
		return nil, CodeInternalError.Errorf("generate binding id: %v", err)
	}

	b := &Binding{
		datapath:  d,
		ID:        id,
		ClientCtx: clientCtx,
		MTU:       defaultMTU,
		sockets:   make([]*SocketContext, len(d.workers)),
		rundown:   rundown.New(),
	}
	if local != nil {
		b.LocalAddr = *local
	}
	if remote != nil {
		b.RemoteAddr = *remote
		b.Connected = true
	}

	for i, w := range d.workers {
		s, err := b.createSocketContext(w, i, family, dualStack)
		if err != nil {
			b.teardownPartial(i)
			d.bindingsRundown.Release()
			return nil, err
		}
		b.sockets[i] = s

		if i == 0 {
			got, gerr := getSockName(s.fd, family)
			if gerr == nil {
				got = got.NormalizeV4()
				b.LocalAddr.Port = got.Port
				if b.LocalAddr.IP == nil {
					b.LocalAddr = got
				}
			}
		}
	}

	for _, s := range b.sockets {
		if !b.rundown.Acquire() {
			fatal("binding rundown rejected Acquire during Create")
		}
		s.armReceive()
	}

	d.metrics.BindingsActive.Inc()
	logDebug(d.logger, "binding created", "id", b.ID, "local", b.LocalAddr.String(), "connected", b.Connected)
	return b, nil
}

func (b *Binding) createSocketContext(w *Worker, index int, family addr.Family, dualStack bool) (*SocketContext, error) {
	fd, err := newSocket(family)
	if err != nil {
		return nil, err
	}

	if err := configureSocketOptions(fd, family, dualStack); err != nil {
		closeSocket(fd)
		return nil, err
	}

	bindAddr := b.LocalAddr
	bindAddr.Family = family
	if err := bindSocket(fd, family, bindAddr); err != nil {
		closeSocket(fd)
		return nil, err
	}

	if b.Connected {
		if err := connectSocket(fd, b.RemoteAddr); err != nil {
			closeSocket(fd)
			return nil, err
		}
	}

	s := &SocketContext{binding: b, worker: w, index: index, fd: fd}

	if err := w.registerRead(s); err != nil {
		closeSocket(fd)
		return nil, err
	}
	w.register(s)

	return s, nil
}

func (b *Binding) teardownPartial(upTo int) {
	for i := 0; i < upTo; i++ {
		s := b.sockets[i]
		if s == nil {
			continue
		}
		s.worker.unregisterSocket(s)
		s.worker.unregister(s)
		closeSocket(s.fd)
	}
}

// Delete implements binding_delete (spec §4.4). Must not be called from
// inside this binding's own receive callback — doing so deadlocks on the
// rundown drain, exactly as the spec warns.
func (b *Binding) Delete() {
	if !atomic.CompareAndSwapInt32(&b.shutdown, 0, 1) {
		return
	}

	for _, s := range b.sockets {
		s.worker.unregisterSocket(s)
		s.worker.unregister(s)
		closeSocket(s.fd)
		b.rundown.Release()
	}

	b.rundown.ReleaseAndWait()
	b.datapath.bindingsRundown.Release()
	b.datapath.metrics.BindingsActive.Dec()

	logDebug(b.datapath.logger, "binding deleted", "id", b.ID, "local", b.LocalAddr.String())
}

func (b *Binding) isShutdown() bool {
	return atomic.LoadInt32(&b.shutdown) != 0
}

// dispatchReceive runs spec §4.2's upcall, guarded by the binding's
// rundown so Delete cannot complete while a callback is executing and so
// no callback is delivered once Delete has begun (spec §8, invariant 6:
// "shutdown quiescence").
func (b *Binding) dispatchReceive(block *ReceiveBlock) {
	if !b.rundown.Acquire() {
		block.free()
		return
	}
	defer b.rundown.Release()

	if b.isShutdown() {
		block.free()
		return
	}

	cb := b.datapath.cfg.Receive
	if cb == nil {
		block.free()
		return
	}
	cb(b, b.ClientCtx, block)
}

// dispatchUnreachable runs the user's UnreachableCallback, guarded by
// the same rundown as dispatchReceive so it cannot fire once Delete has
// begun draining.
func (b *Binding) dispatchUnreachable(remote addr.Addr) {
	if !b.rundown.Acquire() {
		return
	}
	defer b.rundown.Release()

	if b.isShutdown() {
		return
	}

	cb := b.datapath.cfg.Unreachable
	if cb == nil {
		return
	}
	cb(b, b.ClientCtx, remote)
}

// GetLocalAddress returns the cached local address, authoritative since
// the first successful bind/getsockname pair (spec §3 invariant, §8
// invariant 4).
func (b *Binding) GetLocalAddress() addr.Addr { return b.LocalAddr }

// GetRemoteAddress returns the binding's connected remote address, or
// the zero Addr if unconnected.
func (b *Binding) GetRemoteAddress() addr.Addr { return b.RemoteAddr }

// GetLocalMTU returns the binding's cached path MTU.
func (b *Binding) GetLocalMTU() int { return b.MTU }

// AllocSendContext implements alloc_send_context (spec §6). The source
// pins all sends to worker 0; this implementation round-robins successive
// calls across the binding's socket contexts (one per worker), so each
// send context is allocated from, and later issued on, the next worker in
// turn. maxPacketSize is not used.
func (b *Binding) AllocSendContext(maxPacketSize int) *SendContext {
	idx := b.sendWorkerIndex()
	c := b.datapath.workers[idx].allocSendContext()
	if c == nil {
		return nil
	}
	c.RemoteAddr = b.RemoteAddr
	return c
}

func (b *Binding) sendWorkerIndex() int {
	if len(b.sockets) == 0 {
		return 0
	}
	return int(atomic.AddUint32(&b.rrCounter, 1)) % len(b.sockets)
}

// FreeSendContext implements free_send_context for a context that was
// never submitted.
func (b *Binding) FreeSendContext(c *SendContext) {
	c.free()
}

// SendTo implements send_to (spec §4.3, §6): used when the binding is
// connected. The address argument is omitted from the kernel call since
// sendto on a connected socket rejects one with EISCONN (spec §9,
// resolved open question).
func (b *Binding) SendTo(c *SendContext) error {
	return b.issue(c)
}

// SendFromTo implements send_from_to (spec §4.3, §6): used for
// unconnected bindings, or to pin an explicit source address even on a
// connected one. c.LocalAddr, if set, is carried as an IP_PKTINFO/
// IPV6_PKTINFO ancillary record; on Darwin only a v6 local address is
// carried this way (see buildSendAncillary).
func (b *Binding) SendFromTo(local *addr.Addr, remote addr.Addr, c *SendContext) error {
	c.LocalAddr = local
	c.RemoteAddr = remote
	return b.issue(c)
}

func (b *Binding) issue(c *SendContext) error {
	idx := c.Worker
	if idx < 0 || idx >= len(b.sockets) {
		idx = 0
	}
	s := b.sockets[idx]

	blocked, err := s.submit(c)
	if err != nil {
		c.free()
		return err
	}
	if blocked {
		b.datapath.metrics.SendDeferred.Inc()
		s.enqueuePending(c)
		s.armWritable()
		return nil
	}
	b.datapath.metrics.DatagramsSent.Add(float64(c.BufferCount))
	c.free()
	return nil
}
