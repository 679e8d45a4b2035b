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
	"errors"
	"syscall"
)

// This file holds the platform-independent half of SocketContext's
// receive/send operations; socketctx_darwin.go and socketctx_linux.go
// supply the syscall-level primitives it calls.

// armReceive acquires a block from the worker's recv-block pool and
// wires it in as the in-flight receive (spec §4.2, "arming a receive").
// Failure to allocate is fatal per spec §7: fatal panics, ending the
// process, rather than silently stop receiving.
func (s *SocketContext) armReceive() {
	b := s.worker.recvBlocks.Alloc()
	if b == nil {
		fatal("recv-block pool exhausted while rearming socket %d", s.fd)
	}
	b.OwningPool = s.worker.recvBlocks
	b.PartitionIndex = s.worker.index
	s.inFlight = b
}

// recvComplete performs one recvmsg and, on success, detaches and
// returns the filled block, immediately rearming a fresh one so the
// socket context is never without an in-flight receive after this call
// returns (spec §4.2).
func (s *SocketContext) recvComplete() *ReceiveBlock {
	b := s.inFlight
	n, local, remote, ifIndex, wouldBlock, err := recvFromSocket(s.fd, b.Buffer)
	if wouldBlock {
		return nil
	}
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			// A prior send on this connected socket was answered by an
			// ICMP port-unreachable; the kernel surfaces it on the next
			// recvmsg rather than the send that triggered it.
			// The in-flight block was not filled and stays armed.
			s.binding.dispatchUnreachable(s.binding.RemoteAddr)
			return nil
		}
		logWarn(s.binding.datapath.logger, "recvmsg failed", "socket", s.fd, "err", err)
		s.binding.datapath.metrics.ReceiveErrors.Inc()
		return nil
	}

	local.Port = s.binding.LocalAddr.Port
	local = local.NormalizeV4()
	local.Zone = ifIndex
	remote = remote.NormalizeV4()

	b.Length = n
	b.Tuple = Tuple{Local: local, Remote: remote}
	s.binding.datapath.metrics.DatagramsReceived.Inc()

	s.inFlight = nil
	s.armReceive()
	return b
}

// submit issues one send attempt for c, starting at its CurrentIndex. It
// returns (blocked, err): blocked is true on EWOULDBLOCK/EAGAIN, meaning
// the caller must enqueue c on the pending FIFO and arm writable
// interest (spec §4.3).
func (s *SocketContext) submit(c *SendContext) (blocked bool, err error) {
	connected := s.binding.Connected

	for c.CurrentIndex < c.BufferCount {
		buf := c.Buffers[c.CurrentIndex]

		if connected && c.LocalAddr == nil {
			blocked, err = sendToConnected(s.fd, buf.Data[:buf.Len])
		} else {
			blocked, err = sendFromToSocket(s.fd, c.LocalAddr, c.RemoteAddr, buf.Data[:buf.Len])
		}

		if blocked {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		c.CurrentIndex++
	}
	return false, nil
}

// resumeSend is submit's entry point from the pending-list drain path;
// named separately so worker.go reads as "resume what was deferred".
func (s *SocketContext) resumeSend(c *SendContext) (blocked bool, err error) {
	return s.submit(c)
}
