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

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/quicdatapath/pool"
)

// Worker is one processor context (spec §3): a single OS thread (in Go,
// a goroutine locked to its own readiness wait) driving one readiness
// queue over every SocketContext assigned to it, with its own three
// pools.
type Worker struct {
	index int
	dp    *Datapath

	recvBlocks   *pool.Pool[ReceiveBlock]
	sendBuffers  *pool.Pool[SendBuffer]
	sendContexts *pool.Pool[SendContext]

	mu      sync.Mutex
	sockets map[int]*SocketContext // fd -> socket context, this worker's only

	poller pollerHandle

	done    chan struct{}
	started bool
}

func newWorker(index int, dp *Datapath, cfg *Config) (*Worker, error) {
	poller, err := newPoller()
	if err != nil {
		return nil, err
	}

	w := &Worker{
		index:   index,
		dp:      dp,
		sockets: make(map[int]*SocketContext),
		done:    make(chan struct{}),
		poller:  poller,
	}
	w.recvBlocks = pool.New[ReceiveBlock](cfg.RecvBlockPoolSize, newReceiveBlock, resetReceiveBlock)
	w.sendBuffers = pool.New[SendBuffer](cfg.SendBufferPoolSize, newSendBuffer, resetSendBuffer)
	w.sendContexts = pool.New[SendContext](cfg.SendContextPoolSize, newSendContext, resetSendContext)
	return w, nil
}

func (w *Worker) register(s *SocketContext) {
	w.mu.Lock()
	w.sockets[s.fd] = s
	w.mu.Unlock()
}

func (w *Worker) unregister(s *SocketContext) {
	w.mu.Lock()
	delete(w.sockets, s.fd)
	w.mu.Unlock()
}

func (w *Worker) lookup(fd int) *SocketContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sockets[fd]
}

// Start launches the worker's readiness loop under eg, so Datapath.Uninit
// can join every worker with a single errgroup.Wait instead of the
// source's raw QuicThreadWait/QuicThreadDelete pair. The goroutine locks
// itself to one OS thread for the duration, mirroring the source's
// one-thread-per-processor-context model as closely as the Go runtime
// allows (spec §5).
func (w *Worker) Start(eg *errgroup.Group) {
	w.started = true
	eg.Go(func() error {
		defer close(w.done)
		return w.run()
	})
}

// Stop posts the wake event so a blocked worker re-checks the datapath
// shutdown flag (spec §4.5 step 3), then waits for the worker's run
// goroutine to return; the loop exits only once that flag is set. For a
// worker whose loop was never started, Stop closes the poller directly.
func (w *Worker) Stop() {
	if !w.started {
		w.closePoller()
		return
	}
	w.wake()
	<-w.done
}

// handleReadable runs spec §4.2's receive path for the socket context
// registered under fd: one recvmsg, dispatch to the user callback if it
// produced a block, rearm (already done inside recvComplete).
func (w *Worker) handleReadable(fd int) {
	s := w.lookup(fd)
	if s == nil {
		return
	}
	b := s.recvComplete()
	if b == nil {
		return
	}
	s.binding.dispatchReceive(b)
}

// handleWritable runs spec §4.3's "partial-batch resumption": drain the
// socket context's pending-send FIFO as far as it will go without
// blocking again.
func (w *Worker) handleWritable(fd int) {
	s := w.lookup(fd)
	if s == nil {
		return
	}
	s.drainPending()
}

// allocSendContext returns a zeroed SendContext from this worker's pool,
// wired to return buffers to this same worker (spec §4.3, "alloc_send_
// context"). Returns nil on pool exhaustion (OUT_OF_MEMORY, recoverable
// — unlike recv-block exhaustion, a send can simply be retried later).
func (w *Worker) allocSendContext() *SendContext {
	c := w.sendContexts.Alloc()
	if c == nil {
		return nil
	}
	c.owningCtxPool = w.sendContexts
	c.bufPool = w.sendBuffers
	c.Worker = w.index
	return c
}
