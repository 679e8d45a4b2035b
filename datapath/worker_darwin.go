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

//go:build darwin

package datapath

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pollerHandle on Darwin is a kqueue descriptor. Wakeup uses a single
// registered EVFILT_USER event triggered with NOTE_TRIGGER (spec §4.5,
// "an EVFILT_USER or equivalent eventfd-like primitive").
type pollerHandle struct {
	kq int
}

const wakeIdent = 1

func newPoller() (pollerHandle, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return pollerHandle{}, err
	}
	changes := []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}
	if _, err := unix.Kevent(kq, changes, nil, nil); err != nil {
		unix.Close(kq)
		return pollerHandle{}, err
	}
	return pollerHandle{kq: kq}, nil
}

func (w *Worker) wake() {
	changes := []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}
	_, _ = unix.Kevent(w.poller.kq, changes, nil, nil)
}

// registerRead arms edge-triggered read interest for s, per spec §4.4
// step 5.
func (w *Worker) registerRead(s *SocketContext) error {
	changes := []unix.Kevent_t{{
		Ident:  uint64(s.fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}
	_, err := unix.Kevent(w.poller.kq, changes, nil, nil)
	return err
}

func (w *Worker) unregisterSocket(s *SocketContext) {
	changes := []unix.Kevent_t{
		{Ident: uint64(s.fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(s.fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(w.poller.kq, changes, nil, nil)
}

// closePoller releases the kqueue descriptor directly, without going
// through the wake/run handshake. Used only when a worker's run loop was
// never started (a sibling worker failed construction mid-Init), so
// there is no goroutine left to notice a wake event.
func (w *Worker) closePoller() {
	_ = unix.Close(w.poller.kq)
}

// armWritable registers one-shot writable interest; the worker's next
// pass through the loop disarms it implicitly (EV_ONESHOT) and drainPending
// re-arms only if the resumed send blocks again (spec §4.3).
func (s *SocketContext) armWritable() {
	s.sendWaiting = true
	changes := []unix.Kevent_t{{
		Ident:  uint64(s.fd),
		Filter: unix.EVFILT_WRITE,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
	}}
	_, _ = unix.Kevent(s.worker.poller.kq, changes, nil, nil)
}

// run is the worker's readiness loop (spec §4.5). It returns nil on an
// orderly shutdown and a non-nil error only if the kevent wait itself
// fails unrecoverably; Datapath.Uninit collects that error through the
// errgroup Start registered this goroutine with.
func (w *Worker) run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	events := make([]unix.Kevent_t, 64)
	for {
		n, err := unix.Kevent(w.poller.kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logError(w.dp.logger, "kevent wait failed", err, "worker", w.index)
			return err
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			switch ev.Filter {
			case unix.EVFILT_USER:
				if w.dp.isShuttingDown() {
					return nil
				}
			case unix.EVFILT_READ:
				w.handleReadable(int(ev.Ident))
			case unix.EVFILT_WRITE:
				// EV_ONESHOT: the writable interest is gone once delivered.
				if s := w.lookup(int(ev.Ident)); s != nil {
					s.sendWaiting = false
				}
				w.handleWritable(int(ev.Ident))
			}
		}

		if w.dp.isShuttingDown() {
			return nil
		}
	}
}
