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

//go:build linux

// This file is the epoll substitute named as permitted by spec §6.
// Functionally it mirrors worker_darwin.go's kqueue loop: one readiness
// wait, edge-triggered read interest per socket, one-shot-like writable
// interest armed only while a send is pending, and an explicit wake
// primitive (an eventfd in place of EVFILT_USER) so an idle worker can
// be woken to notice shutdown.
package datapath

import (
	"runtime"

	"golang.org/x/sys/unix"
)

type pollerHandle struct {
	epfd   int
	wakeFd int
}

func newPoller() (pollerHandle, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return pollerHandle{}, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return pollerHandle{}, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return pollerHandle{}, err
	}
	return pollerHandle{epfd: epfd, wakeFd: wakeFd}, nil
}

func (w *Worker) wake() {
	buf := make([]byte, 8)
	buf[0] = 1
	_, _ = unix.Write(w.poller.wakeFd, buf)
}

func (w *Worker) registerRead(s *SocketContext) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(s.fd)}
	return unix.EpollCtl(w.poller.epfd, unix.EPOLL_CTL_ADD, s.fd, &ev)
}

func (w *Worker) unregisterSocket(s *SocketContext) {
	_ = unix.EpollCtl(w.poller.epfd, unix.EPOLL_CTL_DEL, s.fd, nil)
}

// closePoller releases the epoll and wake-event descriptors directly,
// without going through the wake/run handshake. Used only when a
// worker's run loop was never started (a sibling worker failed
// construction mid-Init), so there is no goroutine left to notice a
// wake event.
func (w *Worker) closePoller() {
	_ = unix.Close(w.poller.wakeFd)
	_ = unix.Close(w.poller.epfd)
}

// armWritable adds write interest to the existing read registration.
// The next readiness pass delivers EPOLLOUT once, after which
// drainPending re-arms only if the resumed send blocks again.
func (s *SocketContext) armWritable() {
	s.sendWaiting = true
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET, Fd: int32(s.fd)}
	_ = unix.EpollCtl(s.worker.poller.epfd, unix.EPOLL_CTL_MOD, s.fd, &ev)
}

func (w *Worker) disarmWritable(s *SocketContext) {
	s.sendWaiting = false
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(s.fd)}
	_ = unix.EpollCtl(w.poller.epfd, unix.EPOLL_CTL_MOD, s.fd, &ev)
}

// run is the worker's readiness loop (spec §4.5). It returns nil on an
// orderly shutdown and a non-nil error only if the epoll wait itself
// fails unrecoverably; Datapath.Uninit collects that error through the
// errgroup Start registered this goroutine with.
func (w *Worker) run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	events := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(w.poller.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logError(w.dp.logger, "epoll_wait failed", err, "worker", w.index)
			return err
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)

			if fd == w.poller.wakeFd {
				buf := make([]byte, 8)
				_, _ = unix.Read(w.poller.wakeFd, buf)
				if w.dp.isShuttingDown() {
					return nil
				}
				continue
			}

			// A pending socket error (e.g. an ICMP port-unreachable on a
			// connected socket) is reported as EPOLLERR without EPOLLIN;
			// recvmsg is what collects it.
			if ev.Events&(unix.EPOLLIN|unix.EPOLLERR) != 0 {
				w.handleReadable(fd)
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				if s := w.lookup(fd); s != nil {
					w.disarmWritable(s)
				}
				w.handleWritable(fd)
			}
		}

		if w.dp.isShuttingDown() {
			return nil
		}
	}
}
