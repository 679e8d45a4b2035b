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

// Package datapath is the UDP datapath abstraction layer underlying a
// QUIC transport: it owns UDP sockets, dispatches inbound datagrams to
// an upper-layer receive callback, and transmits outbound datagrams on
// the transport's behalf. It does not itself speak QUIC — the transport
// and crypto state machine above it are external collaborators.
//
// The tree is, leaf first: Pool (github.com/sabouaram/quicdatapath/pool)
// for receive blocks, send buffers and send contexts; SocketContext, one
// UDP socket plus its in-flight receive and pending sends; Worker, one
// OS thread driving one readiness queue over all socket contexts pinned
// to it; Binding, the user-visible UDP endpoint tying one socket context
// per worker together. Datapath is the process-wide handle owning the
// workers and the bindings rundown.
package datapath
