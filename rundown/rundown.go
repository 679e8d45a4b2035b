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

// Package rundown implements the reference-counter-plus-drain-edge
// primitive named in the datapath design notes: Acquire fails once
// shutdown has begun, ReleaseAndWait blocks until every outstanding
// Acquire has been matched by a Release.
package rundown

import "sync"

// Rundown guards the lifetime of a binding or the datapath's bindings
// set. It starts with one implicit reference held by its owner; that
// reference is released by ReleaseAndWait, which also flips the
// "ending" flag so further Acquire calls are rejected.
type Rundown struct {
	mu     sync.Mutex
	cond   *sync.Cond
	count  int
	ending bool
}

// New returns a Rundown with its owner's implicit reference already
// held (count starts at 1, mirroring QuicRundownInitialize).
func New() *Rundown {
	r := &Rundown{count: 1}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Acquire takes a reference. It returns false if ReleaseAndWait has
// already begun draining — the caller must not proceed to use the
// guarded resource in that case.
func (r *Rundown) Acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ending {
		return false
	}
	r.count++
	return true
}

// Release drops one reference previously obtained via Acquire.
func (r *Rundown) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count--
	if r.count == 0 {
		r.cond.Broadcast()
	}
}

// ReleaseAndWait releases the owner's implicit reference, marks the
// rundown as ending (so no further Acquire can succeed), and blocks
// until every other outstanding reference has also been released.
// Matches spec §4.4's "waits for the binding's rundown to drain (no
// outstanding upcalls)" and §6's datapath_uninit contract.
func (r *Rundown) ReleaseAndWait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ending = true
	r.count--
	for r.count > 0 {
		r.cond.Wait()
	}
}

// Count reports the current number of outstanding references. Intended
// for tests and diagnostics, not for control flow.
func (r *Rundown) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
