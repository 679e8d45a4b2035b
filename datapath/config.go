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

	golog "github.com/nabbar/golib/logger"
	"github.com/shirou/gopsutil/v3/cpu"
)

// ReceiveCallback is invoked synchronously from a worker goroutine with
// the head of a (possibly chained) datagram list. The callback owns the
// chain until it calls Datapath.ReturnRecvDatagrams (spec §4.2, §6).
type ReceiveCallback func(b *Binding, clientCtx interface{}, chain *ReceiveBlock)

// UnreachableCallback is invoked when the OS reports a destination
// unreachable condition (ICMP) for a connected socket.
type UnreachableCallback func(b *Binding, clientCtx interface{}, remote addr.Addr)

// Config is the datapath_init input (spec §6). WorkerCount defaults to
// the host's logical CPU count, probed the way the original queries
// sysctlbyname("hw.logicalcpu") — here via gopsutil, since this is a
// portable, non-Darwin-only substitute already in the corpus's
// dependency surface.
type Config struct {
	WorkerCount           int
	ClientRecvContextSize int
	Receive               ReceiveCallback
	Unreachable           UnreachableCallback
	Logger                golog.Logger

	// RecvBlockPoolSize, SendBufferPoolSize and SendContextPoolSize size
	// each worker's three pools (spec §3, Worker). Zero selects a
	// conservative default sized for a handful of concurrent bindings.
	RecvBlockPoolSize   int
	SendBufferPoolSize  int
	SendContextPoolSize int
}

const defaultPoolSize = 256

func (c *Config) setDefaults() error {
	if c.Receive == nil || c.Unreachable == nil {
		return CodeInvalidParameter.Error()
	}
	if c.WorkerCount <= 0 {
		n, err := cpu.Counts(true)
		if err != nil || n <= 0 {
			n = 1
		}
		c.WorkerCount = n
	}
	if c.RecvBlockPoolSize <= 0 {
		c.RecvBlockPoolSize = defaultPoolSize
	}
	if c.SendBufferPoolSize <= 0 {
		c.SendBufferPoolSize = defaultPoolSize
	}
	if c.SendContextPoolSize <= 0 {
		c.SendContextPoolSize = defaultPoolSize
	}
	if c.Logger == nil {
		c.Logger = newDefaultLogger()
	}
	return nil
}
