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
	"context"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	golog "github.com/nabbar/golib/logger"

	"github.com/sabouaram/quicdatapath/addr"
	"github.com/sabouaram/quicdatapath/rundown"
)

// Datapath is the process-wide handle: the worker array, the user's
// callbacks, and the rundown that blocks Uninit until every binding has
// been deleted (spec §3, "Datapath").
type Datapath struct {
	cfg     Config
	logger  golog.Logger
	workers []*Worker
	group   *errgroup.Group

	bindingsRundown *rundown.Rundown
	shuttingDown    int32 // atomic bool

	metrics *metricSet
}

// Init implements datapath_init (spec §6): validates the callbacks,
// resolves WorkerCount (defaulting to the host's logical CPU count via
// gopsutil, the portable substitute for sysctlbyname("hw.logicalcpu")),
// and starts one Worker goroutine per processor context.
func Init(cfg Config) (*Datapath, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	d := &Datapath{
		cfg:             cfg,
		logger:          cfg.Logger,
		bindingsRundown: rundown.New(),
		metrics:         newMetricSet(),
		group:           &errgroup.Group{},
	}

	d.workers = make([]*Worker, cfg.WorkerCount)
	for i := range d.workers {
		w, err := newWorker(i, d, &cfg)
		if err != nil {
			d.teardownWorkers(i)
			return nil, CodeOutOfMemory.Errorf("worker %d: %v", i, err)
		}
		d.workers[i] = w
	}
	for _, w := range d.workers {
		w.Start(d.group)
	}

	logDebug(d.logger, "datapath initialized", "workers", len(d.workers))
	return d, nil
}

func (d *Datapath) teardownWorkers(upTo int) {
	for i := 0; i < upTo; i++ {
		d.workers[i].Stop()
	}
}

// Uninit implements datapath_uninit (spec §6): blocks on the bindings
// rundown (every CreateBinding caller must have called Delete first),
// signals every worker to exit its readiness loop, then joins them
// through the errgroup Init started them on, replacing the source's raw
// QuicThreadWait/QuicThreadDelete pair.
func (d *Datapath) Uninit() error {
	atomic.StoreInt32(&d.shuttingDown, 1)
	d.bindingsRundown.ReleaseAndWait()

	for _, w := range d.workers {
		w.wake()
	}

	var errs *multierror.Error
	if err := d.group.Wait(); err != nil {
		errs = multierror.Append(errs, err)
	}

	logDebug(d.logger, "datapath uninitialized")
	return errs.ErrorOrNil()
}

func (d *Datapath) isShuttingDown() bool {
	return atomic.LoadInt32(&d.shuttingDown) != 0
}

// ResolveAddress implements resolve_address (spec §6): numeric form
// first, then canonical-name DNS lookup.
func (d *Datapath) ResolveAddress(ctx context.Context, hostName string, family addr.Family) (addr.Addr, error) {
	return addr.Resolve(ctx, hostName, family)
}

// ReturnRecvDatagrams implements return_recv_datagrams (spec §6): walks
// the chain and frees each block to its owning pool.
func (d *Datapath) ReturnRecvDatagrams(chain *ReceiveBlock) {
	returnRecvDatagrams(chain)
}
