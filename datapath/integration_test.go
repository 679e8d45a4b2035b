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

//go:build darwin || linux

package datapath_test

import (
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/quicdatapath/addr"
	"github.com/sabouaram/quicdatapath/datapath"
)

type received struct {
	length int
	local  addr.Addr
	remote addr.Addr
}

func loopback(port uint16) *addr.Addr {
	return &addr.Addr{Family: addr.V4, IP: net.ParseIP("127.0.0.1").To4(), Port: port}
}

var _ = Describe("[TC-DP] end-to-end datapath scenarios", func() {
	var dp *datapath.Datapath

	AfterEach(func() {
		if dp != nil {
			Expect(dp.Uninit()).ToNot(HaveOccurred())
			dp = nil
		}
	})

	It("[TC-DP-S1] loopback echo v4 delivers one datagram with the right tuple", func() {
		ch := make(chan received, 1)

		var err error
		dp, err = datapath.Init(datapath.Config{
			WorkerCount: 1,
			Receive: func(b *datapath.Binding, _ interface{}, chain *datapath.ReceiveBlock) {
				ch <- received{length: chain.Length, local: chain.Tuple.Local, remote: chain.Tuple.Remote}
				dp.ReturnRecvDatagrams(chain)
			},
			Unreachable: func(*datapath.Binding, interface{}, addr.Addr) {},
		})
		Expect(err).ToNot(HaveOccurred())

		a, err := dp.CreateBinding(loopback(0), nil, nil)
		Expect(err).ToNot(HaveOccurred())
		defer a.Delete()

		portA := a.GetLocalAddress().Port
		Expect(portA).ToNot(BeZero())

		b, err := dp.CreateBinding(nil, loopback(portA), nil)
		Expect(err).ToNot(HaveOccurred())
		defer b.Delete()

		ctx := b.AllocSendContext(1200)
		Expect(ctx).ToNot(BeNil())

		buf := ctx.AllocDatagram(100)
		Expect(buf).ToNot(BeNil())
		for i := range buf.Data[:100] {
			buf.Data[i] = byte(i)
		}

		Expect(b.SendTo(ctx)).ToNot(HaveOccurred())

		var got received
		Eventually(ch, 2*time.Second).Should(Receive(&got))

		Expect(got.length).To(Equal(100))
		Expect(got.local.Port).To(Equal(portA))
		Expect(got.remote.Family).To(Equal(addr.V4))
	})

	It("[TC-DP-S3] a full 10-buffer batch arrives in submission order", func() {
		type tagged struct {
			idx int
			len int
		}
		ch := make(chan tagged, datapath.MaxSendBatchSize)

		var err error
		dp, err = datapath.Init(datapath.Config{
			WorkerCount: 1,
			Receive: func(b *datapath.Binding, _ interface{}, chain *datapath.ReceiveBlock) {
				ch <- tagged{idx: int(chain.Buffer[0]), len: chain.Length}
				dp.ReturnRecvDatagrams(chain)
			},
			Unreachable: func(*datapath.Binding, interface{}, addr.Addr) {},
		})
		Expect(err).ToNot(HaveOccurred())

		a, err := dp.CreateBinding(loopback(0), nil, nil)
		Expect(err).ToNot(HaveOccurred())
		defer a.Delete()

		b, err := dp.CreateBinding(nil, loopback(a.GetLocalAddress().Port), nil)
		Expect(err).ToNot(HaveOccurred())
		defer b.Delete()

		sctx := b.AllocSendContext(1400)
		Expect(sctx).ToNot(BeNil())

		for i := 0; i < datapath.MaxSendBatchSize; i++ {
			buf := sctx.AllocDatagram(1200)
			Expect(buf).ToNot(BeNil())
			buf.Data[0] = byte(i)
		}
		Expect(sctx.IsFull()).To(BeTrue())

		Expect(b.SendTo(sctx)).ToNot(HaveOccurred())

		for i := 0; i < datapath.MaxSendBatchSize; i++ {
			var got tagged
			Eventually(ch, 2*time.Second).Should(Receive(&got))
			Expect(got.idx).To(Equal(i))
			Expect(got.len).To(Equal(1200))
		}
	})

	It("[TC-DP-S4] an 11th datagram allocation fails once the batch is full", func() {
		var err error
		dp, err = datapath.Init(datapath.Config{
			WorkerCount: 1,
			Receive:     func(*datapath.Binding, interface{}, *datapath.ReceiveBlock) {},
			Unreachable: func(*datapath.Binding, interface{}, addr.Addr) {},
		})
		Expect(err).ToNot(HaveOccurred())

		b, err := dp.CreateBinding(loopback(0), nil, nil)
		Expect(err).ToNot(HaveOccurred())
		defer b.Delete()

		sctx := b.AllocSendContext(1400)
		for i := 0; i < datapath.MaxSendBatchSize; i++ {
			Expect(sctx.AllocDatagram(100)).ToNot(BeNil())
		}

		Expect(sctx.IsFull()).To(BeTrue())
		Expect(sctx.AllocDatagram(100)).To(BeNil())

		b.FreeSendContext(sctx)
	})

	It("[TC-DP-S6] no callback fires on a binding after Delete returns", func() {
		var delivered int32

		var err error
		dp, err = datapath.Init(datapath.Config{
			WorkerCount: 1,
			Receive: func(b *datapath.Binding, _ interface{}, chain *datapath.ReceiveBlock) {
				atomic.AddInt32(&delivered, 1)
				dp.ReturnRecvDatagrams(chain)
			},
			Unreachable: func(*datapath.Binding, interface{}, addr.Addr) {},
		})
		Expect(err).ToNot(HaveOccurred())

		a, err := dp.CreateBinding(loopback(0), nil, nil)
		Expect(err).ToNot(HaveOccurred())

		portA := a.GetLocalAddress().Port
		b, err := dp.CreateBinding(nil, loopback(portA), nil)
		Expect(err).ToNot(HaveOccurred())
		defer b.Delete()

		ctx := b.AllocSendContext(1200)
		buf := ctx.AllocDatagram(50)
		Expect(buf).ToNot(BeNil())
		Expect(b.SendTo(ctx)).ToNot(HaveOccurred())

		time.Sleep(50 * time.Millisecond)
		a.Delete()

		before := atomic.LoadInt32(&delivered)
		time.Sleep(50 * time.Millisecond)
		Expect(atomic.LoadInt32(&delivered)).To(Equal(before))
	})

	It("[TC-DP-S7] a send to a closed loopback port surfaces on Unreachable", func() {
		unreachable := make(chan addr.Addr, 1)

		// Grab an ephemeral port and release it immediately; nothing is
		// listening there, so a connected send provokes an ICMP
		// port-unreachable that the kernel surfaces on this socket's
		// next recvmsg as ECONNREFUSED.
		probe, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
		Expect(err).ToNot(HaveOccurred())
		deadPort := uint16(probe.LocalAddr().(*net.UDPAddr).Port)
		Expect(probe.Close()).ToNot(HaveOccurred())

		dp, err = datapath.Init(datapath.Config{
			WorkerCount: 1,
			Receive:     func(_ *datapath.Binding, _ interface{}, chain *datapath.ReceiveBlock) { dp.ReturnRecvDatagrams(chain) },
			Unreachable: func(_ *datapath.Binding, _ interface{}, remote addr.Addr) {
				unreachable <- remote
			},
		})
		Expect(err).ToNot(HaveOccurred())

		b, err := dp.CreateBinding(nil, loopback(deadPort), nil)
		Expect(err).ToNot(HaveOccurred())
		defer b.Delete()

		ctx := b.AllocSendContext(1200)
		buf := ctx.AllocDatagram(16)
		Expect(buf).ToNot(BeNil())
		Expect(b.SendTo(ctx)).ToNot(HaveOccurred())

		// A second send, made after the first ICMP error has had time to
		// arrive and be collected by the worker's recvmsg, provokes a
		// second port-unreachable on the same socket.
		ctx2 := b.AllocSendContext(1200)
		Expect(ctx2.AllocDatagram(16)).ToNot(BeNil())
		time.Sleep(20 * time.Millisecond)
		Expect(b.SendTo(ctx2)).ToNot(HaveOccurred())

		var got addr.Addr
		Eventually(unreachable, 2*time.Second).Should(Receive(&got))
		Expect(got.Port).To(Equal(deadPort))
	})
})
