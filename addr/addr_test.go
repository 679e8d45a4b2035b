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

package addr_test

import (
	"net"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/quicdatapath/addr"
)

func TestAddr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Addr Suite")
}

var _ = Describe("[TC-ADDR] polymorphic socket address", func() {
	Describe("NormalizeV4", func() {
		It("[TC-ADDR-001] rewrites a v4-mapped v6 address to the V4 variant", func() {
			mapped := addr.Addr{Family: addr.V6, IP: net.ParseIP("::ffff:192.0.2.10"), Port: 443}
			n := mapped.NormalizeV4()

			Expect(n.Family).To(Equal(addr.V4))
			Expect(n.IP.String()).To(Equal("192.0.2.10"))
			Expect(n.Port).To(Equal(uint16(443)))
		})

		It("[TC-ADDR-002] leaves a genuine v6 address unchanged", func() {
			a := addr.Addr{Family: addr.V6, IP: net.ParseIP("2001:db8::1"), Port: 80}
			n := a.NormalizeV4()

			Expect(n.Family).To(Equal(addr.V6))
			Expect(n.IP.String()).To(Equal("2001:db8::1"))
		})

		It("[TC-ADDR-003] leaves a v4 address unchanged", func() {
			a := addr.Addr{Family: addr.V4, IP: net.ParseIP("10.0.0.1").To4(), Port: 53}
			Expect(a.NormalizeV4()).To(Equal(a))
		})
	})

	Describe("FromUDPAddr / UDPAddr round trip", func() {
		It("[TC-ADDR-004] round-trips a v4 loopback address", func() {
			u := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5000}
			a := addr.FromUDPAddr(u)

			Expect(a.Family).To(Equal(addr.V4))
			Expect(a.Port).To(Equal(uint16(5000)))
			Expect(a.UDPAddr().IP.String()).To(Equal("127.0.0.1"))
			Expect(a.UDPAddr().Port).To(Equal(5000))
		})

		It("[TC-ADDR-005] normalizes a v4-mapped-v6 net.UDPAddr on the way in", func() {
			u := &net.UDPAddr{IP: net.ParseIP("::ffff:198.51.100.7"), Port: 1234}
			a := addr.FromUDPAddr(u)

			Expect(a.Family).To(Equal(addr.V4))
			Expect(a.IP.String()).To(Equal("198.51.100.7"))
		})

		It("[TC-ADDR-006] returns the zero Addr for a nil UDPAddr", func() {
			Expect(addr.FromUDPAddr(nil)).To(Equal(addr.Addr{}))
		})
	})

	Describe("IsUnspecified", func() {
		It("[TC-ADDR-007] reports true for the zero value", func() {
			Expect(addr.Addr{}.IsUnspecified()).To(BeTrue())
		})

		It("[TC-ADDR-008] reports true for 0.0.0.0 and ::", func() {
			Expect(addr.Addr{Family: addr.V4, IP: net.IPv4zero}.IsUnspecified()).To(BeTrue())
			Expect(addr.Addr{Family: addr.V6, IP: net.IPv6unspecified}.IsUnspecified()).To(BeTrue())
		})

		It("[TC-ADDR-009] reports false for a concrete address", func() {
			a := addr.Addr{Family: addr.V4, IP: net.ParseIP("203.0.113.5").To4()}
			Expect(a.IsUnspecified()).To(BeFalse())
		})
	})

	Describe("Equal", func() {
		It("[TC-ADDR-010] ignores Zone when comparing identity", func() {
			a := addr.Addr{Family: addr.V6, IP: net.ParseIP("fe80::1"), Port: 9, Zone: 1}
			b := addr.Addr{Family: addr.V6, IP: net.ParseIP("fe80::1"), Port: 9, Zone: 2}
			Expect(a.Equal(b)).To(BeTrue())
		})

		It("[TC-ADDR-011] distinguishes by port", func() {
			a := addr.Addr{Family: addr.V4, IP: net.ParseIP("127.0.0.1"), Port: 1}
			b := addr.Addr{Family: addr.V4, IP: net.ParseIP("127.0.0.1"), Port: 2}
			Expect(a.Equal(b)).To(BeFalse())
		})
	})

	Describe("String", func() {
		It("[TC-ADDR-012] brackets v6 addresses", func() {
			a := addr.Addr{Family: addr.V6, IP: net.ParseIP("::1"), Port: 443}
			Expect(a.String()).To(Equal("[::1]:443"))
		})

		It("[TC-ADDR-013] does not bracket v4 addresses", func() {
			a := addr.Addr{Family: addr.V4, IP: net.ParseIP("127.0.0.1").To4(), Port: 443}
			Expect(a.String()).To(Equal("127.0.0.1:443"))
		})
	})
})
