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

// Package addr implements the polymorphic socket-address union used
// throughout the datapath: a value that may be v4 or v6 and whose family
// is observable at runtime, plus the total v4-mapped-v6 normalization
// function called for by the datapath design notes.
package addr

import (
	"fmt"
	"net"
)

// Family tags which variant of Addr is populated.
type Family uint8

const (
	Unspec Family = iota
	V4
	V6
)

func (f Family) String() string {
	switch f {
	case V4:
		return "v4"
	case V6:
		return "v6"
	default:
		return "unspec"
	}
}

// Addr is the tagged {V4, V6} union described in the datapath design notes.
// Zone carries the interface scope id recovered from IPV6_PKTINFO /
// IP_PKTINFO ancillary data (or set by the caller for link-local targets).
type Addr struct {
	Family Family
	IP     net.IP
	Port   uint16
	Zone   uint32
}

// FromUDPAddr builds an Addr from a standard library net.UDPAddr.
func FromUDPAddr(u *net.UDPAddr) Addr {
	if u == nil {
		return Addr{}
	}

	a := Addr{IP: u.IP, Port: uint16(u.Port)}
	if ip4 := u.IP.To4(); ip4 != nil {
		a.Family = V4
		a.IP = ip4
	} else {
		a.Family = V6
	}

	if u.Zone != "" {
		if iface, err := net.InterfaceByName(u.Zone); err == nil {
			a.Zone = uint32(iface.Index)
		}
	}

	return a.NormalizeV4()
}

// UDPAddr converts back to the standard library representation.
func (a Addr) UDPAddr() *net.UDPAddr {
	u := &net.UDPAddr{IP: a.IP, Port: int(a.Port)}
	if a.Family == V6 && a.Zone != 0 {
		if iface, err := net.InterfaceByIndex(int(a.Zone)); err == nil {
			u.Zone = iface.Name
		}
	}
	return u
}

// IsUnspecified reports whether the address carries no family at all
// (the zero value), matching a binding whose local address is wildcard.
func (a Addr) IsUnspecified() bool {
	return a.Family == Unspec || a.IP == nil || a.IP.IsUnspecified()
}

// NormalizeV4 is the total function between variants called for by the
// design notes: a v6 address carrying a v4-mapped payload
// (::ffff:a.b.c.d) is rewritten as the V4 variant. Every other address
// round-trips unchanged. The datapath applies this both to addresses
// recovered from ancillary data and to resolve-address results, so
// callers never observe a v4-mapped-v6 form (see SPEC_FULL.md, point 5).
func (a Addr) NormalizeV4() Addr {
	if a.Family != V6 || a.IP == nil {
		return a
	}

	if ip4 := a.IP.To4(); ip4 != nil {
		return Addr{Family: V4, IP: ip4, Port: a.Port}
	}

	return a
}

// String renders "ip:port" (or "[ip]:port" for v6), matching the
// %!SOCKADDR! log formatting contract the original source names but
// never defines in a systems-language-portable way.
func (a Addr) String() string {
	if a.IP == nil {
		return fmt.Sprintf(":%d", a.Port)
	}
	return net.JoinHostPort(a.IP.String(), fmt.Sprintf("%d", a.Port))
}

// Equal compares two addresses by family, IP and port; Zone is excluded
// since it is a routing hint, not part of address identity.
func (a Addr) Equal(o Addr) bool {
	return a.Family == o.Family && a.IP.Equal(o.IP) && a.Port == o.Port
}
