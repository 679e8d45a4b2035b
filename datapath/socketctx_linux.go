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

// This file is the epoll substitute named as permitted by spec §6
// ("epoll on Linux ... permitted substitutes provided the contracts of
// §5 hold"). It mirrors socketctx_darwin.go's contract exactly; only the
// ancillary-data option names differ (Linux has real IP_PKTINFO for v4,
// unlike Darwin's IP_RECVDSTADDR/IP_RECVIF pair).
package datapath

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/quicdatapath/addr"
)

func newSocket(family addr.Family) (int, error) {
	af := unix.AF_INET6
	if family == addr.V4 {
		af = unix.AF_INET
	}
	fd, err := unix.Socket(af, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, unix.IPPROTO_UDP)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

func configureSocketOptions(fd int, family addr.Family, dualStack bool) error {
	if family != addr.V6 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_PKTINFO, 1); err != nil {
			return err
		}
	}
	if family != addr.V4 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_RECVPKTINFO, 1); err != nil {
			return err
		}
		v6only := 1
		if dualStack {
			v6only = 0
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, v6only); err != nil {
			return err
		}
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

func sockaddrOf(a addr.Addr) unix.Sockaddr {
	if a.Family == addr.V4 {
		s := &unix.SockaddrInet4{Port: int(a.Port)}
		copy(s.Addr[:], a.IP.To4())
		return s
	}
	s := &unix.SockaddrInet6{Port: int(a.Port), ZoneId: a.Zone}
	copy(s.Addr[:], a.IP.To16())
	return s
}

func addrOfSockaddr(sa unix.Sockaddr) addr.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return addr.Addr{Family: addr.V4, IP: append([]byte(nil), v.Addr[:]...), Port: uint16(v.Port)}
	case *unix.SockaddrInet6:
		return addr.Addr{Family: addr.V6, IP: append([]byte(nil), v.Addr[:]...), Port: uint16(v.Port), Zone: v.ZoneId}
	default:
		return addr.Addr{}
	}
}

func bindSocket(fd int, family addr.Family, local addr.Addr) error {
	local.Family = family
	return unix.Bind(fd, sockaddrOf(local))
}

func connectSocket(fd int, remote addr.Addr) error {
	return unix.Connect(fd, sockaddrOf(remote))
}

func getSockName(fd int, family addr.Family) (addr.Addr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return addr.Addr{}, err
	}
	return addrOfSockaddr(sa), nil
}

func closeSocket(fd int) error {
	return unix.Close(fd)
}

func recvFromSocket(fd int, buf []byte) (n int, local addr.Addr, remote addr.Addr, ifIndex uint32, wouldBlock bool, err error) {
	oob := make([]byte, cmsgBufferSize)
	nr, oobn, _, from, rerr := unix.Recvmsg(fd, buf, oob, 0)
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK || rerr == unix.EINTR {
			return 0, addr.Addr{}, addr.Addr{}, 0, true, nil
		}
		return 0, addr.Addr{}, addr.Addr{}, 0, false, rerr
	}

	if from != nil {
		remote = addrOfSockaddr(from)
	}

	local, ifIndex, err = parseRecvAncillary(oob[:oobn])
	return nr, local, remote, ifIndex, false, err
}

func parseRecvAncillary(oob []byte) (addr.Addr, uint32, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return addr.Addr{}, 0, err
	}

	var (
		found   bool
		local   addr.Addr
		ifIndex uint32
	)

	for _, m := range msgs {
		switch {
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_PKTINFO:
			if len(m.Data) >= int(unsafe.Sizeof(unix.Inet4Pktinfo{})) {
				pi := (*unix.Inet4Pktinfo)(unsafe.Pointer(&m.Data[0]))
				local = addr.Addr{Family: addr.V4, IP: append([]byte(nil), pi.Spec_dst[:]...)}
				ifIndex = uint32(pi.Ifindex)
				found = true
			}
		case m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_PKTINFO:
			if len(m.Data) >= int(unsafe.Sizeof(unix.Inet6Pktinfo{})) {
				pi := (*unix.Inet6Pktinfo)(unsafe.Pointer(&m.Data[0]))
				local = addr.Addr{Family: addr.V6, IP: append([]byte(nil), pi.Addr[:]...), Zone: pi.Ifindex}
				ifIndex = pi.Ifindex
				found = true
			}
		}
	}

	if !found {
		fatal("recvmsg returned no destination-address ancillary record")
	}
	return local, ifIndex, nil
}

func sendToConnected(fd int, buf []byte) (wouldBlock bool, err error) {
	err = unix.Sendto(fd, buf, 0, nil)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return true, nil
	}
	return false, err
}

func sendFromToSocket(fd int, local *addr.Addr, remote addr.Addr, buf []byte) (wouldBlock bool, err error) {
	var oob []byte
	if local != nil {
		oob = buildSendAncillary(*local)
	}

	err = unix.Sendmsg(fd, buf, oob, sockaddrOf(remote), 0)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return true, nil
	}
	return false, err
}

func buildCmsg(level, typ int, data []byte) []byte {
	buf := make([]byte, unix.CmsgSpace(len(data)))
	h := (*unix.Cmsghdr)(unsafe.Pointer(&buf[0]))
	h.Len = uint64(unix.CmsgLen(len(data)))
	h.Level = int32(level)
	h.Type = int32(typ)
	copy(buf[unix.CmsgLen(0):], data)
	return buf
}

// buildSendAncillary encodes IP_PKTINFO/IPV6_PKTINFO pinning the
// outgoing source address and interface (spec §4.3, send_from_to).
// Unlike Darwin, Linux supports pinning the v4 source this way too.
func buildSendAncillary(local addr.Addr) []byte {
	if local.Family == addr.V4 {
		var pi unix.Inet4Pktinfo
		copy(pi.Spec_dst[:], local.IP.To4())
		pi.Ifindex = int32(local.Zone)
		data := (*[unsafe.Sizeof(pi)]byte)(unsafe.Pointer(&pi))[:]
		return buildCmsg(unix.IPPROTO_IP, unix.IP_PKTINFO, data)
	}

	var pi unix.Inet6Pktinfo
	copy(pi.Addr[:], local.IP.To16())
	pi.Ifindex = local.Zone
	data := (*[unsafe.Sizeof(pi)]byte)(unsafe.Pointer(&pi))[:]
	return buildCmsg(unix.IPPROTO_IPV6, unix.IPV6_PKTINFO, data)
}
