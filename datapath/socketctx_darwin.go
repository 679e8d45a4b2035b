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
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/quicdatapath/addr"
)

// newSocket creates a non-blocking UDP socket in the given family,
// mirroring datapath_darwin.c's QuicDataPathSocketContextInitialize.
func newSocket(family addr.Family) (int, error) {
	af := unix.AF_INET6
	if family == addr.V4 {
		af = unix.AF_INET
	}
	fd, err := unix.Socket(af, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, err
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// configureSocketOptions requests per-packet destination ancillary data
// and, for dual-stack sockets, disables v6-only — spec §4.4 step 2. The
// v4 options are IP_RECVDSTADDR/IP_RECVIF, the BSD substitutes for
// Linux's IP_PKTINFO (source: datapath_darwin.c lines ~865-878).
func configureSocketOptions(fd int, family addr.Family, dualStack bool) error {
	if family != addr.V6 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_RECVDSTADDR, 1); err != nil {
			return err
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_RECVIF, 1); err != nil {
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
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	return nil
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

// bindSocket passes the address-family-correct sockaddr length (spec §9
// supplemented feature: "bind uses a fixed sizeof(struct sockaddr)
// rather than the address-family-specific size" in the original —
// unix.Bind already encodes the correct length for the Sockaddr variant
// it is given, so the defect cannot recur here).
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

// recvFromSocket performs one recvmsg, parsing IP_RECVDSTADDR/IP_RECVIF
// or IPV6_PKTINFO ancillary data to recover the local address and
// interface scope id (spec §4.2).
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

// parseRecvAncillary walks the control-message buffer looking for the
// destination-address record this socket was configured to request. Per
// spec §4.2, finding none is a structural violation, not a soft error.
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
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_RECVDSTADDR:
			if len(m.Data) >= 4 {
				ip := append([]byte(nil), m.Data[:4]...)
				local = addr.Addr{Family: addr.V4, IP: ip}
				found = true
			}
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_RECVIF:
			// sockaddr_dl: sdl_index is the 16-bit field at byte
			// offset 2 (after the one-byte sdl_len and sdl_family).
			if len(m.Data) >= 6 {
				ifIndex = uint32(binary.LittleEndian.Uint16(m.Data[2:4]))
			}
		case m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_PKTINFO:
			if len(m.Data) >= 20 {
				ip := append([]byte(nil), m.Data[:16]...)
				idx := binary.LittleEndian.Uint32(m.Data[16:20])
				local = addr.Addr{Family: addr.V6, IP: ip, Zone: idx}
				ifIndex = idx
				found = true
			}
		}
	}

	if !found {
		fatal("recvmsg returned no destination-address ancillary record")
	}
	return local, ifIndex, nil
}

// sendToConnected issues one sendto with no address argument (the
// kernel rejects an address on a connected UDP socket with EISCONN —
// spec §4.3, §9 resolved open question).
func sendToConnected(fd int, buf []byte) (wouldBlock bool, err error) {
	err = unix.Sendto(fd, buf, 0, nil)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return true, nil
	}
	return false, err
}

// sendFromToSocket issues one sendmsg carrying an explicit destination
// plus, if local is non-nil, an IP_PKTINFO/IPV6_PKTINFO ancillary record
// pinning the source address and interface (spec §4.3 send_from_to).
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

// buildCmsg assembles one control message: header plus payload, padded
// to the platform's CMSG alignment.
func buildCmsg(level, typ int, data []byte) []byte {
	buf := make([]byte, unix.CmsgSpace(len(data)))
	h := (*unix.Cmsghdr)(unsafe.Pointer(&buf[0]))
	h.Len = uint32(unix.CmsgLen(len(data)))
	h.Level = int32(level)
	h.Type = int32(typ)
	copy(buf[unix.CmsgLen(0):], data)
	return buf
}

// buildSendAncillary encodes an IP_PKTINFO/IPV6_PKTINFO record pinning
// the outgoing source address and interface (spec §4.3, send_from_to).
// Darwin has no IP_PKTINFO for sends, only IP_RECVDSTADDR for receives;
// pinning a v4 source address on send is therefore done via bind, not
// ancillary data, so only the v6 case produces a control message here.
func buildSendAncillary(local addr.Addr) []byte {
	if local.Family != addr.V6 {
		return nil
	}
	var pktinfo unix.Inet6Pktinfo
	copy(pktinfo.Addr[:], local.IP.To16())
	pktinfo.Ifindex = local.Zone

	data := (*[unsafe.Sizeof(pktinfo)]byte)(unsafe.Pointer(&pktinfo))[:]
	return buildCmsg(unix.IPPROTO_IPV6, unix.IPV6_PKTINFO, data)
}
