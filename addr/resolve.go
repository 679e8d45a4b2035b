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

package addr

import (
	"context"
	"net"
)

// Resolve implements the datapath's thin DNS front (spec §6,
// resolve_address): it first tries HostName as a numeric address, then
// falls back to a canonical-name lookup, mirroring the two-pass
// getaddrinfo(AI_NUMERICHOST) / getaddrinfo(AI_CANONNAME) strategy of
// the original platform code. Family is a hint; Unspec lets either
// family through and a v4-mapped-v6 result is normalized away.
func Resolve(ctx context.Context, hostName string, family Family) (Addr, error) {
	if ip := net.ParseIP(hostName); ip != nil {
		return addrFromIP(ip, family), nil
	}

	resolver := net.DefaultResolver
	ips, err := resolver.LookupIPAddr(ctx, hostName)
	if err != nil || len(ips) == 0 {
		return Addr{}, &ResolutionError{HostName: hostName, Cause: err}
	}

	for _, candidate := range ips {
		a := addrFromIP(candidate.IP, family)
		if family == Unspec || a.Family == family {
			return a, nil
		}
	}

	// No entry matched the requested family; fall back to the first
	// canonical answer rather than failing outright, matching the
	// source's willingness to accept whatever getaddrinfo first hands
	// back for an AF_UNSPEC hint.
	return addrFromIP(ips[0].IP, family), nil
}

func addrFromIP(ip net.IP, family Family) Addr {
	a := Addr{IP: ip}
	if ip4 := ip.To4(); ip4 != nil {
		a.Family = V4
		a.IP = ip4
	} else {
		a.Family = V6
	}
	_ = family
	return a.NormalizeV4()
}

// ResolutionError reports a DNS_RESOLUTION_ERROR per spec §7's error
// taxonomy; callers map it to that code rather than inspecting Cause.
type ResolutionError struct {
	HostName string
	Cause    error
}

func (e *ResolutionError) Error() string {
	if e.Cause != nil {
		return "resolve " + e.HostName + ": " + e.Cause.Error()
	}
	return "resolve " + e.HostName + ": no address found"
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}
