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

const (
	// MaxUDPPayloadLength is the base length from which the IPv4 and UDP
	// header sizes are deducted to size receive blocks and send buffers;
	// the largest payload actually accepted is MaxUDPReceivePayload().
	MaxUDPPayloadLength = 65527

	// MaxSendBatchSize is QUIC_MAX_BATCH_SEND from the source: the hard
	// cap on buffers carried by one SendContext.
	MaxSendBatchSize = 10

	// ipv4HeaderSize and udpHeaderSize are deducted from
	// MaxUDPPayloadLength to size a single receive I/O vector entry
	// (spec §6, "numerical constants worth naming").
	ipv4HeaderSize = 20
	udpHeaderSize  = 8

	// cmsgBufferSize is sized to the larger of in_pktinfo/in6_pktinfo
	// plus CMSG alignment, with headroom for both families sharing one
	// socket context's scratch buffer.
	cmsgBufferSize = 128

	// defaultMTU matches msquic's conservative default when no path MTU
	// discovery result is available yet.
	defaultMTU = 1500
)

// MaxUDPReceivePayload returns the receive buffer size after subtracting
// the smallest possible IP/UDP header overhead, matching the source's
// MAX_UDP_PAYLOAD_LENGTH derivation.
func MaxUDPReceivePayload() int {
	return MaxUDPPayloadLength - ipv4HeaderSize - udpHeaderSize
}
