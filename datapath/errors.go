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
	"fmt"

	liberr "github.com/nabbar/golib/errors"
)

// Taxonomy codes from spec §7. SUCCESS has no Go representation (a nil
// error already means success); the rest are allocated off golib's
// CodeError range so they interoperate with the teacher's error stack.
const (
	CodeInvalidParameter liberr.CodeError = iota + 6000
	CodeOutOfMemory
	CodeDNSResolutionError
	CodeInternalError
)

var datapathMessages = map[liberr.CodeError]string{
	CodeInvalidParameter:   "datapath: invalid parameter",
	CodeOutOfMemory:        "datapath: out of memory",
	CodeDNSResolutionError: "datapath: dns resolution error",
	CodeInternalError:      "datapath: internal error",
}

func init() {
	if !liberr.ExistInMapMessage(CodeInvalidParameter) {
		liberr.RegisterIdFctMessage(CodeInvalidParameter, func(code liberr.CodeError) string {
			return datapathMessages[code]
		})
	}
}

// fatal panics on a structural violation named by spec §7: "missing
// ancillary record on a packet we requested ancillary data for, pool
// exhaustion when rearming a receive". These are OS-contract violations
// the datapath cannot recover from; the process terminates rather than
// silently dropping packets.
func fatal(format string, args ...interface{}) {
	panic(fmt.Sprintf("quicdatapath: fatal: "+format, args...))
}
