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
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/quicdatapath/addr"
)

var _ = Describe("[TC-RESOLVE] resolve_address", func() {
	It("[TC-RESOLVE-001] resolves a numeric v4 literal without touching DNS", func() {
		a, err := addr.Resolve(context.Background(), "192.0.2.55", addr.Unspec)
		Expect(err).ToNot(HaveOccurred())
		Expect(a.Family).To(Equal(addr.V4))
		Expect(a.IP.String()).To(Equal("192.0.2.55"))
	})

	It("[TC-RESOLVE-002] resolves a numeric v6 literal without touching DNS", func() {
		a, err := addr.Resolve(context.Background(), "2001:db8::5", addr.Unspec)
		Expect(err).ToNot(HaveOccurred())
		Expect(a.Family).To(Equal(addr.V6))
	})

	It("[TC-RESOLVE-003] normalizes a numeric v4-mapped-v6 literal to V4", func() {
		a, err := addr.Resolve(context.Background(), "::ffff:203.0.113.9", addr.Unspec)
		Expect(err).ToNot(HaveOccurred())
		Expect(a.Family).To(Equal(addr.V4))
		Expect(a.IP.String()).To(Equal("203.0.113.9"))
	})

	It("[TC-RESOLVE-004] wraps lookup failure as a ResolutionError carrying the cause", func() {
		_, err := addr.Resolve(context.Background(), "this.hostname.does.not.exist.invalid", addr.Unspec)
		Expect(err).To(HaveOccurred())

		var resErr *addr.ResolutionError
		Expect(errors.As(err, &resErr)).To(BeTrue())
		Expect(resErr.HostName).To(Equal("this.hostname.does.not.exist.invalid"))
	})
})
