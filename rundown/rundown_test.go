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

package rundown_test

import (
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/quicdatapath/rundown"
)

func TestRundown(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rundown Suite")
}

var _ = Describe("[TC-RD] rundown reference", func() {
	It("[TC-RD-001] drains immediately when nothing else is outstanding", func() {
		r := rundown.New()

		done := make(chan struct{})
		go func() {
			r.ReleaseAndWait()
			close(done)
		}()

		Eventually(done, time.Second).Should(BeClosed())
	})

	It("[TC-RD-002] blocks ReleaseAndWait until every Acquire is released", func() {
		r := rundown.New()
		Expect(r.Acquire()).To(BeTrue())
		Expect(r.Acquire()).To(BeTrue())

		done := make(chan struct{})
		go func() {
			r.ReleaseAndWait()
			close(done)
		}()

		Consistently(done, 100*time.Millisecond).ShouldNot(BeClosed())

		r.Release()
		Consistently(done, 100*time.Millisecond).ShouldNot(BeClosed())

		r.Release()
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("[TC-RD-003] rejects Acquire once draining has begun", func() {
		r := rundown.New()
		Expect(r.Acquire()).To(BeTrue())

		done := make(chan struct{})
		go func() {
			r.ReleaseAndWait()
			close(done)
		}()

		// give the ReleaseAndWait goroutine a chance to flip `ending`
		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())
		Expect(r.Acquire()).To(BeFalse())

		r.Release()
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("[TC-RD-004] is safe under concurrent acquire/release", func() {
		r := rundown.New()
		const n = 100

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if r.Acquire() {
					r.Release()
				}
			}()
		}
		wg.Wait()

		done := make(chan struct{})
		go func() {
			r.ReleaseAndWait()
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())
	})
})
