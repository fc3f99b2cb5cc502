/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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

package fileDescriptor_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/elements/ioutils/fileDescriptor"
)

var _ = Describe("SystemFileDescriptor", func() {
	It("queries the current limit without modifying it when newValue <= 0", func() {
		cur, max, err := fileDescriptor.SystemFileDescriptor(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(cur).To(BeNumerically(">", 0))
		Expect(max).To(BeNumerically(">=", cur))
	})

	It("never decreases the current limit", func() {
		cur, _, err := fileDescriptor.SystemFileDescriptor(0)
		Expect(err).NotTo(HaveOccurred())

		lower, _, err := fileDescriptor.SystemFileDescriptor(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(lower).To(Equal(cur))
	})
})
