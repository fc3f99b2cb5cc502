/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package http

import "time"

// cookieExpiryLayout matches the original Netscape cookie date format
// ("Wdy, DD-Mon-YYYY HH:MM:SS GMT"), still the most broadly compatible
// Expires format across clients.
const cookieExpiryLayout = "Mon, 02-Jan-2006 15:04:05 GMT"

// formatCookieExpiry applies the configured GMT offset (the original
// implementation's host clock was not guaranteed to be UTC) before
// rendering the Expires attribute, rather than assuming time.Now() is
// already GMT.
func formatCookieExpiry(maxAgeSeconds, gmtOffsetSeconds int) string {
	t := time.Now().
		Add(time.Duration(maxAgeSeconds) * time.Second).
		Add(time.Duration(gmtOffsetSeconds) * time.Second).
		UTC()
	return t.Format(cookieExpiryLayout)
}
