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

package fcgi

import "encoding/binary"

// encodeNameValue renders one name-value pair (protocol section 3.4): each
// length is a single byte if it fits in 7 bits, otherwise four bytes with
// the top bit set and the remaining 31 bits holding the actual length.
func encodeNameValue(name, value []byte) []byte {
	out := make([]byte, 0, 8+len(name)+len(value))
	out = appendLength(out, len(name))
	out = appendLength(out, len(value))
	out = append(out, name...)
	out = append(out, value...)
	return out
}

func appendLength(out []byte, n int) []byte {
	if n <= 127 {
		return append(out, byte(n))
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n)|0x80000000)
	return append(out, b...)
}

// decodeNameValuePairs parses a PARAMS (or GET_VALUES) body into an
// ordered slice of pairs, so every repeated key is kept in wire order here;
// the session's maybeDispatch later folds them into a map, where the last
// value for a repeated name wins.
type nameValue struct {
	Name  string
	Value string
}

func decodeNameValuePairs(data []byte) ([]nameValue, error) {
	var pairs []nameValue
	v := 0
	for v < len(data) {
		nl, adv1, ok := readLength(data, v)
		if !ok {
			return nil, ErrorMalformedRecord.Error(nil)
		}
		v += adv1

		vl, adv2, ok := readLength(data, v)
		if !ok {
			return nil, ErrorMalformedRecord.Error(nil)
		}
		v += adv2

		if v+nl+vl > len(data) {
			return nil, ErrorMalformedRecord.Error(nil)
		}

		pairs = append(pairs, nameValue{
			Name:  string(data[v : v+nl]),
			Value: string(data[v+nl : v+nl+vl]),
		})
		v += nl + vl
	}
	return pairs, nil
}

// readLength decodes one length field starting at data[v], returning the
// length, how many bytes it occupied, and whether the read was in bounds.
func readLength(data []byte, v int) (length, advance int, ok bool) {
	if v >= len(data) {
		return 0, 0, false
	}
	if data[v]&0x80 == 0 {
		return int(data[v]), 1, true
	}
	if v+4 > len(data) {
		return 0, 0, false
	}
	n := binary.BigEndian.Uint32(data[v:v+4]) & 0x7fffffff
	return int(n), 4, true
}
